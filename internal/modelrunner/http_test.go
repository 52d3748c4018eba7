package modelrunner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

func TestHTTPRunner_Query(t *testing.T) {
	var gotReq completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/completion", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(completionResponse{Content: `{"action": "help", "confidence": 0.9}`})
	}))
	defer srv.Close()

	r := NewHTTPRunner(HTTPRunnerConfig{
		BaseURL:   srv.URL,
		MaxTokens: 96,
		Grammar:   "root ::= object",
	})
	defer r.Close()

	out, err := r.Query(context.Background(), "User: help\nAssistant:")
	require.NoError(t, err)
	assert.Contains(t, out, `"action": "help"`)

	assert.Equal(t, 96, gotReq.NPredict)
	assert.Equal(t, 0.1, gotReq.Temperature)
	assert.Equal(t, 0.9, gotReq.TopP)
	assert.Equal(t, []string{"User:", "\n\n"}, gotReq.Stop)
	assert.Equal(t, "root ::= object", gotReq.Grammar)
}

func TestHTTPRunner_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPRunner(HTTPRunnerConfig{BaseURL: srv.URL})
	_, err := r.Query(context.Background(), "hi")

	var perr *schema.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, schema.ErrCodeModel, perr.Code)
}

func TestDiscoverAssets_MissingFiles(t *testing.T) {
	assets := DiscoverAssets(t.TempDir(), nil)
	assert.False(t, assets.Available())
	assert.Empty(t, assets.Grammar)
}

func TestDiscoverAssets_Present(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelFileName), []byte("gguf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, GrammarFileName), []byte("root ::= object"), 0o644))

	assets := DiscoverAssets(dir, nil)
	assert.True(t, assets.Available())
	assert.Equal(t, "root ::= object", assets.Grammar)
	assert.NotEmpty(t, assets.GrammarPath)
}
