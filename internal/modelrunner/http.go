package modelrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

const (
	defaultCompletionTimeout = 30 * time.Second
	maxResponseBody          = 1 * 1024 * 1024 // 1MB
)

// HTTPRunnerConfig configures an HTTPRunner.
type HTTPRunnerConfig struct {
	// BaseURL of a llama.cpp server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// MaxTokens caps the completion length per request.
	MaxTokens int

	// Grammar is an optional GBNF grammar constraining the output to JSON.
	Grammar string

	// Timeout bounds one completion round-trip. Zero means 30s.
	Timeout time.Duration
}

// HTTPRunner queries a local llama.cpp server's completion endpoint. The
// server owns model loading and inference; this runner only ships prompts
// and reads text back.
type HTTPRunner struct {
	cfg    HTTPRunnerConfig
	client *http.Client
}

// NewHTTPRunner creates a runner against cfg.BaseURL.
func NewHTTPRunner(cfg HTTPRunnerConfig) *HTTPRunner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}
	return &HTTPRunner{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// completionRequest is the llama.cpp /completion payload. Sampling is kept
// cold (temperature 0.1) because the consumer wants format compliance, not
// creativity.
type completionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
	Grammar     string   `json:"grammar,omitempty"`
}

type completionResponse struct {
	Content string `json:"content"`
}

// Query sends one completion request and returns the raw model text.
func (r *HTTPRunner) Query(ctx context.Context, prompt string) (string, error) {
	payload := completionRequest{
		Prompt:      prompt,
		NPredict:    r.cfg.MaxTokens,
		Temperature: 0.1,
		TopP:        0.9,
		Stop:        []string{"User:", "\n\n"},
		Grammar:     r.cfg.Grammar,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeModel, "marshal completion request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", schema.NewError(schema.ErrCodeModel, "build completion request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeModel, "completion request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", schema.NewErrorf(schema.ErrCodeModel, "completion returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", schema.NewError(schema.ErrCodeModel, "read completion response").WithCause(err)
	}

	var decoded completionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeModel, "decode completion response: %s", err.Error()).WithCause(err)
	}

	return decoded.Content, nil
}

// Close releases the HTTP client's idle connections.
func (r *HTTPRunner) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Runner = (*HTTPRunner)(nil)

// String describes the runner for logs.
func (r *HTTPRunner) String() string {
	return fmt.Sprintf("llama.cpp@%s", r.cfg.BaseURL)
}
