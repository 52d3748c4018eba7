// Package modelrunner is the model collaborator for the intent pipeline.
// The pipeline treats the model as an opaque query function that may fail;
// this package provides the prompt, the raw-response JSON extraction, and a
// runner backed by a local llama.cpp HTTP server. Loading and running the
// model weights themselves is the server's problem, not ours.
package modelrunner

import "context"

// Runner issues one synchronous completion request against a language model.
// Implementations may block for the duration of inference; any timeout
// belongs to the implementation, not to the pipeline.
type Runner interface {
	// Query sends the prompt and returns the raw model text, which usually
	// wraps a JSON object in prose.
	Query(ctx context.Context, prompt string) (string, error)

	// Close releases the model handle. Safe to call more than once.
	Close() error
}

// Assets describes the model files discovered under an assets directory.
type Assets struct {
	ModelPath   string // empty when the model file is absent
	GrammarPath string // empty when the grammar file is absent
	Grammar     string // grammar file contents, when present
}

// Available reports whether a model file was found.
func (a Assets) Available() bool { return a.ModelPath != "" }
