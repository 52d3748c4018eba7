package modelrunner

import (
	"context"
	"sync/atomic"
)

// MockRunner is an in-process Runner for tests and model-less setups. It
// returns a fixed response (or error) and counts calls.
type MockRunner struct {
	Response string
	Err      error

	calls atomic.Int64
}

// Query returns the canned response.
func (m *MockRunner) Query(_ context.Context, _ string) (string, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Close is a no-op.
func (m *MockRunner) Close() error { return nil }

// Calls reports how many queries were issued.
func (m *MockRunner) Calls() int64 { return m.calls.Load() }

var _ Runner = (*MockRunner)(nil)
