// Package history keeps the recent-intent context for the orchestrator: a
// small in-memory ring visible to the model prompt and the query surface,
// plus a libSQL-backed log that survives restarts.
package history

import (
	"sync"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// DefaultMaxEntries bounds the in-memory buffer.
const DefaultMaxEntries = 10

// Buffer is a bounded FIFO of finalized intents. When full, appending
// evicts exactly the single oldest entry. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	max     int
	entries []schema.Intent
}

// NewBuffer creates a buffer holding at most max intents; a non-positive
// max falls back to DefaultMaxEntries.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Buffer{max: max, entries: make([]schema.Intent, 0, max)}
}

// Append adds the intent, evicting the oldest entry when the buffer is full.
func (b *Buffer) Append(intent schema.Intent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, intent)
	if len(b.entries) > b.max {
		b.entries = b.entries[1:]
	}
}

// All returns a copy of the buffer, oldest first.
func (b *Buffer) All() []schema.Intent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]schema.Intent, len(b.entries))
	copy(out, b.entries)
	return out
}

// Recent returns up to n intents, newest first. A non-positive n returns
// everything.
func (b *Buffer) Recent(n int) []schema.Intent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]schema.Intent, 0, n)
	for i := len(b.entries) - 1; i >= len(b.entries)-n; i-- {
		out = append(out, b.entries[i])
	}
	return out
}

// Len reports the number of buffered intents.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Max reports the buffer capacity.
func (b *Buffer) Max() int { return b.max }
