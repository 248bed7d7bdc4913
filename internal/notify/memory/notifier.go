// Package memory contains an in-memory notifier for tests.
package memory

import (
	"context"
	"sync"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Notifier stores published summaries for inspection.
type Notifier struct {
	mu        sync.RWMutex
	summaries []tag.RunSummary
	closed    bool
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Publish records the summary.
func (n *Notifier) Publish(_ context.Context, summary tag.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return nil
}

// Close marks the notifier closed.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

// Summaries returns the recorded publishes.
func (n *Notifier) Summaries() []tag.RunSummary {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]tag.RunSummary, len(n.summaries))
	copy(out, n.summaries)
	return out
}

// Closed reports whether Close was called.
func (n *Notifier) Closed() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.closed
}
