package tag

import (
	"context"
	"time"
)

// Store persists the product collection.
type Store interface {
	// Load reads the full collection in stored order.
	Load(ctx context.Context) ([]Product, error)
	// Replace rewrites the whole collection, dropping whatever was stored.
	Replace(ctx context.Context, products []Product) error
	// Close releases any underlying resources.
	Close()
}

// Capturer is one live browser session. A worker owns exactly one for its
// whole lifetime and must Close it on every exit path.
type Capturer interface {
	// Capture navigates to pageURL, waits for the page to settle, and
	// returns the screenshot bytes.
	Capture(ctx context.Context, pageURL string) ([]byte, error)
	Close()
}

// CapturerFactory opens a new isolated browser session. Each worker calls it
// once.
type CapturerFactory func(ctx context.Context) (Capturer, error)

// ArtifactSink stores finished captures and returns their location URI.
type ArtifactSink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Close() error
}

// Notifier publishes the end-of-run summary to an external channel.
type Notifier interface {
	Publish(ctx context.Context, summary RunSummary) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
