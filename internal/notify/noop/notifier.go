// Package noop is the notifier used when no channel is configured.
package noop

import (
	"context"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Notifier discards run summaries.
type Notifier struct{}

// New returns a Notifier.
func New() Notifier { return Notifier{} }

// Publish discards the summary.
func (Notifier) Publish(context.Context, tag.RunSummary) error { return nil }

// Close implements tag.Notifier; it performs no action.
func (Notifier) Close() error { return nil }
