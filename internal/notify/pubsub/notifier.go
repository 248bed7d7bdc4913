// Package pubsub publishes run summaries to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Config identifies the target topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Notifier publishes run summaries to one Pub/Sub topic.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New creates a Pub/Sub client using Application Default Credentials and
// verifies the topic exists before the pipeline starts capturing.
func New(ctx context.Context, cfg Config) (*Notifier, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", cfg.TopicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	return &Notifier{client: client, topic: topic}, nil
}

// Publish sends the summary as JSON and waits for the server ack.
func (n *Notifier) Publish(ctx context.Context, summary tag.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"run_id": summary.RunID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the underlying client.
func (n *Notifier) Close() error {
	n.topic.Stop()
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
