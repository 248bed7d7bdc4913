// Package kafka publishes run summaries to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Config identifies the target brokers and topic.
type Config struct {
	Brokers []string
	Topic   string
}

// Notifier publishes run summaries through a shared writer. The writer dials
// lazily, so construction never touches the network.
type Notifier struct {
	writer *kafka.Writer
}

// New builds a Notifier.
func New(cfg Config) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Notifier{writer: writer}, nil
}

// Publish sends the summary as one JSON message keyed by run ID.
func (n *Notifier) Publish(ctx context.Context, summary tag.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(summary.RunID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Close flushes buffered messages and closes the writer.
func (n *Notifier) Close() error {
	if err := n.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
