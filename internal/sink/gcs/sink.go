// Package gcs provides an artifact sink backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to write captures to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Sink uploads capture artifacts to a configured GCS bucket.
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed sink.
func New(client *storage.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads data to the configured bucket and returns a gs:// URI.
func (s *Sink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	object := name
	if s.prefix != "" {
		object = path.Join(s.prefix, name)
	}
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentTypeFor(name)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

// Close releases the underlying storage client.
func (s *Sink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
