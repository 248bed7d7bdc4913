// Package memory stores capture artifacts in-memory for development/testing.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Sink stores artifacts in-memory and returns pseudo URIs.
type Sink struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory sink.
func New() *Sink {
	return &Sink{data: make(map[string][]byte)}
}

// Put persists the content and returns a memory:// URI.
func (s *Sink) Put(_ context.Context, name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", name), nil
}

// Close implements tag.ArtifactSink; it performs no action.
func (s *Sink) Close() error {
	return nil
}

// Object returns the stored content for name, if present.
func (s *Sink) Object(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports how many artifacts have been stored.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
