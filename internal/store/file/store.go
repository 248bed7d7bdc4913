// Package file implements a product store backed by a JSON document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Store reads and rewrites the product collection at a fixed path. The
// document is a JSON array; record order is preserved across rewrites.
type Store struct {
	path string
}

// New creates a file-backed store for the given path.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	return &Store{path: path}, nil
}

// Load reads and decodes the whole product collection.
func (s *Store) Load(_ context.Context) ([]tag.Product, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	var products []tag.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// Replace rewrites the document with the given collection.
func (s *Store) Replace(_ context.Context, products []tag.Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write products: %w", err)
	}
	return nil
}

// Close implements tag.Store; it performs no action.
func (s *Store) Close() {}
