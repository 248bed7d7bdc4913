// Package memory provides an in-memory product store for development/testing.
package memory

import (
	"context"
	"sync"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

// Store holds the product collection in process memory.
type Store struct {
	mu       sync.RWMutex
	products []tag.Product
}

// New constructs a Store seeded with the given collection.
func New(seed []tag.Product) *Store {
	s := &Store{}
	s.products = cloneProducts(seed)
	return s
}

// Load returns a copy of the current collection.
func (s *Store) Load(_ context.Context) ([]tag.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products), nil
}

// Replace swaps the collection for the given one.
func (s *Store) Replace(_ context.Context, products []tag.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = cloneProducts(products)
	return nil
}

// Close implements tag.Store; it performs no action.
func (s *Store) Close() {}

func cloneProducts(products []tag.Product) []tag.Product {
	out := make([]tag.Product, len(products))
	copy(out, products)
	for i := range out {
		if out[i].PreviousPrice != nil {
			prev := *out[i].PreviousPrice
			out[i].PreviousPrice = &prev
		}
	}
	return out
}
