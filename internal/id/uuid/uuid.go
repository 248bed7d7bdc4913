// Package uuid generates run identifiers for the capture pipeline.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered (v7) run IDs.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a run ID in string form.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// NewRawID returns a run ID as a uuid.UUID, for callers that stamp the
// binary form onto progress events.
func (Generator) NewRawID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}
