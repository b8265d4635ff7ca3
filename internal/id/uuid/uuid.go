// Package uuid generates time-ordered node ids.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings, so ids sort by creation time.
type Generator struct {
	next func() (uuid.UUID, error)
}

// New creates a Generator backed by uuid.NewV7.
func New() *Generator {
	return &Generator{next: uuid.NewV7}
}

// NewID returns a UUID v7 string.
func (g *Generator) NewID() (string, error) {
	id, err := g.next()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
