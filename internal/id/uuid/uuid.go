// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// MustSuffix returns a short unique token for temp-file names. It falls back
// to a random v4 id when the v7 clock source fails.
func (g Generator) MustSuffix() string {
	id, err := g.NewID()
	if err != nil {
		return uuid.NewString()[:8]
	}
	// The tail of a v7 id carries the random bits.
	return id[len(id)-12:]
}
