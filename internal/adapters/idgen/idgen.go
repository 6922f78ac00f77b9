package idgen

import "github.com/google/uuid"

// Generator creates random identifiers for commands and stored entities.
type Generator struct{}

// NewID returns a new UUIDv4 string.
func (Generator) NewID() string {
	return uuid.NewString()
}
