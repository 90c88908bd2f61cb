// Package idgen generates short, URL-safe run identifiers backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RunPrefix is prepended to every sync run ID.
const RunPrefix = "run_"

const (
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	length   = 12
)

// NewRunID returns a new run identifier such as "run_4k2x9c0q7bzm".
func NewRunID() (string, error) {
	return WithPrefix(RunPrefix)
}

// WithPrefix returns a new identifier with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
