// Package codegen produces the short codes that identify links.
// Generators are pure proposal makers: uniqueness is enforced by the
// store's constraint, not here. Implementations must be safe for
// concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
)

const (
	base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength is the code length used when callers don't care.
	DefaultLength = 8
)

// Generator generates short codes.
type Generator interface {
	Generate(length int) (string, error)
}

// base62Generator draws codes from the base62 alphabet using crypto/rand.
type base62Generator struct{}

// NewBase62 returns a new base62 code generator.
func NewBase62() Generator {
	return &base62Generator{}
}

// Generate returns a random base62 string of the specified length.
func (g *base62Generator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = base62Chars[int(b[i])%len(base62Chars)]
	}

	return string(b), nil
}
