// Package shortcode generates the random codes that identify shortened links.
package shortcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// charset defines the character set used for generating short codes.
// Uses alphanumeric characters (both cases) for a total of 62 possible
// characters. At the default length of 8 that gives 62^8 (~218 trillion)
// possible codes, so collisions are rare but still checked by the caller.
const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is used when no length is configured.
const DefaultLength = 8

// Generator produces fixed-length random alphanumeric codes. It is a pure
// random draw with no side effects; uniqueness against the store is the
// caller's responsibility (generate, check, retry on collision).
type Generator struct {
	length int
}

// NewGenerator returns a Generator producing codes of the given length.
// Non-positive lengths fall back to DefaultLength.
func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Length returns the length of the codes this generator produces.
func (g *Generator) Length() int {
	return g.length
}

// Generate draws a random code from the alphanumeric charset using
// crypto/rand, uniform over all characters.
func (g *Generator) Generate() (string, error) {
	code := make([]byte, g.length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
