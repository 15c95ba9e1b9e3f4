// Package slug generates and validates the short path segments that identify links.
package slug

import (
	"errors"
	"math/rand"
	"strings"
)

const (
	// DefaultLength gives 62^7 (about 3.5e12) possible slugs.
	DefaultLength = 7
	// MaxLength bounds user-chosen slugs.
	MaxLength = 64

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrEmpty    = errors.New("slug is empty")
	ErrTooLong  = errors.New("slug is too long")
	ErrInvalid  = errors.New("slug contains invalid characters")
	ErrReserved = errors.New("slug is reserved")
)

// reserved holds first path segments owned by routes of the service itself.
var reserved = map[string]struct{}{
	"api":  {},
	"auth": {},
	"ping": {},
}

// Generator produces candidate slugs. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(length int) string
}

// RandomGenerator draws every character uniformly from the 62-character alphanumeric alphabet.
// Slugs are identifiers, not secrets, so math/rand is sufficient.
type RandomGenerator struct{}

func NewRandomGenerator() RandomGenerator {
	return RandomGenerator{}
}

func (RandomGenerator) Generate(length int) string {
	return Generate(length)
}

// Generate returns a random alphanumeric string of exactly length characters.
// A non-positive length yields an empty string.
func Generate(length int) string {
	if length <= 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}

// Validate checks a user-chosen slug.
func Validate(s string) error {
	if s == "" {
		return ErrEmpty
	}
	if len(s) > MaxLength {
		return ErrTooLong
	}
	for i := 0; i < len(s); i++ {
		if !isSlugChar(s[i]) {
			return ErrInvalid
		}
	}
	if IsReserved(s) {
		return ErrReserved
	}
	return nil
}

// IsReserved reports whether segment is a path segment used by the service's own routes.
func IsReserved(segment string) bool {
	_, ok := reserved[strings.ToLower(segment)]
	return ok
}

func isSlugChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
