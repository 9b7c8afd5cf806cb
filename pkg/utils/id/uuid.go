package id

import (
	"github.com/google/uuid"
)

// UUIDGenerator generates UUID v4 identifiers.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUID v4 generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate creates a new UUID v4 string.
func (g *UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// GenerateN creates n UUID v4 strings.
func (g *UUIDGenerator) GenerateN(n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = g.Generate()
	}
	return ids
}

// ParseUUID validates a UUID string and returns its canonical form.
func ParseUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidUUID
	}
	return u.String(), nil
}
