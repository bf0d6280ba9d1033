package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for queue tasks and request correlation.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseID parses a surrogate integer key from a path or query parameter.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrValidation("invalid id %q", s)
	}
	return id, nil
}

// IsFieldID reports whether s is an RFC 4122 UUID in hyphenated form usable as
// a FieldSpec id. Either letter case is accepted.
func IsFieldID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// CanonicalFieldID returns the lowercase form under which field ids are
// compared, stored and referenced from formulas.
func CanonicalFieldID(id string) string {
	return strings.ToLower(id)
}
