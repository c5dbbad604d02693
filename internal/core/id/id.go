// Package id provides identifiers for data objects.
// Object references are UUIDs; the nil UUID is the blank reference.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used for every object reference.
type ID = uuid.UUID

// Blank is the empty reference ("00000000-0000-0000-0000-000000000000").
var Blank = uuid.Nil

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsBlank checks if ID is the blank reference.
func IsBlank(id ID) bool {
	return id == uuid.Nil
}

// FromValue extracts a reference from a raw field value.
// Accepts ID and its canonical string form; anything else is not a reference.
func FromValue(v any) (ID, bool) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, true
	case string:
		if len(x) != 36 {
			return uuid.Nil, false
		}
		parsed, err := uuid.Parse(x)
		if err != nil {
			return uuid.Nil, false
		}
		return parsed, true
	case []byte:
		return FromValue(string(x))
	}
	return uuid.Nil, false
}
