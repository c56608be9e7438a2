package graph

import "github.com/google/uuid"

// ID is an opaque element identifier.
type ID string

// String returns the ID as a string.
func (id ID) String() string { return string(id) }

// IsEmpty reports whether the ID is unset.
func (id ID) IsEmpty() bool { return id == "" }

// GenerateID returns existing unchanged when set, otherwise a fresh
// random identifier.
func GenerateID(existing ID) ID {
	if !existing.IsEmpty() {
		return existing
	}
	return ID(uuid.NewString())
}
