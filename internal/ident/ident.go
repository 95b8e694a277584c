// Package ident generates and parses the 128-bit identifiers that name
// posts across both stores.
package ident

import (
	"github.com/google/uuid"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

// ID is the raw 16-byte form used as a key-value store key. The canonical
// textual form is the lowercase hyphenated rendering.
type ID [16]byte

// New returns a fresh random identifier.
func New() ID {
	return ID(uuid.New())
}

// Parse decodes the canonical textual form. Malformed input yields an
// InvalidInput error; callers handling user-supplied identifiers should treat
// it as "not found" rather than a server failure.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, domain.InvalidInput("malformed post identifier")
	}
	return ID(u), nil
}

// FromBytes rebuilds an ID from a raw 16-byte key.
func FromBytes(b []byte) (ID, error) {
	if len(b) != 16 {
		return ID{}, domain.InvalidInput("identifier must be 16 bytes")
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

func (id ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}
