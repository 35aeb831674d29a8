package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the store holds no session.
var ErrNotFound = errors.New("no stored session")

// ErrReadOnly is returned by Save on backends that cannot be written.
var ErrReadOnly = errors.New("token store is read-only")

// Store loads and saves a serialized session.
type Store interface {
	// Load returns the stored data, or ErrNotFound if nothing is stored.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored data.
	Save(ctx context.Context, data []byte) error
}

// ReadOnlyStore is implemented by backends that may refuse Save.
type ReadOnlyStore interface {
	ReadOnly() bool
}

// IsReadOnly reports whether s is known to refuse Save.
func IsReadOnly(s Store) bool {
	ro, ok := s.(ReadOnlyStore)
	return ok && ro.ReadOnly()
}
