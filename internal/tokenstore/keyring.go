package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the keyring service name sessions are stored under.
const KeyringService = "cardboard-session"

// KeyringStore keeps the session in the OS-native credential store.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore using the given service and user
// identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Load returns the stored session, or ErrNotFound if the keyring has no entry.
func (k *KeyringStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring %s/%s: %w", k.service, k.user, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring %s/%s: %w", k.service, k.user, err)
	}
	if secret == "" {
		return nil, fmt.Errorf("keyring %s/%s is empty: %w", k.service, k.user, ErrNotFound)
	}

	return []byte(secret), nil
}

// Save writes the session to the keyring, overwriting any existing entry.
func (k *KeyringStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return fmt.Errorf("writing keyring %s/%s: %w", k.service, k.user, err)
	}
	return nil
}
