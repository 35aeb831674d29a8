package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore reads a session from an environment variable. Sessions that need
// refreshing cannot be written back, so it suits short-lived tokens injected
// by external secret management.
type EnvStore struct {
	envKey string
	lookup func(string) (string, bool)
}

// Compile-time checks to ensure EnvStore implements Store and ReadOnlyStore
var (
	_ Store         = (*EnvStore)(nil)
	_ ReadOnlyStore = (*EnvStore)(nil)
)

// NewEnvStore creates an EnvStore for the given environment variable.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	return &EnvStore{
		envKey: envKey,
		lookup: os.LookupEnv,
	}, nil
}

// Load returns the variable's value. Unset or blank variables yield ErrNotFound.
func (e *EnvStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, ok := e.lookup(e.envKey)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("environment variable %s: %w", e.envKey, ErrNotFound)
	}
	return []byte(value), nil
}

// ReadOnly implements ReadOnlyStore.
func (e *EnvStore) ReadOnly() bool {
	return true
}

// Save always fails: environment variables are read-only.
func (e *EnvStore) Save(ctx context.Context, _ []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable %s: %w", e.envKey, ErrReadOnly)
}
