package tokenstore

import (
	"context"
	"errors"
	"testing"
)

func TestEnvStore(t *testing.T) {
	ctx := context.Background()

	if _, err := NewEnvStore(""); err == nil {
		t.Error("expected error for empty key")
	}

	t.Setenv("CARDBOARD_TEST_SESSION", `{"state":"active"}`)
	store, err := NewEnvStore("CARDBOARD_TEST_SESSION")
	if err != nil {
		t.Fatalf("NewEnvStore: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"state":"active"}` {
		t.Errorf("Load = %q", got)
	}

	if !IsReadOnly(store) {
		t.Error("IsReadOnly(EnvStore) = false, want true")
	}
	if err := store.Save(ctx, []byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Save: got %v, want ErrReadOnly", err)
	}

	t.Setenv("CARDBOARD_TEST_SESSION", " ")
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load blank: got %v, want ErrNotFound", err)
	}

	unset, err := NewEnvStore("CARDBOARD_TEST_UNSET_SESSION")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unset.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load unset: got %v, want ErrNotFound", err)
	}
}
