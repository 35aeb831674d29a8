package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/florianilch/cardboard/internal/tokenstore"
)

func TestSessionValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	active := Session{State: SessionStateActive, AccessToken: "a", ExpiresAt: now.Add(10 * time.Minute)}

	tests := []struct {
		name    string
		session Session
		leeway  time.Duration
		want    bool
	}{
		{"fresh", active, time.Minute, true},
		{"within leeway", active, 10 * time.Minute, false},
		{"expired", Session{State: SessionStateActive, AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, 0, false},
		{"no expiry", Session{State: SessionStateActive, AccessToken: "a"}, time.Hour, true},
		{"revoked", Session{State: SessionStateRevoked, ExpiresAt: now.Add(time.Hour)}, 0, false},
		{"no access token", Session{State: SessionStateActive, ExpiresAt: now.Add(time.Hour)}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(now, tt.leeway); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

type memoryStore struct {
	data []byte
}

func (m *memoryStore) Load(context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, tokenstore.ErrNotFound
	}
	return m.data, nil
}

func (m *memoryStore) Save(_ context.Context, data []byte) error {
	m.data = data
	return nil
}

func TestSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	sessions, err := NewSessions(&memoryStore{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sessions.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Load empty: got %v, want ErrNoSession", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := sessions.Save(ctx, revokedSession(now)); err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.LoadActive(ctx); !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("LoadActive: got %v, want ErrSessionRevoked", err)
	}

	got, err := sessions.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != SessionStateRevoked || !got.UpdatedAt.Equal(now) {
		t.Errorf("Load() = %+v", got)
	}
}

func TestSessionsCorrupt(t *testing.T) {
	sessions, err := NewSessions(&memoryStore{data: []byte("{not json")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Load(context.Background()); err == nil || errors.Is(err, ErrNoSession) {
		t.Errorf("Load corrupt: got %v, want decode error", err)
	}
}
