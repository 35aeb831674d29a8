package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/cardboard/internal/tokenstore"
	"github.com/florianilch/cardboard/tokenmanager"
)

var (
	// ErrNoSession is returned when an operation needs a session but none is stored.
	ErrNoSession = errors.New("not logged in")
	// ErrSessionRevoked is returned when an operation needs an active session
	// but the stored one was revoked.
	ErrSessionRevoked = errors.New("session was revoked, log in again")
)

// SessionState is the caller-side lifecycle state of a token pair.
// A store holding nothing is the implicit "no token" state.
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateRevoked SessionState = "revoked"
)

// Session is the persisted form of the current token pair.
type Session struct {
	State        SessionState `json:"state"`
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// activeSession builds the session for a freshly issued record.
func activeSession(record tokenmanager.TokenRecord, now time.Time) Session {
	return Session{
		State:        SessionStateActive,
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		TokenType:    record.TokenType,
		ExpiresAt:    record.ExpiresAt(now),
		UpdatedAt:    now,
	}
}

// revokedSession drops the tokens; nothing leads back out of this state
// except a new login.
func revokedSession(now time.Time) Session {
	return Session{State: SessionStateRevoked, UpdatedAt: now}
}

// Valid reports whether the access token is usable for at least leeway more.
// A zero ExpiresAt, as stored for expires_in 0, never expires.
func (s Session) Valid(now time.Time, leeway time.Duration) bool {
	if s.State != SessionStateActive || s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Add(leeway).Before(s.ExpiresAt)
}

// OAuth2Token returns the session's access token in x/oauth2 form.
func (s Session) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// requireActive maps non-active states to their errors.
func (s Session) requireActive() error {
	switch s.State {
	case SessionStateActive:
		return nil
	case SessionStateRevoked:
		return ErrSessionRevoked
	default:
		return fmt.Errorf("unknown session state %q", s.State)
	}
}

// Sessions reads and writes the Session held in a token store.
type Sessions struct {
	store tokenstore.Store
}

// NewSessions creates a Sessions backed by store.
func NewSessions(store tokenstore.Store) (*Sessions, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	return &Sessions{store: store}, nil
}

// Load returns the stored session, or ErrNoSession if the store is empty.
func (s *Sessions) Load(ctx context.Context) (Session, error) {
	data, err := s.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decoding session: %w", err)
	}
	return session, nil
}

// LoadActive returns the stored session if it is active.
func (s *Sessions) LoadActive(ctx context.Context) (Session, error) {
	session, err := s.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	if err := session.requireActive(); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Writable fails with tokenstore.ErrReadOnly if the store cannot take a new
// session. Operations that spend a code or refresh token check it first.
func (s *Sessions) Writable() error {
	if tokenstore.IsReadOnly(s.store) {
		return fmt.Errorf("cannot store a new session: %w", tokenstore.ErrReadOnly)
	}
	return nil
}

// ReadOnly reports whether the store refuses writes.
func (s *Sessions) ReadOnly() bool {
	return tokenstore.IsReadOnly(s.store)
}

// Save replaces the stored session.
func (s *Sessions) Save(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.store.Save(ctx, data); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}
