package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/cardboard/tokenmanager"
)

// TokenManager is the subset of tokenmanager.Manager the application uses.
type TokenManager interface {
	ExchangeCode(ctx context.Context, code string) (tokenmanager.TokenRecord, error)
	Refresh(ctx context.Context, refreshToken string) (tokenmanager.TokenRecord, error)
	Revoke(ctx context.Context, token string) (bool, error)
}

// Compile-time check to ensure tokenmanager.Manager satisfies TokenManager
var _ TokenManager = (*tokenmanager.Manager)(nil)

// SessionTokenSource hands out the stored access token, refreshing and
// persisting the session once it is about to expire.
type SessionTokenSource struct {
	manager  TokenManager
	sessions *Sessions
	leeway   time.Duration
	now      func() time.Time

	// mu serializes refresh and write-back so concurrent callers never spend
	// the same refresh token twice.
	mu sync.Mutex
}

// Compile-time check to ensure SessionTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*SessionTokenSource)(nil)

// NewSessionTokenSource creates a SessionTokenSource. No I/O is performed
// until the first Token call.
func NewSessionTokenSource(manager TokenManager, sessions *Sessions, leeway time.Duration) (*SessionTokenSource, error) {
	if manager == nil {
		return nil, fmt.Errorf("missing token manager")
	}
	if sessions == nil {
		return nil, fmt.Errorf("missing sessions")
	}

	return &SessionTokenSource{
		manager:  manager,
		sessions: sessions,
		leeway:   leeway,
		now:      time.Now,
	}, nil
}

// Token implements oauth2.TokenSource.
func (s *SessionTokenSource) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	return s.TokenContext(context.Background())
}

// TokenContext returns a valid access token, refreshing it first if it
// expires within the leeway.
func (s *SessionTokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.LoadActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.Valid(now, s.leeway) {
		return session.OAuth2Token(), nil
	}

	slog.DebugContext(ctx, "access token expiring, refreshing", "expires_at", session.ExpiresAt)

	record, err := s.manager.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	fresh := activeSession(record, now)
	if err := s.sessions.Save(ctx, fresh); err != nil {
		// The access token is still usable, but the spent refresh token stays
		// on disk and the next refresh will fail.
		slog.ErrorContext(ctx, "failed to persist refreshed session", "error", err)
	} else {
		slog.InfoContext(ctx, "session refreshed", "expires_at", fresh.ExpiresAt)
	}

	return fresh.OAuth2Token(), nil
}
