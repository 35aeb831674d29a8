package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/cardboard/internal/callback"
	"github.com/florianilch/cardboard/tokenmanager"
)

// App runs the token lifecycle operations against the configured store.
type App struct {
	cfg      *Config
	sessions *Sessions
	out      io.Writer
	now      func() time.Time

	// Credentials are only checked once an operation needs the token endpoint,
	// so commands that only read the store work without them.
	manager func() (TokenManager, error)
}

// Option configures an App.
type Option func(*App)

// WithTokenManager replaces the token manager built from configuration.
func WithTokenManager(m TokenManager) Option {
	return func(a *App) {
		a.manager = func() (TokenManager, error) { return m, nil }
	}
}

// WithOutput sets where user-facing login instructions are written.
// Defaults to os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithClock overrides the time source used for expiry calculations.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New creates a new App instance. Nothing is read from the store yet.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Storage.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	sessions, err := NewSessions(store)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		sessions: sessions,
		out:      os.Stderr,
		now:      time.Now,
	}
	a.manager = sync.OnceValues(func() (TokenManager, error) {
		return newTokenManager(cfg)
	})

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// newTokenManager creates a tokenmanager.Manager from application configuration.
func newTokenManager(cfg *Config) (TokenManager, error) {
	endpoint, err := tokenmanager.EndpointFromBaseURL(cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}

	return tokenmanager.New(cfg.Credentials(),
		tokenmanager.WithEndpoint(endpoint),
		tokenmanager.WithTransport(tokenmanager.NewHTTPTransport(tokenmanager.WithTimeout(cfg.API.Timeout))),
	)
}

// Exchange trades an authorization code for a token pair and stores it as
// the active session, replacing any previous one.
func (a *App) Exchange(ctx context.Context, code string) (Session, error) {
	m, err := a.manager()
	if err != nil {
		return Session{}, err
	}
	if err := a.sessions.Writable(); err != nil {
		return Session{}, err
	}

	record, err := m.ExchangeCode(ctx, code)
	if err != nil {
		return Session{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	session := activeSession(record, a.now())
	if err := a.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}

	slog.InfoContext(ctx, "session started", "expires_at", session.ExpiresAt)
	return session, nil
}

// Refresh replaces the active session with a freshly issued token pair.
func (a *App) Refresh(ctx context.Context) (Session, error) {
	m, err := a.manager()
	if err != nil {
		return Session{}, err
	}

	current, err := a.sessions.LoadActive(ctx)
	if err != nil {
		return Session{}, err
	}
	// The refresh token is spent on the server, so a pair that cannot be
	// stored would be lost.
	if err := a.sessions.Writable(); err != nil {
		return Session{}, err
	}

	record, err := m.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return Session{}, fmt.Errorf("refreshing session: %w", err)
	}

	session := activeSession(record, a.now())
	if err := a.sessions.Save(ctx, session); err != nil {
		return Session{}, err
	}

	slog.InfoContext(ctx, "session refreshed", "expires_at", session.ExpiresAt)
	return session, nil
}

// RevokeResult reports what the endpoint confirmed for each token. A false
// value means the endpoint already considered the token invalid.
type RevokeResult struct {
	AccessTokenRevoked  bool
	RefreshTokenRevoked bool
}

// Revoke revokes both tokens of the active session and marks it revoked.
// If either revocation fails the session stays active so the call can be
// repeated; tokens already unknown to the endpoint are not a failure.
func (a *App) Revoke(ctx context.Context) (RevokeResult, error) {
	m, err := a.manager()
	if err != nil {
		return RevokeResult{}, err
	}

	current, err := a.sessions.LoadActive(ctx)
	if err != nil {
		return RevokeResult{}, err
	}

	var result RevokeResult
	var errs []error

	if current.RefreshToken != "" {
		result.RefreshTokenRevoked, err = m.Revoke(ctx, current.RefreshToken)
		if err != nil {
			errs = append(errs, fmt.Errorf("revoking refresh token: %w", err))
		}
	}
	if current.AccessToken != "" {
		result.AccessTokenRevoked, err = m.Revoke(ctx, current.AccessToken)
		if err != nil {
			errs = append(errs, fmt.Errorf("revoking access token: %w", err))
		}
	}
	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	if a.sessions.ReadOnly() {
		slog.WarnContext(ctx, "tokens revoked but the read-only store still holds them")
	} else if err := a.sessions.Save(ctx, revokedSession(a.now())); err != nil {
		return result, err
	}

	slog.InfoContext(ctx, "session revoked",
		"access_token_revoked", result.AccessTokenRevoked,
		"refresh_token_revoked", result.RefreshTokenRevoked,
	)
	return result, nil
}

// Token returns a valid access token, refreshing the session if needed.
func (a *App) Token(ctx context.Context) (*oauth2.Token, error) {
	ts, err := a.TokenSource()
	if err != nil {
		return nil, err
	}
	return ts.TokenContext(ctx)
}

// TokenSource returns an oauth2.TokenSource over the stored session.
func (a *App) TokenSource() (*SessionTokenSource, error) {
	m, err := a.manager()
	if err != nil {
		return nil, err
	}

	ts, err := NewSessionTokenSource(m, a.sessions, a.cfg.Session.RefreshLeeway)
	if err != nil {
		return nil, err
	}
	ts.now = a.now
	return ts, nil
}

// Status returns the stored session without contacting the endpoint.
func (a *App) Status(ctx context.Context) (Session, error) {
	return a.sessions.Load(ctx)
}

// Login runs the interactive authorization flow: it prints the authorization
// URL, waits for the redirect on the local callback listener, and exchanges
// the received code.
func (a *App) Login(ctx context.Context) (Session, error) {
	if a.cfg.Login.URL == "" {
		return Session{}, errors.New("login.url is required for interactive login")
	}
	if err := a.sessions.Writable(); err != nil {
		return Session{}, err
	}

	code, err := a.awaitCode(ctx)
	if err != nil {
		return Session{}, err
	}

	return a.Exchange(ctx, code)
}

// AuthCodeURL builds the authorization URL for the given state.
func (a *App) AuthCodeURL(state string) string {
	endpoint, err := tokenmanager.EndpointFromBaseURL(a.cfg.API.BaseURL)
	if err != nil {
		endpoint = tokenmanager.DefaultEndpoint
	}

	oauthConfig := &oauth2.Config{
		ClientID:    a.cfg.Client.ID,
		Endpoint:    endpoint.OAuth2(a.cfg.Login.URL),
		RedirectURL: a.cfg.Login.Redirect(),
	}
	return oauthConfig.AuthCodeURL(state)
}

// awaitCode serves the callback until a code arrives, the listener fails, or
// the login timeout passes.
func (a *App) awaitCode(ctx context.Context) (string, error) {
	state := uuid.NewString()
	receiver := callback.New(a.cfg.Login.Callback.Path, state)

	loginCtx, cancel := context.WithTimeout(ctx, a.cfg.Login.Timeout)
	defer cancel()

	address := a.cfg.Login.Address()
	serverErrCh, err := receiver.Start(loginCtx, address)
	if err != nil {
		return "", fmt.Errorf("callback listener startup failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
		defer cancel()
		if err := receiver.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "callback listener shutdown failed", "error", err)
		}
	}()

	slog.DebugContext(ctx, "waiting for authorization redirect", "address", address)
	_, _ = fmt.Fprintf(a.out, "Open the following URL in your browser to sign in:\n\n  %s\n\n", a.AuthCodeURL(state))

	g, gCtx := errgroup.WithContext(loginCtx)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				return fmt.Errorf("callback listener: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	var code string
	g.Go(func() error {
		// Receiving a result ends the wait for the monitor as well.
		defer cancel()
		select {
		case res := <-receiver.Results():
			if res.Err != nil {
				return res.Err
			}
			code = res.Code
			return nil
		case <-gCtx.Done():
			if errors.Is(gCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("no authorization received within %s", a.cfg.Login.Timeout)
			}
			return gCtx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	if code == "" {
		return "", errors.New("login aborted")
	}
	return code, nil
}
