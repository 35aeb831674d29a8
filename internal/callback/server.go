// Package callback receives the OAuth authorization redirect on a local
// listener during interactive login.
package callback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/florianilch/cardboard/internal/observability/middleware"
)

// Result is the outcome of the authorization redirect.
type Result struct {
	Code string
	Err  error
}

// AuthorizationError is reported when the authorization server redirects
// back with an error instead of a code.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
	}
	return "authorization denied: " + e.Code
}

// Server accepts a single authorization redirect.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	state  string

	results chan Result
	once    sync.Once
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server handling redirects on path. When the redirect carries
// a state parameter it must equal state.
func New(path, state string) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		state:   state,
		results: make(chan Result, 1),
	}

	s.mux.Handle("GET "+path, middleware.Chain(http.HandlerFunc(s.handleRedirect),
		middleware.Logging(slog.Default()),
		middleware.Recovery,
	))

	return s
}

// Results delivers exactly one Result: the first code or authorization error.
func (s *Server) Results() <-chan Result {
	return s.results
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if state := q.Get("state"); state != "" && state != s.state {
		slog.WarnContext(r.Context(), "rejecting authorization redirect with mismatched state")
		writeText(w, http.StatusBadRequest, "Sign-in failed: the request did not originate from this login. Start the login again.")
		return
	}

	if errCode := q.Get("error"); errCode != "" {
		s.deliver(Result{Err: &AuthorizationError{Code: errCode, Description: q.Get("error_description")}})
		writeText(w, http.StatusBadRequest, "Sign-in was not completed: "+errCode+". You can close this window.")
		return
	}

	code := q.Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "Sign-in failed: no authorization code in the redirect.")
		return
	}

	s.deliver(Result{Code: code})
	writeText(w, http.StatusOK, "Signed in. You can close this window and return to the terminal.")
}

func (s *Server) deliver(res Result) {
	s.once.Do(func() {
		s.results <- res
	})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg+"\n")
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.serve(ctx, listener), nil
}

func (s *Server) serve(ctx context.Context, listener net.Listener) <-chan error {
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
