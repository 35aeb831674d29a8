package tokenmanager

import (
	"context"
)

// Future is the pending result of an AsyncManager call.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx is done. Giving up on
// the wait does not cancel the request; cancel the context passed to the
// originating call for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncManager offers the Manager operations without blocking the caller.
// Each call starts exactly one goroutine for its request; there are no other
// background tasks.
type AsyncManager struct {
	core core
}

// NewAsync creates an AsyncManager. It returns *ConfigurationError if either
// credential is empty.
func NewAsync(creds Credentials, opts ...Option) (*AsyncManager, error) {
	c, err := newCore(creds, opts)
	if err != nil {
		return nil, err
	}
	return &AsyncManager{core: c}, nil
}

// run sends req in its own goroutine and resolves the future with parse's
// result. Nothing is published until parse returns.
func run[T any](ctx context.Context, c core, req call, parse func(int, map[string]any, error) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		status, body, err := c.send(ctx, req)
		f.value, f.err = parse(status, body, err)
	}()
	return f
}

// ExchangeCode trades an authorization code for a token pair.
func (m *AsyncManager) ExchangeCode(ctx context.Context, code string) *Future[TokenRecord] {
	req, err := exchangeRequest(m.core.creds, m.core.endpoint, code)
	if err != nil {
		return resolved(TokenRecord{}, err)
	}
	return run(ctx, m.core, req, func(status int, body map[string]any, err error) (TokenRecord, error) {
		return parseTokenResponse(req.op, status, body, err)
	})
}

// Refresh obtains a new token pair.
func (m *AsyncManager) Refresh(ctx context.Context, refreshToken string) *Future[TokenRecord] {
	req, err := refreshRequest(m.core.creds, m.core.endpoint, refreshToken)
	if err != nil {
		return resolved(TokenRecord{}, err)
	}
	return run(ctx, m.core, req, func(status int, body map[string]any, err error) (TokenRecord, error) {
		return parseTokenResponse(req.op, status, body, err)
	})
}

// Revoke invalidates an access or refresh token. The future resolves to false
// when the endpoint reports the token as already invalid or unknown.
func (m *AsyncManager) Revoke(ctx context.Context, token string) *Future[bool] {
	req, err := revokeRequest(m.core.creds, m.core.endpoint, token)
	if err != nil {
		return resolved(false, err)
	}
	return run(ctx, m.core, req, parseRevokeResponse)
}
