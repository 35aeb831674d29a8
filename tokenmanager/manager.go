package tokenmanager

import (
	"context"
)

// Option configures a Manager or AsyncManager.
type Option func(*options)

type options struct {
	transport Transport
	endpoint  Endpoint
}

// WithTransport sets the transport used for token endpoint requests.
// If not provided, an HTTPTransport with default settings is used.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithEndpoint overrides the token and revocation URLs.
func WithEndpoint(ep Endpoint) Option {
	return func(o *options) {
		o.endpoint = ep
	}
}

// core is shared by both adapters and is never mutated after construction.
type core struct {
	creds     Credentials
	endpoint  Endpoint
	transport Transport
}

func newCore(creds Credentials, opts []Option) (core, error) {
	if err := creds.validate(); err != nil {
		return core{}, err
	}

	o := options{endpoint: DefaultEndpoint}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = NewHTTPTransport()
	}
	if o.endpoint.TokenURL == "" {
		return core{}, &ConfigurationError{Field: "token_url", Reason: "is empty"}
	}
	if o.endpoint.RevokeURL == "" {
		return core{}, &ConfigurationError{Field: "revoke_url", Reason: "is empty"}
	}

	return core{
		creds:     creds,
		endpoint:  o.endpoint,
		transport: o.transport,
	}, nil
}

func (c core) send(ctx context.Context, req call) (int, map[string]any, error) {
	return c.transport.Request(ctx, req.method, req.url, req.params)
}

// Manager performs token endpoint operations, blocking the caller for the
// duration of each request. It is safe for concurrent use.
type Manager struct {
	core core
}

// New creates a Manager. It returns *ConfigurationError if either credential
// is empty.
func New(creds Credentials, opts ...Option) (*Manager, error) {
	c, err := newCore(creds, opts)
	if err != nil {
		return nil, err
	}
	return &Manager{core: c}, nil
}

// ExchangeCode trades an authorization code for a token pair.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (TokenRecord, error) {
	req, err := exchangeRequest(m.core.creds, m.core.endpoint, code)
	if err != nil {
		return TokenRecord{}, err
	}
	status, body, err := m.core.send(ctx, req)
	return parseTokenResponse(req.op, status, body, err)
}

// Refresh obtains a new token pair. The caller replaces its held record with
// the returned one.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (TokenRecord, error) {
	req, err := refreshRequest(m.core.creds, m.core.endpoint, refreshToken)
	if err != nil {
		return TokenRecord{}, err
	}
	status, body, err := m.core.send(ctx, req)
	return parseTokenResponse(req.op, status, body, err)
}

// Revoke invalidates an access or refresh token. It returns false when the
// endpoint reports the token as already invalid or unknown.
func (m *Manager) Revoke(ctx context.Context, token string) (bool, error) {
	req, err := revokeRequest(m.core.creds, m.core.endpoint, token)
	if err != nil {
		return false, err
	}
	status, body, err := m.core.send(ctx, req)
	return parseRevokeResponse(status, body, err)
}
