// Package tokenmanager exchanges, refreshes and revokes OAuth bearer tokens
// against the Cardboard token endpoint.
//
// The manager is stateless: it holds only the client credentials and returns
// an immutable TokenRecord from every successful exchange or refresh. Callers
// own the record and decide where to persist it.
//
// # Synchronous use
//
//	m, err := tokenmanager.New(tokenmanager.Credentials{
//		ClientID:     clientID,
//		ClientSecret: clientSecret,
//	})
//	record, err := m.ExchangeCode(ctx, code)
//	// Later
//	record, err = m.Refresh(ctx, record.RefreshToken)
//	ok, err := m.Revoke(ctx, record.AccessToken)
//
// # Asynchronous use
//
// AsyncManager offers the same operations, returning a Future that resolves
// once the single underlying request completes:
//
//	am, err := tokenmanager.NewAsync(creds)
//	f := am.ExchangeCode(ctx, code)
//	// do other work
//	record, err := f.Await(ctx)
//
// # Errors
//
// Construction with missing credentials fails with *ConfigurationError before
// any request is made. Remote rejections, malformed responses and transport
// failures surface as *AuthError carrying the status code and response body.
// Revoke reports a token the endpoint no longer knows as false, not as an
// error. Nothing is ever retried: authorization codes are single-use.
package tokenmanager
