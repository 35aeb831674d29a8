package tokenmanager

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"net/http"
)

const (
	opExchange = "exchange"
	opRefresh  = "refresh"
	opRevoke   = "revoke"
)

const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
)

// revokedCodes are OAuth error codes with which the revocation endpoint
// reports a token it no longer knows.
var revokedCodes = map[string]bool{
	"not_found":     true,
	"invalid_token": true,
	"invalid_grant": true,
}

// call is a fully built token endpoint request.
type call struct {
	op     string
	method string
	url    string
	params map[string]string
}

func exchangeRequest(creds Credentials, ep Endpoint, code string) (call, error) {
	if code == "" {
		return call{}, fmt.Errorf("%w: authorization code is empty", ErrInvalidArgument)
	}
	return call{
		op:     opExchange,
		method: http.MethodPost,
		url:    ep.TokenURL,
		params: map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"code":          code,
			"grant_type":    grantTypeAuthorizationCode,
		},
	}, nil
}

func refreshRequest(creds Credentials, ep Endpoint, refreshToken string) (call, error) {
	if refreshToken == "" {
		return call{}, fmt.Errorf("%w: refresh token is empty", ErrInvalidArgument)
	}
	return call{
		op:     opRefresh,
		method: http.MethodPost,
		url:    ep.TokenURL,
		params: map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"refresh_token": refreshToken,
			"grant_type":    grantTypeRefreshToken,
		},
	}, nil
}

func revokeRequest(creds Credentials, ep Endpoint, token string) (call, error) {
	if token == "" {
		return call{}, fmt.Errorf("%w: token is empty", ErrInvalidArgument)
	}
	return call{
		op:     opRevoke,
		method: http.MethodPost,
		url:    ep.RevokeURL,
		params: map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"token":         token,
		},
	}, nil
}

// transportError converts a Transport failure into an *AuthError.
func transportError(op string, status int, err error) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		status = decodeErr.StatusCode
	}
	return &AuthError{Op: op, StatusCode: status, Err: err}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// parseTokenResponse turns the outcome of an exchange or refresh call into a
// TokenRecord.
func parseTokenResponse(op string, status int, body map[string]any, err error) (TokenRecord, error) {
	if err != nil {
		return TokenRecord{}, transportError(op, status, err)
	}
	if !isSuccess(status) {
		return TokenRecord{}, &AuthError{Op: op, StatusCode: status, Body: body}
	}

	fail := func(err error) (TokenRecord, error) {
		return TokenRecord{}, &AuthError{Op: op, StatusCode: status, Body: body, Err: err}
	}

	accessToken, err := requiredString(body, "access_token")
	if err != nil {
		return fail(err)
	}
	refreshToken, err := requiredString(body, "refresh_token")
	if err != nil {
		return fail(err)
	}
	tokenType, ok := body["token_type"].(string)
	if !ok {
		return fail(errors.New("missing token_type"))
	}
	expiresIn, err := seconds(body["expires_in"])
	if err != nil {
		return fail(err)
	}

	return TokenRecord{
		AccessToken:  accessToken,
		TokenType:    tokenType,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		raw:          maps.Clone(body),
	}, nil
}

// parseRevokeResponse reports whether the endpoint confirmed revocation. A
// token the endpoint no longer knows yields false without an error.
func parseRevokeResponse(status int, body map[string]any, err error) (bool, error) {
	if err != nil {
		// A 404 means "not found" whatever the body says, HTML error pages included.
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) && decodeErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, transportError(opRevoke, status, err)
	}
	if isSuccess(status) {
		return true, nil
	}

	switch status {
	case http.StatusNotFound:
		return false, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		if code, _ := body["error"].(string); revokedCodes[code] {
			return false, nil
		}
	}
	return false, &AuthError{Op: opRevoke, StatusCode: status, Body: body}
}

func requiredString(body map[string]any, key string) (string, error) {
	v, ok := body[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is %T, want string", key, v)
	}
	if s == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	return s, nil
}

// seconds parses expires_in. JSON numbers may arrive as json.Number or
// float64 depending on how the body was decoded.
func seconds(v any) (int64, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return 0, errors.New("missing expires_in")
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("expires_in %q is not an integer", x.String())
		}
		n = i
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("expires_in %v is not an integer", x)
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	default:
		return 0, fmt.Errorf("expires_in is %T, want number", v)
	}
	if n < 0 {
		return 0, fmt.Errorf("expires_in %d is negative", n)
	}
	return n, nil
}
