package tokenmanager

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when an operation is called with an empty
// code or token. No request is made.
var ErrInvalidArgument = errors.New("invalid argument")

// ConfigurationError reports unusable client credentials. It is detected
// before any network call.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("tokenmanager: invalid configuration: %s %s", e.Field, e.Reason)
}

// AuthError reports a failed token endpoint call: a non-2xx status, a
// response missing required fields, or a transport failure. StatusCode is 0
// when no response was received.
type AuthError struct {
	// Op is the operation that failed (exchange, refresh or revoke).
	Op         string
	StatusCode int
	// Body is the decoded response body, if any.
	Body map[string]any
	Err  error
}

func (e *AuthError) Error() string {
	msg := "tokenmanager: " + e.Op + " failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if code := e.Code(); code != "" {
		msg += ": " + code
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Code returns the OAuth "error" field of the response body, or "".
func (e *AuthError) Code() string {
	if e.Body == nil {
		return ""
	}
	code, _ := e.Body["error"].(string)
	return code
}

// DecodeError is returned by a Transport when the response body is not a JSON
// object.
type DecodeError struct {
	StatusCode int
	Raw        []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response with status %d: %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
