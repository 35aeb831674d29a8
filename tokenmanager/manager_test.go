package tokenmanager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testCreds = Credentials{ClientID: "client-123", ClientSecret: "secret-456"}

var testEndpoint = Endpoint{
	TokenURL:  "https://cardboard.test/api/v1/token",
	RevokeURL: "https://cardboard.test/api/v1/token/revoke",
}

func tokenBody(access, refresh string, expiresIn int64) map[string]any {
	return map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"refresh_token": refresh,
		"expires_in":    json.Number(strconv.FormatInt(expiresIn, 10)),
		"scope":         "identify",
	}
}

func newTestManager(t *testing.T, transport Transport) *Manager {
	t.Helper()
	m, err := New(testCreds, WithTransport(transport), WithEndpoint(testEndpoint))
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		creds     Credentials
		wantField string
	}{
		{name: "missing client id", creds: Credentials{ClientSecret: "s"}, wantField: "client_id"},
		{name: "blank client id", creds: Credentials{ClientID: "  ", ClientSecret: "s"}, wantField: "client_id"},
		{name: "missing client secret", creds: Credentials{ClientID: "c"}, wantField: "client_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No expectations: any transport call fails the test.
			transport := NewMockTransport(ctrl)

			_, err := New(tt.creds, WithTransport(transport))
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)

			_, err = NewAsync(tt.creds, WithTransport(transport))
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}

	t.Run("empty endpoint", func(t *testing.T) {
		_, err := New(testCreds, WithEndpoint(Endpoint{}))
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "token_url", cfgErr.Field)
	})

	t.Run("defaults", func(t *testing.T) {
		m, err := New(testCreds)
		require.NoError(t, err)
		assert.Equal(t, DefaultEndpoint, m.core.endpoint)
		assert.IsType(t, &HTTPTransport{}, m.core.transport)
	})
}

func TestManagerExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns record matching body", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		transport := NewMockTransport(ctrl)
		body := tokenBody("access-1", "refresh-1", 3600)

		transport.EXPECT().
			Request(gomock.Any(), http.MethodPost, testEndpoint.TokenURL, map[string]string{
				"client_id":     "client-123",
				"client_secret": "secret-456",
				"code":          "the-code",
				"grant_type":    "authorization_code",
			}).
			Return(http.StatusOK, body, nil)

		record, err := newTestManager(t, transport).ExchangeCode(ctx, "the-code")
		require.NoError(t, err)
		assert.Equal(t, "access-1", record.AccessToken)
		assert.Equal(t, "Bearer", record.TokenType)
		assert.Equal(t, "refresh-1", record.RefreshToken)
		assert.Equal(t, int64(3600), record.ExpiresIn)
		assert.Equal(t, body, record.Raw())
	})

	t.Run("invalid grant", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		transport := NewMockTransport(ctrl)
		body := map[string]any{"error": "invalid_grant"}

		transport.EXPECT().
			Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(http.StatusBadRequest, body, nil).
			Times(1)

		_, err := newTestManager(t, transport).ExchangeCode(ctx, "used-code")
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
		assert.Equal(t, body, authErr.Body)
		assert.Equal(t, "invalid_grant", authErr.Code())
		assert.Equal(t, "exchange", authErr.Op)
	})

	t.Run("empty code makes no request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		transport := NewMockTransport(ctrl)

		_, err := newTestManager(t, transport).ExchangeCode(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("transport failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		transport := NewMockTransport(ctrl)
		boom := errors.New("connection refused")

		transport.EXPECT().
			Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(0, nil, boom)

		_, err := newTestManager(t, transport).ExchangeCode(ctx, "code")
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Zero(t, authErr.StatusCode)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("undecodable body keeps status", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		transport := NewMockTransport(ctrl)
		decodeErr := &DecodeError{StatusCode: http.StatusBadGateway, Raw: []byte("<html>")}

		transport.EXPECT().
			Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(http.StatusBadGateway, nil, decodeErr)

		_, err := newTestManager(t, transport).ExchangeCode(ctx, "code")
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusBadGateway, authErr.StatusCode)
		assert.ErrorIs(t, err, decodeErr)
	})
}

func TestManagerMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing access token", body: map[string]any{"token_type": "Bearer", "refresh_token": "r", "expires_in": json.Number("10")}},
		{name: "empty refresh token", body: map[string]any{"access_token": "a", "token_type": "Bearer", "refresh_token": "", "expires_in": json.Number("10")}},
		{name: "missing token type", body: map[string]any{"access_token": "a", "refresh_token": "r", "expires_in": json.Number("10")}},
		{name: "missing expires in", body: map[string]any{"access_token": "a", "token_type": "Bearer", "refresh_token": "r"}},
		{name: "negative expires in", body: map[string]any{"access_token": "a", "token_type": "Bearer", "refresh_token": "r", "expires_in": json.Number("-1")}},
		{name: "fractional expires in", body: map[string]any{"access_token": "a", "token_type": "Bearer", "refresh_token": "r", "expires_in": 1.5}},
		{name: "access token not a string", body: map[string]any{"access_token": 42.0, "token_type": "Bearer", "refresh_token": "r", "expires_in": json.Number("10")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			transport := NewMockTransport(ctrl)
			transport.EXPECT().
				Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(http.StatusOK, tt.body, nil)

			_, err := newTestManager(t, transport).Refresh(context.Background(), "refresh")
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, http.StatusOK, authErr.StatusCode)
			assert.Equal(t, tt.body, authErr.Body)
			assert.Error(t, authErr.Err)
		})
	}
}

func TestManagerRefresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		transport.EXPECT().
			Request(gomock.Any(), http.MethodPost, testEndpoint.TokenURL, map[string]string{
				"client_id":     "client-123",
				"client_secret": "secret-456",
				"refresh_token": "refresh-0",
				"grant_type":    "refresh_token",
			}).
			Return(http.StatusOK, tokenBody("access-1", "refresh-1", 3600), nil),
		transport.EXPECT().
			Request(gomock.Any(), http.MethodPost, testEndpoint.TokenURL, gomock.Any()).
			Return(http.StatusOK, tokenBody("access-2", "refresh-2", 7200), nil),
	)

	m := newTestManager(t, transport)

	first, err := m.Refresh(ctx, "refresh-0")
	require.NoError(t, err)
	snapshot := first
	snapshotRaw := first.Raw()

	second, err := m.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "access-2", second.AccessToken)
	assert.Equal(t, int64(7200), second.ExpiresIn)
	assert.Equal(t, snapshot, first)
	assert.Equal(t, snapshotRaw, first.Raw())

	// Mutating a copy of the raw response does not reach the record.
	raw := first.Raw()
	raw["access_token"] = "tampered"
	assert.Equal(t, "access-1", first.Raw()["access_token"])
}

func TestManagerRevoke(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       map[string]any
		want       bool
		wantStatus int
	}{
		{name: "revoked", status: http.StatusOK, body: map[string]any{}, want: true},
		{name: "no content", status: http.StatusNoContent, body: map[string]any{}, want: true},
		{name: "not found", status: http.StatusNotFound, body: map[string]any{"error": "not_found"}, want: false},
		{name: "invalid token", status: http.StatusBadRequest, body: map[string]any{"error": "invalid_token"}, want: false},
		{name: "unauthorized invalid grant", status: http.StatusUnauthorized, body: map[string]any{"error": "invalid_grant"}, want: false},
		{name: "bad request other", status: http.StatusBadRequest, body: map[string]any{"error": "invalid_client"}, wantStatus: http.StatusBadRequest},
		{name: "server error", status: http.StatusInternalServerError, body: map[string]any{}, wantStatus: http.StatusInternalServerError},
		{name: "unexpected redirect", status: http.StatusFound, body: map[string]any{}, wantStatus: http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			transport := NewMockTransport(ctrl)
			transport.EXPECT().
				Request(gomock.Any(), http.MethodPost, testEndpoint.RevokeURL, map[string]string{
					"client_id":     "client-123",
					"client_secret": "secret-456",
					"token":         "access-1",
				}).
				Return(tt.status, tt.body, nil)

			got, err := newTestManager(t, transport).Revoke(context.Background(), "access-1")
			if tt.wantStatus != 0 {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.wantStatus, authErr.StatusCode)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenRecordExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := NewMockTransport(ctrl)
	transport.EXPECT().
		Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(http.StatusOK, tokenBody("access-1", "refresh-1", 600), nil)

	record, err := newTestManager(t, transport).ExchangeCode(context.Background(), "code")
	require.NoError(t, err)

	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, issuedAt.Add(10*time.Minute), record.ExpiresAt(issuedAt))

	tok := record.OAuth2Token(issuedAt)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, issuedAt.Add(10*time.Minute), tok.Expiry)
	assert.Equal(t, "identify", tok.Extra("scope"))

	// expires_in 0 carries no expiry.
	noExpiry := TokenRecord{AccessToken: "access-2", TokenType: "Bearer", RefreshToken: "refresh-2"}
	assert.True(t, noExpiry.ExpiresAt(issuedAt).IsZero())
	assert.True(t, noExpiry.OAuth2Token(issuedAt).Valid())
}
