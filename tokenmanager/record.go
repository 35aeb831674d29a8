package tokenmanager

import (
	"maps"
	"time"

	"golang.org/x/oauth2"
)

// TokenRecord is the result of a successful exchange or refresh. Records are
// values: a refresh returns a new record and never alters an earlier one.
type TokenRecord struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds, as issued.
	ExpiresIn int64

	raw map[string]any
}

// Raw returns a copy of the full token endpoint response.
func (r TokenRecord) Raw() map[string]any {
	return maps.Clone(r.raw)
}

// ExpiresAt returns the access token expiry for a record received at issuedAt.
// An expires_in of 0 means no expiry was given and yields the zero time.
func (r TokenRecord) ExpiresAt(issuedAt time.Time) time.Time {
	if r.ExpiresIn == 0 {
		return time.Time{}
	}
	return issuedAt.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// OAuth2Token converts the record to an *oauth2.Token for a record received
// at issuedAt. The raw response is available through Token.Extra.
func (r TokenRecord) OAuth2Token(issuedAt time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		Expiry:       r.ExpiresAt(issuedAt),
	}
	return tok.WithExtra(r.Raw())
}
