package tokenmanager

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Cardboard API root.
const DefaultBaseURL = "https://cardboard.ink/api/v1"

// Endpoint holds the token and revocation URLs.
type Endpoint struct {
	TokenURL  string
	RevokeURL string
}

// DefaultEndpoint is the production Cardboard endpoint.
var DefaultEndpoint = Endpoint{
	TokenURL:  DefaultBaseURL + "/token",
	RevokeURL: DefaultBaseURL + "/token/revoke",
}

// EndpointFromBaseURL derives the token and revocation URLs from an API root
// such as "https://cardboard.ink/api/v1".
func EndpointFromBaseURL(baseURL string) (Endpoint, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoint{}, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	base := strings.TrimRight(u.String(), "/")
	return Endpoint{
		TokenURL:  base + "/token",
		RevokeURL: base + "/token/revoke",
	}, nil
}

// OAuth2 returns the endpoint in x/oauth2 form. authURL is the application's
// authorization page, which Cardboard issues per application.
func (e Endpoint) OAuth2(authURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   authURL,
		TokenURL:  e.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
