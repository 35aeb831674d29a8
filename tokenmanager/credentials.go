package tokenmanager

import "strings"

// Credentials identify the OAuth client to the token endpoint.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// validate reports the first missing credential as a *ConfigurationError.
func (c Credentials) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return &ConfigurationError{Field: "client_id", Reason: "is empty"}
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return &ConfigurationError{Field: "client_secret", Reason: "is empty"}
	}
	return nil
}
