package auth

import (
	"fmt"
	"net/url"
)

// BuildAuthorizeURL builds the URL the end user's browser must visit to start
// an authorization attempt. Every dynamic segment is percent-encoded for use
// in a query string. The function performs no network activity; a malformed
// base URL is the caller's responsibility.
func BuildAuthorizeURL(cfg Config, data *AuthData) (string, error) {
	if data == nil {
		return "", fmt.Errorf("auth data is required")
	}

	params := url.Values{
		"client_id":             {cfg.ClientID},
		"redirect_uri":          {cfg.CallbackURL},
		"state":                 {data.State},
		"response_type":         {"code"},
		"code_challenge_method": {"S256"},
		"code_challenge":        {data.CodeChallenge},
	}

	return fmt.Sprintf("%s?%s", cfg.authorizeEndpoint(), params.Encode()), nil
}
