package auth

import (
	"time"
)

// tokenResponse mirrors the JSON payload of the token endpoint. Both the
// exchange and refresh paths return this shape.
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	ExpiresIn    int64    `json:"expires_in"`
	TokenType    string   `json:"token_type"`
	Scope        []string `json:"scope"`
	RefreshToken string   `json:"refresh_token"`
	Patient      string   `json:"patient"`

	// ExpiresAt is the absolute expiry in milliseconds since the epoch. It is
	// optional; when present the server value takes precedence over the
	// computed expiry.
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// AuthorizationToken represents one issued or refreshed credential. It is
// immutable after construction; a refresh produces a brand-new instance and
// never mutates the token it was derived from.
type AuthorizationToken struct {
	// AccessToken is the bearer credential for data-plane requests.
	AccessToken string

	// TokenType is the token scheme reported by the server, normally "Bearer".
	TokenType string

	// Scope lists the granted scopes.
	Scope []string

	// RefreshToken obtains the next credential when this one expires.
	RefreshToken string

	// Patient is the opaque subject identifier the credential is bound to.
	Patient string

	// ExpiresIn is the lifetime in seconds as returned by the server.
	ExpiresIn int64

	// ExpiresAt is the absolute expiry instant. It is always populated:
	// copied from the server when supplied, computed from ExpiresIn otherwise.
	ExpiresAt time.Time
}

// newAuthorizationToken builds a token from a server response, anchoring the
// computed expiry at the supplied construction time.
func newAuthorizationToken(resp *tokenResponse, now time.Time) *AuthorizationToken {
	expiresAt := now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	if resp.ExpiresAt != 0 {
		expiresAt = time.UnixMilli(resp.ExpiresAt)
	}

	scope := make([]string, len(resp.Scope))
	copy(scope, resp.Scope)

	return &AuthorizationToken{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		Scope:        scope,
		RefreshToken: resp.RefreshToken,
		Patient:      resp.Patient,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    expiresAt,
	}
}

// Expired reports whether the token's expiry instant has passed.
func (t *AuthorizationToken) Expired() bool {
	return t.ExpiresWithin(0)
}

// ExpiresWithin reports whether the token expires before now plus lead.
func (t *AuthorizationToken) ExpiresWithin(lead time.Duration) bool {
	return !t.ExpiresAt.After(time.Now().Add(lead))
}

// TokenPayload is the canonical wire-format projection of an
// AuthorizationToken: snake_case keys and a millisecond-epoch expiry, the
// shape persisted by token stores and consumed by other BeneLink SDKs.
type TokenPayload struct {
	AccessToken  string   `json:"access_token"`
	ExpiresIn    int64    `json:"expires_in"`
	TokenType    string   `json:"token_type"`
	Scope        []string `json:"scope"`
	RefreshToken string   `json:"refresh_token"`
	Patient      string   `json:"patient"`
	ExpiresAt    int64    `json:"expires_at"`
}

// Payload returns the canonical wire-format projection of the token.
func (t *AuthorizationToken) Payload() *TokenPayload {
	scope := make([]string, len(t.Scope))
	copy(scope, t.Scope)

	return &TokenPayload{
		AccessToken:  t.AccessToken,
		ExpiresIn:    t.ExpiresIn,
		TokenType:    t.TokenType,
		Scope:        scope,
		RefreshToken: t.RefreshToken,
		Patient:      t.Patient,
		ExpiresAt:    t.ExpiresAt.UnixMilli(),
	}
}

// TokenFromPayload rebuilds an AuthorizationToken from its wire-format
// projection, for callers that persisted one earlier.
func TokenFromPayload(p *TokenPayload) *AuthorizationToken {
	scope := make([]string, len(p.Scope))
	copy(scope, p.Scope)

	return &AuthorizationToken{
		AccessToken:  p.AccessToken,
		TokenType:    p.TokenType,
		Scope:        scope,
		RefreshToken: p.RefreshToken,
		Patient:      p.Patient,
		ExpiresIn:    p.ExpiresIn,
		ExpiresAt:    time.UnixMilli(p.ExpiresAt),
	}
}
