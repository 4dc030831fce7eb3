package auth

import (
	"fmt"
	"strings"
)

// Config carries the client settings every protocol operation reads. It is an
// immutable value supplied fully formed by the facade; operations receive it
// by value and never mutate it.
type Config struct {
	// BaseURL is the authorization server origin, without a trailing slash.
	BaseURL string
	// Version selects the API version segment of every endpoint path.
	Version string
	// ClientID identifies the registered client application.
	ClientID string
	// ClientSecret authenticates the client on token requests.
	ClientSecret string
	// CallbackURL is the registered redirect target for this client.
	CallbackURL string
}

// authorizeEndpoint returns the authorization endpoint for this config.
func (c Config) authorizeEndpoint() string {
	return fmt.Sprintf("%s/v%s/o/authorize", strings.TrimRight(c.BaseURL, "/"), c.Version)
}

// tokenEndpoint returns the token endpoint for this config. The trailing
// slash is part of the server's route.
func (c Config) tokenEndpoint() string {
	return fmt.Sprintf("%s/v%s/o/token/", strings.TrimRight(c.BaseURL, "/"), c.Version)
}

// userinfoEndpoint returns the OpenID Connect userinfo endpoint.
func (c Config) userinfoEndpoint() string {
	return fmt.Sprintf("%s/v%s/connect/userinfo", strings.TrimRight(c.BaseURL, "/"), c.Version)
}

// UserinfoEndpoint exposes the userinfo endpoint for data-plane callers.
func (c Config) UserinfoEndpoint() string {
	return c.userinfoEndpoint()
}

// ResourceEndpoint returns the FHIR endpoint for a named resource type.
func (c Config) ResourceEndpoint(resource string) string {
	return fmt.Sprintf("%s/v%s/fhir/%s/", strings.TrimRight(c.BaseURL, "/"), c.Version, resource)
}
