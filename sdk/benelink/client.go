// Package benelink is the public SDK surface for the BeneLink beneficiary
// claims platform. A Client bundles the OAuth2 Authorization Code + PKCE
// flow (authorize URL, callback validation, code exchange, refresh), an
// interactive login helper, bearer-authenticated FHIR resource fetchers,
// and an oauth2.TokenSource adapter behind one configuration value.
package benelink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/auth"
	"github.com/benelink/benelink-go/internal/config"
	"github.com/benelink/benelink-go/internal/logging"
	"github.com/benelink/benelink-go/internal/util"
)

// DefaultTimeout bounds every outbound HTTP request when Config.Timeout is
// left zero.
const DefaultTimeout = 30 * time.Second

// Config carries the settings for one Client. The zero value plus ClientID,
// ClientSecret, and CallbackURL targets the BeneLink sandbox.
type Config struct {
	// BaseURL is the platform origin. Empty selects the sandbox.
	BaseURL string

	// Version selects the API version path segment. Empty selects "2".
	Version string

	// ClientID identifies the registered application.
	ClientID string

	// ClientSecret authenticates the application on token requests.
	ClientSecret string

	// CallbackURL is the redirect target registered for the application. The
	// interactive login flow derives its local listener port and path from it.
	CallbackURL string

	// Timeout bounds each outbound request. Zero selects DefaultTimeout.
	Timeout time.Duration

	// ProxyURL routes outbound requests through an http, https, or socks5
	// proxy when non-empty.
	ProxyURL string

	// RequestLog enables per-exchange wire logs under LogsDir.
	RequestLog bool

	// LogsDir is the wire-log directory. Empty selects "logs".
	LogsDir string
}

// Client is the entry point for all BeneLink operations. It is safe for
// concurrent use; construction is the only mutation.
type Client struct {
	cfg        auth.Config
	httpClient *http.Client
	wireLogger *logging.WireLogger
	generator  *auth.Generator
}

// NewClient validates and normalizes cfg and builds the shared HTTP client.
//
// Parameters:
//   - cfg: The client settings; ClientID, ClientSecret, and CallbackURL are required
//
// Returns:
//   - *Client: The ready-to-use client
//   - error: A validation error when required settings are missing
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("benelink: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("benelink: client secret is required")
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, fmt.Errorf("benelink: callback url is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = config.DefaultVersion
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	httpClient = util.SetProxy(cfg.ProxyURL, httpClient)

	client := &Client{
		cfg: auth.Config{
			BaseURL:      baseURL,
			Version:      version,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			CallbackURL:  cfg.CallbackURL,
		},
		httpClient: httpClient,
		generator:  &auth.Generator{},
	}

	if cfg.RequestLog {
		logsDir := strings.TrimSpace(cfg.LogsDir)
		if logsDir == "" {
			logsDir = "logs"
		}
		client.wireLogger = logging.NewWireLogger(true, logsDir)
		httpClient.Transport = logging.NewLoggingRoundTripper(httpClient.Transport, client.wireLogger)
		log.Debugf("request logging enabled, writing to %s", logsDir)
	}

	return client, nil
}

// CallbackURL returns the registered redirect target.
func (c *Client) CallbackURL() string {
	return c.cfg.CallbackURL
}

// GenerateAuthData produces the PKCE material and anti-CSRF state for one
// authorization attempt.
func (c *Client) GenerateAuthData() (*AuthData, error) {
	return c.generator.GenerateAuthData()
}

// AuthorizeURL builds the URL the end user's browser must visit for the
// given authorization attempt.
func (c *Client) AuthorizeURL(data *AuthData) (string, error) {
	return auth.BuildAuthorizeURL(c.cfg, data)
}

// ExchangeCode validates the callback parameters against the attempt's
// AuthData and exchanges the authorization code for a token. Validation
// failures surface as flow errors before any network activity.
//
// Parameters:
//   - ctx: The context for the outbound request
//   - data: The AuthData generated when the attempt started
//   - code, state, errParam: The callback query parameters, empty when absent
//
// Returns:
//   - *AuthorizationToken: The issued credential
//   - error: A flow error or transport error
func (c *Client) ExchangeCode(ctx context.Context, data *AuthData, code, state, errParam string) (*AuthorizationToken, error) {
	return auth.ExchangeCode(ctx, c.httpClient, c.cfg, data, code, state, errParam)
}

// Refresh obtains a new token using the refresh grant. The input token is
// never mutated; the result is a brand-new instance.
func (c *Client) Refresh(ctx context.Context, token *AuthorizationToken) (*AuthorizationToken, error) {
	return auth.RefreshToken(ctx, c.httpClient, c.cfg, token)
}
