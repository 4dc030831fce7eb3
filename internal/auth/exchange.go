package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benelink/benelink-go/internal/buildinfo"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// TokenPostData is the exact key set transmitted in a token-exchange request
// body. It is built fresh per request and never reused.
type TokenPostData struct {
	ClientID      string
	ClientSecret  string
	Code          string
	GrantType     string
	RedirectURI   string
	CodeVerifier  string
	CodeChallenge string
}

// BuildTokenPostData assembles the request-body data for a token exchange.
// An empty code leaves the code key out of the serialized form, for contexts
// that do not carry an authorization code.
func BuildTokenPostData(cfg Config, data *AuthData, code string) *TokenPostData {
	post := &TokenPostData{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Code:         code,
		GrantType:    grantAuthorizationCode,
		RedirectURI:  cfg.CallbackURL,
	}
	if data != nil {
		post.CodeVerifier = data.CodeVerifier
		post.CodeChallenge = data.CodeChallenge
	}
	return post
}

// Values renders the post data as form values. An empty Code omits the key
// entirely rather than sending a blank value.
func (d *TokenPostData) Values() url.Values {
	values := url.Values{}
	values.Set("client_id", d.ClientID)
	values.Set("client_secret", d.ClientSecret)
	if d.Code != "" {
		values.Set("code", d.Code)
	}
	values.Set("grant_type", d.GrantType)
	values.Set("redirect_uri", d.RedirectURI)
	values.Set("code_verifier", d.CodeVerifier)
	values.Set("code_challenge", d.CodeChallenge)
	return values
}

// SetSDKHeaders applies the identification header set sent with every request
// to the BeneLink platform.
func SetSDKHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "benelink-go/"+buildinfo.Version)
	req.Header.Set("X-BeneLink-SDK", "go")
	req.Header.Set("X-BeneLink-SDK-Version", buildinfo.Version)
	req.Header.Set("Accept", "application/json")
}

// ExchangeCode validates the callback parameters for an authorization attempt
// and exchanges the authorization code for an AuthorizationToken.
//
// Validation failures surface unchanged (see ValidateCallback). Transport
// failures and non-200 statuses propagate as opaque errors: this protocol
// never retries and leaves status-code policy to the caller.
//
// Parameters:
//   - ctx: The context for the outbound request
//   - httpClient: The transport collaborator; nil falls back to http.DefaultClient
//   - cfg: The client settings for this attempt
//   - data: The AuthData generated when the attempt started
//   - code, state, errParam: The callback parameters, empty when absent
//
// Returns:
//   - *AuthorizationToken: The issued credential
//   - error: A flow error or opaque transport error
func ExchangeCode(ctx context.Context, httpClient *http.Client, cfg Config, data *AuthData, code, state, errParam string) (*AuthorizationToken, error) {
	if data == nil {
		return nil, fmt.Errorf("auth data is required for token exchange")
	}
	if err := ValidateCallback(data, code, state, errParam); err != nil {
		return nil, err
	}

	form := BuildTokenPostData(cfg, data, code).Values()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.tokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	SetSDKHeaders(req)

	return doTokenRequest(httpClient, req)
}

// RefreshToken obtains a new AuthorizationToken using the refresh grant. The
// request carries an empty body, HTTP Basic authentication with the client
// credentials, and the grant parameters in the query string. The input token
// is never mutated; the result is a brand-new instance.
func RefreshToken(ctx context.Context, httpClient *http.Client, cfg Config, token *AuthorizationToken) (*AuthorizationToken, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	query := url.Values{}
	query.Set("grant_type", grantRefreshToken)
	query.Set("client_id", cfg.ClientID)
	query.Set("refresh_token", token.RefreshToken)
	endpoint := fmt.Sprintf("%s?%s", cfg.tokenEndpoint(), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
	SetSDKHeaders(req)

	return doTokenRequest(httpClient, req)
}

// doTokenRequest performs a token request and decodes the response into an
// AuthorizationToken. The exchange and refresh paths share it, so the
// empty-body check applies to both.
func doTokenRequest(httpClient *http.Client, req *http.Request) (*AuthorizationToken, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrTokenResponseEmpty
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return newAuthorizationToken(&tokenResp, time.Now()), nil
}
