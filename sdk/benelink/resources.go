package benelink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/benelink/benelink-go/internal/auth"
	"github.com/benelink/benelink-go/internal/util"
)

// acceptedEncodings lists the response encodings the SDK can decompress.
const acceptedEncodings = "gzip, deflate, br, zstd"

// ResourceOptions tunes a FHIR search request. The zero value requests the
// server defaults.
type ResourceOptions struct {
	// Count limits the number of resources per page (_count).
	Count int

	// StartIndex skips into the result set (startIndex).
	StartIndex int
}

func (o *ResourceOptions) query() url.Values {
	values := url.Values{}
	if o == nil {
		return values
	}
	if o.Count > 0 {
		values.Set("_count", strconv.Itoa(o.Count))
	}
	if o.StartIndex > 0 {
		values.Set("startIndex", strconv.Itoa(o.StartIndex))
	}
	return values
}

// Userinfo is the OpenID Connect profile of the authorized beneficiary.
type Userinfo struct {
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Patient    string `json:"patient"`
}

// Bundle wraps a FHIR searchset response. It keeps the raw JSON and answers
// structural questions through path lookups, so unmodeled fields stay
// available to callers via Raw.
type Bundle struct {
	raw []byte
}

// Raw returns the bundle's JSON exactly as the server sent it.
func (b *Bundle) Raw() []byte {
	return b.raw
}

// ResourceType returns the resourceType field, "Bundle" for searchsets.
func (b *Bundle) ResourceType() string {
	return gjson.GetBytes(b.raw, "resourceType").String()
}

// Total returns the server-reported total match count.
func (b *Bundle) Total() int64 {
	return gjson.GetBytes(b.raw, "total").Int()
}

// Entries returns the entry array as parsed results.
func (b *Bundle) Entries() []gjson.Result {
	return gjson.GetBytes(b.raw, "entry").Array()
}

// NextURL returns the pagination link with relation "next", or empty when
// this is the last page.
func (b *Bundle) NextURL() string {
	return gjson.GetBytes(b.raw, `link.#(relation=="next").url`).String()
}

// Userinfo fetches the beneficiary profile for the token.
//
// Parameters:
//   - ctx: The context for the outbound request
//   - token: The credential to authenticate with
//
// Returns:
//   - *Userinfo: The decoded profile
//   - error: A transport or status error
func (c *Client) Userinfo(ctx context.Context, token *AuthorizationToken) (*Userinfo, error) {
	body, err := c.getJSON(ctx, token, c.cfg.UserinfoEndpoint())
	if err != nil {
		return nil, err
	}
	var info Userinfo
	if errUnmarshal := json.Unmarshal(body, &info); errUnmarshal != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", errUnmarshal)
	}
	return &info, nil
}

// Patient fetches the beneficiary's Patient resources.
func (c *Client) Patient(ctx context.Context, token *AuthorizationToken, opts *ResourceOptions) (*Bundle, error) {
	return c.fetchBundle(ctx, token, c.cfg.ResourceEndpoint("Patient"), opts)
}

// Coverage fetches the beneficiary's Coverage resources.
func (c *Client) Coverage(ctx context.Context, token *AuthorizationToken, opts *ResourceOptions) (*Bundle, error) {
	return c.fetchBundle(ctx, token, c.cfg.ResourceEndpoint("Coverage"), opts)
}

// ExplanationOfBenefit fetches the beneficiary's claims data.
func (c *Client) ExplanationOfBenefit(ctx context.Context, token *AuthorizationToken, opts *ResourceOptions) (*Bundle, error) {
	return c.fetchBundle(ctx, token, c.cfg.ResourceEndpoint("ExplanationOfBenefit"), opts)
}

// NextPage follows a bundle's next link. It returns nil without error when
// the bundle is the last page.
func (c *Client) NextPage(ctx context.Context, token *AuthorizationToken, bundle *Bundle) (*Bundle, error) {
	if bundle == nil {
		return nil, fmt.Errorf("bundle is required")
	}
	next := bundle.NextURL()
	if next == "" {
		return nil, nil
	}
	body, err := c.getJSON(ctx, token, next)
	if err != nil {
		return nil, err
	}
	return &Bundle{raw: body}, nil
}

// fetchBundle performs a search request against a FHIR endpoint.
func (c *Client) fetchBundle(ctx context.Context, token *AuthorizationToken, endpoint string, opts *ResourceOptions) (*Bundle, error) {
	requestURL := endpoint
	if query := opts.query(); len(query) > 0 {
		requestURL = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}
	body, err := c.getJSON(ctx, token, requestURL)
	if err != nil {
		return nil, err
	}
	return &Bundle{raw: body}, nil
}

// getJSON performs a bearer-authenticated GET and returns the decompressed
// response body. Compression is negotiated explicitly so the body can be
// decoded regardless of which encoding the server picks.
func (c *Client) getJSON(ctx context.Context, token *AuthorizationToken, requestURL string) ([]byte, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource request: %w", err)
	}
	auth.SetSDKHeaders(req)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept-Encoding", acceptedEncodings)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resource request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource response: %w", err)
	}

	decompressed, errDecompress := util.DecompressBody(body, resp.Header.Get("Content-Encoding"))
	if errDecompress != nil {
		return nil, fmt.Errorf("failed to decompress resource response: %w", errDecompress)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("resource request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(snippet(decompressed)))
	}
	return decompressed, nil
}

// snippet truncates a response body for inclusion in an error message.
func snippet(body []byte) string {
	const max = 512
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
