package benelink

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryLead is how long before expiry a TokenSource refreshes.
const DefaultExpiryLead = 60 * time.Second

// TokenSourceOptions tunes TokenSource behavior. The zero value is valid.
type TokenSourceOptions struct {
	// ExpiryLead is how long before expiry the source refreshes. Zero selects
	// DefaultExpiryLead.
	ExpiryLead time.Duration

	// OnRefresh observes every refreshed token, for persistence by the
	// caller. It runs synchronously on the refreshing goroutine.
	OnRefresh func(*AuthorizationToken)
}

// TokenSource adapts a Client to the golang.org/x/oauth2 TokenSource
// contract. It serves the current token until the expiry lead, then
// refreshes through the refresh grant. Concurrent Token calls share a
// single refresh; a refreshed token supersedes the prior one, which is
// never mutated.
type TokenSource struct {
	client *Client
	ctx    context.Context
	lead   time.Duration

	onRefresh func(*AuthorizationToken)

	mu      sync.Mutex
	current *AuthorizationToken
	group   singleflight.Group
}

// TokenSource returns a source seeded with token. The context applies to
// every refresh request the source performs.
//
// Parameters:
//   - ctx: The context for refresh requests
//   - token: The seed credential; it must carry a refresh token for the source to outlive it
//   - opts: Optional tuning; nil selects defaults
//
// Returns:
//   - *TokenSource: A source satisfying oauth2.TokenSource
func (c *Client) TokenSource(ctx context.Context, token *AuthorizationToken, opts *TokenSourceOptions) *TokenSource {
	if opts == nil {
		opts = &TokenSourceOptions{}
	}
	lead := opts.ExpiryLead
	if lead <= 0 {
		lead = DefaultExpiryLead
	}
	return &TokenSource{
		client:    c,
		ctx:       ctx,
		lead:      lead,
		onRefresh: opts.OnRefresh,
		current:   token,
	}
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

// Token returns a valid oauth2 token, refreshing first when the current one
// expires within the lead.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current != nil && !current.ExpiresWithin(s.lead) {
		return oauth2Token(current), nil
	}

	refreshed, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh()
	})
	if err != nil {
		return nil, err
	}
	return oauth2Token(refreshed.(*AuthorizationToken)), nil
}

// Current returns the token the source would serve right now, for callers
// that need the platform fields (Patient, Scope) oauth2.Token drops.
func (s *TokenSource) Current() *AuthorizationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// refresh runs inside the singleflight group, so at most one network refresh
// is in flight however many goroutines observed an expiring token.
func (s *TokenSource) refresh() (*AuthorizationToken, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	// A caller that lost the singleflight race finds a fresh token here.
	if current != nil && !current.ExpiresWithin(s.lead) {
		return current, nil
	}
	if current == nil || current.RefreshToken == "" {
		return nil, fmt.Errorf("benelink: token source has no refresh token")
	}

	refreshed, err := s.client.Refresh(s.ctx, current)
	if err != nil {
		return nil, err
	}
	log.Debugf("access token refreshed for patient %s", refreshed.Patient)

	s.mu.Lock()
	s.current = refreshed
	s.mu.Unlock()

	if s.onRefresh != nil {
		s.onRefresh(refreshed)
	}
	return refreshed, nil
}

// oauth2Token maps an AuthorizationToken onto the oauth2 field set.
func oauth2Token(t *AuthorizationToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}
