package benelink

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benelink/benelink-go/internal/auth"
)

// refreshCountingServer answers the refresh grant with a numbered access
// token so tests can tell refreshes apart.
func refreshCountingServer(t *testing.T, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"access_token": "tok_refresh_%d",
			"expires_in": 3600,
			"token_type": "Bearer",
			"refresh_token": "ref_next_%d",
			"patient": "-20140000008325"
		}`, n, n)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func expiringToken(lifetime time.Duration) *AuthorizationToken {
	return auth.TokenFromPayload(&auth.TokenPayload{
		AccessToken:  "tok_seed",
		TokenType:    "Bearer",
		RefreshToken: "ref_seed",
		Patient:      "-20140000008325",
		ExpiresAt:    time.Now().Add(lifetime).UnixMilli(),
	})
}

func TestTokenSourceServesCurrentToken(t *testing.T) {
	server, calls := refreshCountingServer(t, 0)
	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	seed := expiringToken(time.Hour)
	source := client.TokenSource(context.Background(), seed, nil)

	tok, err := source.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "tok_seed" {
		t.Errorf("access token = %q, want the seed token", tok.AccessToken)
	}
	if tok.TokenType != "Bearer" || tok.RefreshToken != "ref_seed" {
		t.Errorf("token mapping = %+v", tok)
	}
	if !tok.Expiry.Equal(seed.ExpiresAt) {
		t.Errorf("expiry = %v, want %v", tok.Expiry, seed.ExpiresAt)
	}
	if calls.Load() != 0 {
		t.Errorf("refresh calls = %d for a fresh token, want 0", calls.Load())
	}
}

func TestTokenSourceRefreshesWithinLead(t *testing.T) {
	server, calls := refreshCountingServer(t, 0)
	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var observed *AuthorizationToken
	seed := expiringToken(10 * time.Second) // inside the 60s default lead
	source := client.TokenSource(context.Background(), seed, &TokenSourceOptions{
		OnRefresh: func(tok *AuthorizationToken) { observed = tok },
	})

	tok, err := source.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "tok_refresh_1" {
		t.Errorf("access token = %q, want the refreshed token", tok.AccessToken)
	}
	if calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", calls.Load())
	}
	if observed == nil || observed.AccessToken != "tok_refresh_1" {
		t.Errorf("OnRefresh observed %+v", observed)
	}
	if seed.AccessToken != "tok_seed" {
		t.Error("refresh mutated the seed token")
	}
	if current := source.Current(); current.AccessToken != "tok_refresh_1" {
		t.Errorf("Current() = %q", current.AccessToken)
	}
}

func TestTokenSourceDeduplicatesConcurrentRefreshes(t *testing.T) {
	server, calls := refreshCountingServer(t, 50*time.Millisecond)
	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	source := client.TokenSource(context.Background(), expiringToken(time.Second), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, errToken := source.Token(); errToken != nil {
				t.Errorf("Token: %v", errToken)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("refresh calls = %d for 10 concurrent Token calls, want 1", n)
	}
}

func TestTokenSourceCustomLead(t *testing.T) {
	server, calls := refreshCountingServer(t, 0)
	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// 10 minutes of life is inside a 15 minute lead.
	source := client.TokenSource(context.Background(), expiringToken(10*time.Minute), &TokenSourceOptions{
		ExpiryLead: 15 * time.Minute,
	})
	if _, err := source.Token(); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", calls.Load())
	}
}

func TestTokenSourceWithoutRefreshToken(t *testing.T) {
	server, _ := refreshCountingServer(t, 0)
	client, err := NewClient(testClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	seed := auth.TokenFromPayload(&auth.TokenPayload{
		AccessToken: "tok_seed",
		ExpiresAt:   time.Now().Add(-time.Minute).UnixMilli(),
	})
	source := client.TokenSource(context.Background(), seed, nil)
	if _, err := source.Token(); err == nil {
		t.Fatal("expected error for an expired token without refresh token")
	}
}
