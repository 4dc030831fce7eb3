package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Version:      "2",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		CallbackURL:  "https://cb.example/callback",
	}
}

func TestBuildTokenPostDataOmitsEmptyCode(t *testing.T) {
	cfg := testConfig("https://sandbox.example.gov")
	data := &AuthData{CodeVerifier: "V1", CodeChallenge: "C1", State: "S1"}

	withCode := BuildTokenPostData(cfg, data, "abc").Values()
	if got := withCode.Get("code"); got != "abc" {
		t.Errorf("expected code abc, got %q", got)
	}

	withoutCode := BuildTokenPostData(cfg, data, "").Values()
	if _, present := withoutCode["code"]; present {
		t.Error("expected code key to be absent when code is empty")
	}

	for key, want := range map[string]string{
		"client_id":      "client-1",
		"client_secret":  "secret-1",
		"grant_type":     "authorization_code",
		"redirect_uri":   "https://cb.example/callback",
		"code_verifier":  "V1",
		"code_challenge": "C1",
	} {
		if got := withCode.Get(key); got != want {
			t.Errorf("parameter %s: expected %q, got %q", key, want, got)
		}
	}
}

func TestExchangeCodeHappyPath(t *testing.T) {
	data := &AuthData{CodeVerifier: "V1", CodeChallenge: "C1", State: "S1"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v2/o/token/" {
			t.Errorf("expected path /v2/o/token/, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("expected form content type, got %q", ct)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "benelink-go/") {
			t.Errorf("expected SDK user agent, got %q", ua)
		}

		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		for key, want := range map[string]string{
			"client_id":      "client-1",
			"client_secret":  "secret-1",
			"code":           "abc",
			"grant_type":     "authorization_code",
			"redirect_uri":   "https://cb.example/callback",
			"code_verifier":  "V1",
			"code_challenge": "C1",
		} {
			if got := r.PostFormValue(key); got != want {
				t.Errorf("form %s: expected %q, got %q", key, want, got)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","expires_in":60,"token_type":"Bearer","scope":["profile"],"refresh_token":"r","patient":"p1"}`))
	}))
	defer server.Close()

	token, err := ExchangeCode(context.Background(), server.Client(), testConfig(server.URL), data, "abc", "S1", "")
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}

	if token.AccessToken != "a" || token.TokenType != "Bearer" || token.RefreshToken != "r" || token.Patient != "p1" {
		t.Errorf("unexpected token fields: %+v", token)
	}
	if len(token.Scope) != 1 || token.Scope[0] != "profile" {
		t.Errorf("unexpected scope: %v", token.Scope)
	}
	if token.ExpiresIn != 60 {
		t.Errorf("expected ExpiresIn 60, got %d", token.ExpiresIn)
	}
}

func TestExchangeCodeValidationFailureSkipsNetwork(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	data := &AuthData{CodeVerifier: "V1", CodeChallenge: "C1", State: "S1"}

	_, err := ExchangeCode(context.Background(), server.Client(), testConfig(server.URL), data, "abc", "WRONG", "")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no network call on validation failure, got %d", calls)
	}
}

func TestExchangeCodeEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	data := &AuthData{CodeVerifier: "V1", CodeChallenge: "C1", State: "S1"}

	_, err := ExchangeCode(context.Background(), server.Client(), testConfig(server.URL), data, "abc", "S1", "")
	if !errors.Is(err, ErrTokenResponseEmpty) {
		t.Fatalf("expected ErrTokenResponseEmpty, got %v", err)
	}
}

func TestExchangeCodeNon200Propagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	data := &AuthData{CodeVerifier: "V1", CodeChallenge: "C1", State: "S1"}

	_, err := ExchangeCode(context.Background(), server.Client(), testConfig(server.URL), data, "abc", "S1", "")
	if err == nil {
		t.Fatal("expected error for 400 response, got nil")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("expected status in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("expected body in error, got %v", err)
	}
}

func TestRefreshTokenHappyPath(t *testing.T) {
	existing := &AuthorizationToken{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v2/o/token/" {
			t.Errorf("expected path /v2/o/token/, got %s", r.URL.Path)
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-1" || pass != "secret-1" {
			t.Errorf("expected basic auth client-1:secret-1, got %q:%q (ok=%t)", user, pass, ok)
		}

		query := r.URL.Query()
		for key, want := range map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     "client-1",
			"refresh_token": "old-refresh",
		} {
			if got := query.Get(key); got != want {
				t.Errorf("query %s: expected %q, got %q", key, want, got)
			}
		}

		if r.ContentLength > 0 {
			t.Errorf("expected empty request body, got %d bytes", r.ContentLength)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","expires_in":3600,"token_type":"Bearer","scope":["profile"],"refresh_token":"new-refresh","patient":"p1"}`))
	}))
	defer server.Close()

	refreshed, err := RefreshToken(context.Background(), server.Client(), testConfig(server.URL), existing)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}

	if refreshed == existing {
		t.Fatal("refresh returned the same token instance")
	}
	if refreshed.AccessToken != "new-access" || refreshed.RefreshToken != "new-refresh" {
		t.Errorf("unexpected refreshed token: %+v", refreshed)
	}

	// The input token is superseded, never mutated.
	if existing.AccessToken != "old-access" || existing.RefreshToken != "old-refresh" {
		t.Errorf("input token mutated: %+v", existing)
	}
}

func TestRefreshTokenEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	existing := &AuthorizationToken{RefreshToken: "old-refresh"}

	// The empty-body check applies to refresh exactly as it does to exchange.
	_, err := RefreshToken(context.Background(), server.Client(), testConfig(server.URL), existing)
	if !errors.Is(err, ErrTokenResponseEmpty) {
		t.Fatalf("expected ErrTokenResponseEmpty, got %v", err)
	}
}

func TestRefreshTokenRequiresRefreshToken(t *testing.T) {
	cfg := testConfig("https://sandbox.example.gov")

	if _, err := RefreshToken(context.Background(), nil, cfg, nil); err == nil {
		t.Error("expected error for nil token, got nil")
	}
	if _, err := RefreshToken(context.Background(), nil, cfg, &AuthorizationToken{}); err == nil {
		t.Error("expected error for empty refresh token, got nil")
	}
}

func TestExchangeCodeHonorsContext(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	data := &AuthData{CodeVerifier: "V1", CodeChallenge: "C1", State: "S1"}
	_, err := ExchangeCode(ctx, server.Client(), testConfig(server.URL), data, "abc", "S1", "")
	if err == nil {
		t.Fatal("expected error after context cancellation, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}
