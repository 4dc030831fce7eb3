package logging

import (
	"strings"
	"testing"
)

func TestRedactBodyJSON(t *testing.T) {
	body := []byte(`{"access_token":"tok_abcdefghijklmnop","refresh_token":"ref_abcdefghijklmnop","expires_in":3600,"patient":"p1"}`)

	redacted := string(RedactBody(body, "application/json"))

	if strings.Contains(redacted, "tok_abcdefghijklmnop") || strings.Contains(redacted, "ref_abcdefghijklmnop") {
		t.Errorf("raw tokens present after redaction: %s", redacted)
	}
	if !strings.Contains(redacted, `"access_token":"tok_...mnop"`) {
		t.Errorf("expected masked access token, got %s", redacted)
	}
	if !strings.Contains(redacted, `"expires_in":3600`) {
		t.Errorf("non-secret field changed: %s", redacted)
	}
	if !strings.Contains(redacted, `"patient":"p1"`) {
		t.Errorf("patient field changed: %s", redacted)
	}
}

func TestRedactBodyForm(t *testing.T) {
	body := []byte("grant_type=authorization_code&client_secret=supersecretvalue&redirect_uri=http%3A%2F%2Flocalhost%3A9445%2Fcallback")

	redacted := string(RedactBody(body, "application/x-www-form-urlencoded"))

	if strings.Contains(redacted, "supersecretvalue") {
		t.Errorf("raw client secret present after redaction: %s", redacted)
	}
	if !strings.Contains(redacted, "grant_type=authorization_code") {
		t.Errorf("benign parameter changed: %s", redacted)
	}
}

func TestRedactBodyJSONWithoutContentType(t *testing.T) {
	body := []byte(`  {"access_token":"tok_abcdefghijklmnop"}`)

	redacted := string(RedactBody(body, ""))
	if strings.Contains(redacted, "tok_abcdefghijklmnop") {
		t.Errorf("raw token present after redaction: %s", redacted)
	}
}

func TestRedactBodyPassthrough(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{name: "plain text", body: "hello world", contentType: "text/plain"},
		{name: "invalid json", body: `{"access_token": oops`, contentType: "application/json"},
		{name: "empty", body: "", contentType: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(RedactBody([]byte(tt.body), tt.contentType))
			if got != tt.body {
				t.Errorf("expected passthrough, got %q", got)
			}
		})
	}
}
