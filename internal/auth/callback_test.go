package auth

import (
	"errors"
	"testing"
)

func TestValidateCallbackPrecedence(t *testing.T) {
	data := &AuthData{State: "S1", CodeVerifier: "V1", CodeChallenge: "C1"}

	tests := []struct {
		name     string
		code     string
		state    string
		errParam string
		want     error
	}{
		{
			// access_denied wins even when code and state are also missing.
			name:     "access denied takes precedence",
			errParam: "access_denied",
			want:     ErrAccessDenied,
		},
		{
			name:  "missing code",
			state: "S1",
			want:  ErrAuthCodeMissing,
		},
		{
			name: "missing state",
			code: "abc",
			want: ErrStateMissing,
		},
		{
			name:  "state mismatch",
			code:  "abc",
			state: "WRONG",
			want:  ErrStateMismatch,
		},
		{
			name:  "valid callback",
			code:  "abc",
			state: "S1",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCallback(data, tt.code, tt.state, tt.errParam)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateCallbackIgnoresOtherErrorValues(t *testing.T) {
	data := &AuthData{State: "S1"}

	// Only access_denied short-circuits; anything else falls through to the
	// remaining checks.
	err := ValidateCallback(data, "abc", "S1", "temporarily_unavailable")
	if err != nil {
		t.Fatalf("expected non-access_denied error value to pass validation, got %v", err)
	}
}

func TestValidateCallbackNilAuthData(t *testing.T) {
	if err := ValidateCallback(nil, "abc", "S1", ""); err == nil {
		t.Error("expected error for nil auth data, got nil")
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCode  string
		wantState string
		wantErr   string
		wantNil   bool
		wantFail  bool
	}{
		{
			name:      "full url",
			input:     "https://cb.example/callback?code=abc&state=S1",
			wantCode:  "abc",
			wantState: "S1",
		},
		{
			name:      "bare query string",
			input:     "code=abc&state=S1",
			wantCode:  "abc",
			wantState: "S1",
		},
		{
			name:      "leading question mark",
			input:     "?code=abc&state=S1",
			wantCode:  "abc",
			wantState: "S1",
		},
		{
			name:      "scheme-less host",
			input:     "localhost:9445/callback?code=abc&state=S1",
			wantCode:  "abc",
			wantState: "S1",
		},
		{
			name:      "parameters in fragment",
			input:     "https://cb.example/callback#code=abc&state=S1",
			wantCode:  "abc",
			wantState: "S1",
		},
		{
			name:    "error parameter",
			input:   "https://cb.example/callback?error=access_denied&error_description=denied",
			wantErr: "access_denied",
		},
		{
			name:    "empty input",
			input:   "   ",
			wantNil: true,
		},
		{
			name:     "no code or error",
			input:    "https://cb.example/callback?state=S1",
			wantFail: true,
		},
		{
			name:     "unparseable input",
			input:    "not a url",
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := ParseCallback(tt.input)
			if tt.wantFail {
				if err == nil {
					t.Fatalf("expected error, got %+v", cb)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCallback failed: %v", err)
			}
			if tt.wantNil {
				if cb != nil {
					t.Fatalf("expected nil callback, got %+v", cb)
				}
				return
			}
			if cb.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, cb.Code)
			}
			if cb.State != tt.wantState {
				t.Errorf("expected state %q, got %q", tt.wantState, cb.State)
			}
			if cb.Error != tt.wantErr {
				t.Errorf("expected error param %q, got %q", tt.wantErr, cb.Error)
			}
		})
	}
}
