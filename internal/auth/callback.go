package auth

import (
	"fmt"
	"net/url"
	"strings"
)

// accessDeniedValue is the error parameter value the authorization server
// returns when the user rejects the consent screen.
const accessDeniedValue = "access_denied"

// Callback captures the query parameters returned by the authorization
// server's redirect.
type Callback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ValidateCallback checks the redirect parameters for one authorization
// attempt before any network call is made. The checks run in a fixed order
// and the first failure wins:
//
//  1. errParam equal to "access_denied" fails with ErrAccessDenied.
//  2. An absent code fails with ErrAuthCodeMissing.
//  3. An absent state fails with ErrStateMissing.
//  4. A state differing from data.State fails with ErrStateMismatch.
//
// Empty strings stand for absent parameters.
func ValidateCallback(data *AuthData, code, state, errParam string) error {
	if data == nil {
		return fmt.Errorf("auth data is required")
	}
	if errParam == accessDeniedValue {
		return ErrAccessDenied
	}
	if code == "" {
		return ErrAuthCodeMissing
	}
	if state == "" {
		return ErrStateMissing
	}
	if state != data.State {
		return ErrStateMismatch
	}
	return nil
}

// ParseCallback extracts callback parameters from a redirect URL pasted or
// captured verbatim. It accepts full URLs, scheme-less host/path forms, bare
// query strings, and fragment-carried parameters. It returns nil for empty
// input.
func ParseCallback(input string) (*Callback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		if strings.HasPrefix(candidate, "?") {
			candidate = "http://localhost" + candidate
		} else if strings.ContainsAny(candidate, "/?#") || strings.Contains(candidate, ":") {
			candidate = "http://" + candidate
		} else if strings.Contains(candidate, "=") {
			candidate = "http://localhost/?" + candidate
		} else {
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	cb := &Callback{
		Code:             strings.TrimSpace(query.Get("code")),
		State:            strings.TrimSpace(query.Get("state")),
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: strings.TrimSpace(query.Get("error_description")),
	}

	// Some user agents move the query into the fragment when re-serializing
	// the redirect; fall back to fragment parameters for anything missing.
	if parsedURL.Fragment != "" {
		if fragQuery, errFrag := url.ParseQuery(parsedURL.Fragment); errFrag == nil {
			if cb.Code == "" {
				cb.Code = strings.TrimSpace(fragQuery.Get("code"))
			}
			if cb.State == "" {
				cb.State = strings.TrimSpace(fragQuery.Get("state"))
			}
			if cb.Error == "" {
				cb.Error = strings.TrimSpace(fragQuery.Get("error"))
			}
			if cb.ErrorDescription == "" {
				cb.ErrorDescription = strings.TrimSpace(fragQuery.Get("error_description"))
			}
		}
	}

	if cb.Code == "" && cb.Error == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}

	return cb, nil
}
