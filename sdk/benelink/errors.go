package benelink

import "github.com/benelink/benelink-go/internal/auth"

// Core flow types, re-exported so SDK consumers import one package.
type (
	// AuthData bundles the PKCE material and anti-CSRF state for a single
	// authorization attempt.
	AuthData = auth.AuthData

	// AuthorizationToken is one issued or refreshed credential.
	AuthorizationToken = auth.AuthorizationToken

	// TokenPayload is the canonical wire-format projection of a token.
	TokenPayload = auth.TokenPayload

	// Callback captures the authorization server's redirect parameters.
	Callback = auth.Callback

	// FlowError is the error type for authorization flow failures.
	FlowError = auth.FlowError
)

// Sentinel flow errors; compare with errors.Is.
var (
	ErrAccessDenied       = auth.ErrAccessDenied
	ErrAuthCodeMissing    = auth.ErrAuthCodeMissing
	ErrStateMissing       = auth.ErrStateMissing
	ErrStateMismatch      = auth.ErrStateMismatch
	ErrTokenResponseEmpty = auth.ErrTokenResponseEmpty
	ErrServerStartFailed  = auth.ErrServerStartFailed
	ErrPortInUse          = auth.ErrPortInUse
	ErrCallbackTimeout    = auth.ErrCallbackTimeout
)

// IsFlowError checks whether an error is (or wraps) a flow error.
func IsFlowError(err error) bool {
	return auth.IsFlowError(err)
}

// UserFriendlyMessage returns a message suitable for end users based on the
// flow error category.
func UserFriendlyMessage(err error) string {
	return auth.GetUserFriendlyMessage(err)
}

// ParseCallback extracts callback parameters from a redirect URL pasted or
// captured verbatim.
func ParseCallback(input string) (*Callback, error) {
	return auth.ParseCallback(input)
}
