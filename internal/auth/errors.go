package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// FlowError represents a failure in the authorization flow. The Type field
// distinguishes failure categories programmatically; sentinel values below
// cover every category this package produces.
type FlowError struct {
	// Type is the machine-readable failure category.
	Type string `json:"type"`
	// Message is a human-readable description of the failure.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the failure.
	Code int `json:"code"`
	// Cause is the underlying error, when one exists.
	Cause error `json:"-"`
}

// Error returns a string representation of the flow error.
func (e *FlowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// Is matches flow errors by Type so wrapped copies compare equal to their
// sentinel under errors.Is.
func (e *FlowError) Is(target error) bool {
	var t *FlowError
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type
}

// Sentinel flow errors. Callback validation failures follow the fixed check
// order documented on ValidateCallback.
var (
	// ErrAccessDenied indicates the authorization server reported access_denied.
	ErrAccessDenied = &FlowError{
		Type:    "callback_access_denied",
		Message: "authorization server denied access",
		Code:    http.StatusForbidden,
	}

	// ErrAuthCodeMissing indicates the callback carried no authorization code.
	ErrAuthCodeMissing = &FlowError{
		Type:    "callback_code_missing",
		Message: "authorization code missing from callback",
		Code:    http.StatusBadRequest,
	}

	// ErrStateMissing indicates the callback carried no state parameter.
	ErrStateMissing = &FlowError{
		Type:    "callback_state_missing",
		Message: "state parameter missing from callback",
		Code:    http.StatusBadRequest,
	}

	// ErrStateMismatch indicates the returned state does not equal the one
	// generated for this attempt.
	ErrStateMismatch = &FlowError{
		Type:    "callback_state_mismatch",
		Message: "callback state does not match the expected value",
		Code:    http.StatusBadRequest,
	}

	// ErrTokenResponseEmpty indicates the token endpoint answered with an
	// empty body.
	ErrTokenResponseEmpty = &FlowError{
		Type:    "token_response_empty",
		Message: "token endpoint returned an empty response body",
		Code:    http.StatusBadGateway,
	}

	// ErrServerStartFailed indicates the local callback server failed to start.
	ErrServerStartFailed = &FlowError{
		Type:    "server_start_failed",
		Message: "failed to start local callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse indicates the local callback port is already taken.
	ErrPortInUse = &FlowError{
		Type:    "port_in_use",
		Message: "local callback port is already in use",
		Code:    13, // Special exit code for port-in-use
	}

	// ErrCallbackTimeout indicates no callback arrived before the deadline.
	ErrCallbackTimeout = &FlowError{
		Type:    "callback_timeout",
		Message: "timeout waiting for authorization callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewFlowError derives a copy of a sentinel flow error carrying a cause.
func NewFlowError(base *FlowError, cause error) *FlowError {
	return &FlowError{
		Type:    base.Type,
		Message: base.Message,
		Code:    base.Code,
		Cause:   cause,
	}
}

// IsFlowError checks whether an error is (or wraps) a flow error.
func IsFlowError(err error) bool {
	var flowError *FlowError
	return errors.As(err, &flowError)
}

// GetUserFriendlyMessage returns a message suitable for end users based on
// the flow error category.
func GetUserFriendlyMessage(err error) string {
	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch flowErr.Type {
	case ErrAccessDenied.Type:
		return "Authorization was cancelled or denied."
	case ErrAuthCodeMissing.Type, ErrStateMissing.Type:
		return "The authorization response was incomplete. Please try again."
	case ErrStateMismatch.Type:
		return "The authorization response could not be verified. Please try again."
	case ErrTokenResponseEmpty.Type:
		return "The authorization server returned an empty response. Please try again later."
	case ErrPortInUse.Type:
		return "The local callback port is already in use. Please close the application using it and try again."
	case ErrCallbackTimeout.Type:
		return "Authorization timed out. Please try again."
	case ErrServerStartFailed.Type:
		return "Could not start the local callback listener. Please try again."
	default:
		return "Authorization failed. Please try again."
	}
}
