package authclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed provider call. Retry policy lives entirely
// in the session package - this package only reports what happened.
type ErrorKind string

const (
	// KindInvalidCredentials means the username/password pair was rejected.
	// User-correctable, surfaced inline on the login form.
	KindInvalidCredentials ErrorKind = "invalid_credentials"

	// KindRefreshTokenInvalid means the provider rejected the refresh token.
	// The session has truly ended and a new login is required.
	KindRefreshTokenInvalid ErrorKind = "refresh_token_invalid"

	// KindNetworkFailure means the request never produced a provider
	// response (connection error, timeout, cancelled context).
	KindNetworkFailure ErrorKind = "network_failure"

	// KindProviderUnavailable means the provider answered but could not
	// serve the request (5xx or a malformed success body).
	KindProviderUnavailable ErrorKind = "provider_unavailable"
)

// Transient reports whether the failure is worth retrying automatically.
func (k ErrorKind) Transient() bool {
	return k == KindNetworkFailure || k == KindProviderUnavailable
}

// AuthError is the typed failure returned by every Client call.
type AuthError struct {
	Kind ErrorKind

	// Code is the provider's "error" field, when one was returned.
	Code string

	// Description is the provider's "error_description" field.
	Description string

	cause error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth request failed (%s)", e.Kind)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// NewAuthError builds an AuthError. cause may be nil.
func NewAuthError(kind ErrorKind, code, description string, cause error) *AuthError {
	return &AuthError{Kind: kind, Code: code, Description: description, cause: cause}
}

// KindOf extracts the ErrorKind from an error chain. ok is false when the
// chain contains no AuthError.
func KindOf(err error) (ErrorKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}
