// Package session owns the client-side session lifecycle: the live state
// machine fed by provider results and timer events, the renewal scheduler,
// and the manager that exposes the public operations to the application.
package session

import (
	"time"

	"github.com/jrsteele09/go-auth-client/authclient"
)

// Status is the tag of the session state union.
type Status string

const (
	// StatusUnauthenticated is the initial state: no credential held.
	StatusUnauthenticated Status = "unauthenticated"

	// StatusAuthenticating means a login request is in flight.
	StatusAuthenticating Status = "authenticating"

	// StatusAuthenticated means a valid credential is held.
	StatusAuthenticated Status = "authenticated"

	// StatusRefreshing means a renewal is in flight. The previous
	// credential is still valid and usable until it actually expires.
	StatusRefreshing Status = "refreshing"

	// StatusExpired means the provider rejected the refresh token; the
	// session has ended and a new login is required.
	StatusExpired Status = "expired"

	// StatusFailed means the last login attempt failed. Recoverable by a
	// new login.
	StatusFailed Status = "failed"
)

// State is the observer-facing snapshot of the session. It carries enough
// to gate application surfaces but never the raw tokens.
type State struct {
	Status Status

	// ExpiresAt is the held credential's expiry. Zero unless the status is
	// Authenticated or Refreshing.
	ExpiresAt time.Time

	// ErrorKind classifies the failure that produced a Failed status.
	// Empty otherwise.
	ErrorKind authclient.ErrorKind
}

// Authenticated reports whether the session currently grants access.
// Refreshing counts: the old credential remains usable while the renewal is
// in flight.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusRefreshing
}
