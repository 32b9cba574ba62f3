// Package authclient wraps the network calls against the identity
// provider's token and revocation endpoints. It is a stateless capability:
// calls are independent, may run concurrently, and are never retried here.
package authclient

import (
	"context"

	"github.com/jrsteele09/go-auth-client/credential"
)

// Client is the provider capability consumed by the session package.
// Every failure is an *AuthError; callers branch on its Kind.
type Client interface {
	// Login performs a password-grant token request. The caller validates
	// that username and password are non-empty before calling.
	Login(ctx context.Context, username, password string) (credential.Credential, error)

	// Refresh performs a refresh-grant token request, returning a new
	// credential pair.
	Refresh(ctx context.Context, refreshToken string) (credential.Credential, error)

	// Revoke invalidates the refresh token at the provider. Best-effort:
	// callers must never let a Revoke failure block a local logout.
	Revoke(ctx context.Context, refreshToken string) error
}
