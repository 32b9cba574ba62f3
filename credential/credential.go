// Package credential defines the credential value object issued by the
// identity provider and the durable stores that persist it between runs.
package credential

import "time"

// Credential is an access/refresh token pair with an absolute expiry.
// Values are immutable once constructed - a renewal produces a new
// Credential, never a mutation. Both tokens are opaque to this package.
type Credential struct {
	AccessToken  string
	RefreshToken string

	// ExpiresAt is derived once at receipt from the provider-reported
	// expires_in plus the local clock. It is never recomputed afterwards.
	ExpiresAt time.Time
}

// New builds a Credential from a token endpoint response, anchoring the
// absolute expiry to the clock reading at receipt.
func New(accessToken, refreshToken string, expiresInSeconds int, receivedAt time.Time) Credential {
	return Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    receivedAt.Add(time.Duration(expiresInSeconds) * time.Second),
	}
}

// Remaining returns the lifetime left on the access token. Negative once
// expired.
func (c Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// Expired reports whether the access token's lifetime has elapsed.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
