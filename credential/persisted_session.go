package credential

import "time"

// PersistedSession is the storage projection of the last authenticated
// Credential. It is written only on a successful login or refresh and
// cleared on logout, refresh-token rejection, or a stale record at startup.
//
// Consumers outside this module must treat both tokens as opaque bytes.
type PersistedSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is an absolute epoch-millisecond timestamp.
	ExpiresAt int64 `json:"expires_at"`
}

// FromCredential projects a Credential into its storable form.
func FromCredential(c Credential) *PersistedSession {
	return &PersistedSession{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt.UnixMilli(),
	}
}

// Credential reconstructs the in-memory value from the stored record.
func (p *PersistedSession) Credential() Credential {
	return Credential{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    time.UnixMilli(p.ExpiresAt),
	}
}

// Expired reports whether the stored record's expiry is in the past.
func (p *PersistedSession) Expired(now time.Time) bool {
	return !time.UnixMilli(p.ExpiresAt).After(now)
}
