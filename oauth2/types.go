package oauth2

// GrantType represents the OAuth 2.0 grant type sent to the token endpoint.
// Determines what credentials must accompany the request.
type GrantType string

const (
	// PasswordGrant exchanges a username and password directly for tokens.
	// Used in: first-party clients where a redirect-based flow is unavailable
	// Token request includes: client_id, scope, username, password
	// Returns: access_token, refresh_token, expires_in
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// Used in: proactive renewal before the access token expires
	// Token request includes: refresh_token
	// Returns: new access_token, rotated refresh_token, expires_in
	RefreshTokenGrant GrantType = "refresh_token"
)

// Well-known provider error codes carried in the "error" field of a non-2xx
// token response (RFC 6749 §5.2).
const (
	// ErrorCodeInvalidGrant is returned when the presented credentials or
	// refresh token are rejected by the provider.
	ErrorCodeInvalidGrant = "invalid_grant"

	// ErrorCodeInvalidRequest is returned for malformed token requests.
	ErrorCodeInvalidRequest = "invalid_request"
)
