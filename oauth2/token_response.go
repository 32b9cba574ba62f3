package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
// Returned for both the password and refresh_token grants.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Include in Authorization header: "Bearer <access_token>"
	// Lifespan: Short-lived (typically 15 minutes - 1 hour)
	// Note: Opaque to this client - the embedded claims are never parsed
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType indicates how to use the access token (always "bearer" in practice).
	// Example: "bearer"
	// Standard: OAuth2 spec requires this field
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 900 (for 15 minutes)
	// Usage: The absolute expiry is derived once at receipt from this value
	// plus the local clock, and never recomputed later
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Example: "tGzv3JOkF0XG5Qx2TlKWIA"
	// Lifespan: Long-lived (typically 7-30 days)
	// Security: Should be stored securely, rotates on each use
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Example: "openid profile email api.read"
	// Note: May be less than requested if some scopes were denied
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is the body of a non-2xx token endpoint response.
// The error code and description are surfaced as the AuthError detail.
type ErrorResponse struct {
	// Error is the machine-readable error code.
	// Example: "invalid_grant"
	Error string `json:"error"`

	// ErrorDescription is the optional human-readable detail.
	// Example: "refresh token has been revoked"
	ErrorDescription string `json:"error_description,omitempty"`
}
