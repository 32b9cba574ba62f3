package oauth2

import "net/url"

// TokenRequest holds parameters for an OAuth2 token request.
// This represents the form body sent to the token endpoint.
// Supports the password and refresh_token grant types.
type TokenRequest struct {
	// GrantType selects the flow: "password" or "refresh_token".
	// Required: Yes (for all requests)
	GrantType GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes for the password grant
	// Example: "desktop-client"
	ClientID string

	// Scope is the space-separated list of permissions being requested.
	// Required: No
	// Example: "openid profile"
	Scope string

	// Username is the resource owner's identifier.
	// Required: Yes (only for the password grant)
	Username string

	// Password is the resource owner's secret.
	// Required: Yes (only for the password grant)
	// Security: Never log or persist this value
	Password string

	// RefreshToken is used to obtain new tokens without re-authentication.
	// Required: Yes (only for the refresh_token grant)
	// Behavior: Typically rotated - old refresh token invalidated, new one issued
	RefreshToken string
}

// PasswordTokenRequest builds a password-grant token request.
func PasswordTokenRequest(clientID, scope, username, password string) TokenRequest {
	return TokenRequest{
		GrantType: PasswordGrant,
		ClientID:  clientID,
		Scope:     scope,
		Username:  username,
		Password:  password,
	}
}

// RefreshTokenRequest builds a refresh-grant token request.
func RefreshTokenRequest(refreshToken string) TokenRequest {
	return TokenRequest{
		GrantType:    RefreshTokenGrant,
		RefreshToken: refreshToken,
	}
}

// Values encodes the request as the url-encoded form body expected by the
// token endpoint. Empty fields are omitted.
func (tr TokenRequest) Values() url.Values {
	values := url.Values{}
	values.Set("grant_type", string(tr.GrantType))
	if tr.ClientID != "" {
		values.Set("client_id", tr.ClientID)
	}
	if tr.Scope != "" {
		values.Set("scope", tr.Scope)
	}
	if tr.Username != "" {
		values.Set("username", tr.Username)
	}
	if tr.Password != "" {
		values.Set("password", tr.Password)
	}
	if tr.RefreshToken != "" {
		values.Set("refresh_token", tr.RefreshToken)
	}
	return values
}
