package config

import "time"

// ProviderConfig describes the identity provider endpoints and client
// identity.
type ProviderConfig interface {
	GetTokenURL() string
	GetRevocationURL() string
	GetClientID() string
	GetScope() string
	GetRequestTimeout() time.Duration
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetTokenURL() string {
	return GetEnv("AUTH_TOKEN_URL", "")
}

func (Provider) GetRevocationURL() string {
	return GetEnv("AUTH_REVOCATION_URL", "")
}

func (Provider) GetClientID() string {
	return GetEnv("AUTH_CLIENT_ID", "desktop-client")
}

func (Provider) GetScope() string {
	return GetEnv("AUTH_SCOPE", "openid profile")
}

func (Provider) GetRequestTimeout() time.Duration {
	return GetDurationEnv("AUTH_REQUEST_TIMEOUT", 10*time.Second)
}
