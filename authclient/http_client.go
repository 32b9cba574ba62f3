package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	xoauth2 "golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/credential"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/oauth2"
)

const defaultRequestTimeout = 10 * time.Second

// Config holds the provider endpoints and client identity used for every
// request.
type Config struct {
	// Endpoint carries the token endpoint URL. Only TokenURL is used; the
	// authorization URL plays no part in the password grant.
	Endpoint xoauth2.Endpoint

	// RevocationURL is the endpoint accepting refresh-token revocations.
	// Optional: Revoke returns a network failure when unset and called.
	RevocationURL string

	// ClientID identifies this client at the token endpoint.
	ClientID string

	// Scope is the space-separated scope list requested at login.
	Scope string

	// RequestTimeout bounds every provider call. A request that never
	// returns surfaces KindNetworkFailure after this long. Default 10s.
	RequestTimeout time.Duration
}

var _ Client = (*HTTPClient)(nil)

// HTTPClient is the production Client talking to a real token endpoint.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	log        zerolog.Logger
	nowTime    func() time.Time
}

// HTTPClientOption defines a function type to modify the HTTPClient instance.
type HTTPClientOption func(*HTTPClient)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) HTTPClientOption {
	return func(c *HTTPClient) {
		c.nowTime = nowFunc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) HTTPClientOption {
	return func(c *HTTPClient) {
		c.log = log
	}
}

// WithHTTPClient replaces the underlying *http.Client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = httpClient
	}
}

// NewHTTPClient initializes an HTTPClient with required configuration.
// Optional behaviour can be provided via options (e.g. WithNowTime for testing).
func NewHTTPClient(config Config, options ...HTTPClientOption) (*HTTPClient, error) {
	if config.Endpoint.TokenURL == "" {
		return nil, errors.New("[NewHTTPClient] token URL is required")
	}
	if config.ClientID == "" {
		return nil, errors.New("[NewHTTPClient] client ID is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}

	client := &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		log:        zerolog.Nop(),
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

// Login implements Client.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (credential.Credential, error) {
	request := oauth2.PasswordTokenRequest(c.config.ClientID, c.config.Scope, username, password)
	cred, err := c.token(ctx, request, KindInvalidCredentials)
	if err != nil {
		return credential.Credential{}, err
	}
	c.log.Debug().Str("username", username).Time("expires_at", cred.ExpiresAt).Msg("password grant succeeded")
	return cred, nil
}

// Refresh implements Client.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (credential.Credential, error) {
	cred, err := c.token(ctx, oauth2.RefreshTokenRequest(refreshToken), KindRefreshTokenInvalid)
	if err != nil {
		return credential.Credential{}, err
	}
	c.log.Debug().Time("expires_at", cred.ExpiresAt).Msg("refresh grant succeeded")
	return cred, nil
}

// Revoke implements Client.
func (c *HTTPClient) Revoke(ctx context.Context, refreshToken string) error {
	if c.config.RevocationURL == "" {
		return NewAuthError(KindNetworkFailure, "", "no revocation endpoint configured", nil)
	}
	form := strings.NewReader("token=" + refreshToken + "&token_type_hint=refresh_token")
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RevocationURL, form)
	if err != nil {
		return errors.Wrap(err, "[HTTPClient.Revoke] build request")
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return NewAuthError(KindNetworkFailure, "", "revocation request failed", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return NewAuthError(KindNetworkFailure, "", "revocation rejected", errors.Errorf("status %d", response.StatusCode))
	}
	return nil
}

// token performs a token endpoint round trip. rejectedKind is the kind
// reported when the provider explicitly refuses the grant (4xx).
func (c *HTTPClient) token(ctx context.Context, tokenRequest oauth2.TokenRequest, rejectedKind ErrorKind) (credential.Credential, error) {
	body := strings.NewReader(tokenRequest.Values().Encode())
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint.TokenURL, body)
	if err != nil {
		return credential.Credential{}, errors.Wrap(err, "[HTTPClient.token] build request")
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return credential.Credential{}, NewAuthError(KindNetworkFailure, "", "token request failed", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		var errorResponse oauth2.ErrorResponse
		_ = json.NewDecoder(response.Body).Decode(&errorResponse)

		kind := rejectedKind
		if response.StatusCode >= 500 {
			kind = KindProviderUnavailable
		}
		c.log.Debug().
			Int("status", response.StatusCode).
			Str("error", errorResponse.Error).
			Str("grant_type", string(tokenRequest.GrantType)).
			Msg("token request rejected")
		return credential.Credential{}, NewAuthError(kind, errorResponse.Error, errorResponse.ErrorDescription, nil)
	}

	var tokenResponse oauth2.TokenResponse
	if err := json.NewDecoder(response.Body).Decode(&tokenResponse); err != nil {
		return credential.Credential{}, NewAuthError(KindProviderUnavailable, "", "malformed token response", err)
	}
	if utils.Value(tokenResponse.AccessToken) == "" || utils.Value(tokenResponse.RefreshToken) == "" {
		return credential.Credential{}, NewAuthError(KindProviderUnavailable, "", "token response missing tokens", nil)
	}

	return credential.New(
		utils.Value(tokenResponse.AccessToken),
		utils.Value(tokenResponse.RefreshToken),
		tokenResponse.ExpiresIn,
		c.nowTime(),
	), nil
}
