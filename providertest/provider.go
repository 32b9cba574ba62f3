// Package providertest runs an in-process identity provider implementing
// the password and refresh_token grants over HTTP. It exists for tests and
// demos the way httptest exists for HTTP handlers: real wire format, no
// real provider.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/oauth2"
)

const defaultAccessTokenTTL = time.Hour

// Provider is a fake identity provider bound to an httptest server.
// Access tokens are HS256-signed JWTs so they look like production tokens
// on the wire, though the client under test must treat them as opaque.
type Provider struct {
	server     *httptest.Server
	signingKey []byte

	lock          sync.Mutex
	users         map[string]string // username -> bcrypt hash
	refreshTokens map[string]string // refresh token -> username
	accessTTL     time.Duration
	nextStatus    int    // non-zero: next token request fails with this status
	nextErrorCode string // provider error code for the injected failure
	loginCalls    int
	refreshCalls  int
	revokeCalls   int
}

// New starts a Provider on an ephemeral port. Callers own the shutdown via
// Close.
func New() *Provider {
	provider := &Provider{
		signingKey:    []byte(uuid.New().String()),
		users:         make(map[string]string),
		refreshTokens: make(map[string]string),
		accessTTL:     defaultAccessTokenTTL,
	}

	router := chi.NewRouter()
	router.Post("/oauth/token", provider.handleToken)
	router.Post("/oauth/revoke", provider.handleRevoke)
	provider.server = httptest.NewServer(router)
	return provider
}

// Close shuts the HTTP server down.
func (p *Provider) Close() {
	p.server.Close()
}

// URL returns the provider's base URL.
func (p *Provider) URL() string {
	return p.server.URL
}

// Endpoint returns the token endpoint in x/oauth2 form, ready to drop into
// an authclient.Config.
func (p *Provider) Endpoint() xoauth2.Endpoint {
	return xoauth2.Endpoint{TokenURL: p.server.URL + "/oauth/token"}
}

// RevocationURL returns the revocation endpoint.
func (p *Provider) RevocationURL() string {
	return p.server.URL + "/oauth/revoke"
}

// AddUser registers a user with a bcrypt-hashed password.
func (p *Provider) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.users[username] = string(hash)
	return nil
}

// SetAccessTokenTTL overrides the expires_in reported on issued tokens.
func (p *Provider) SetAccessTokenTTL(ttl time.Duration) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.accessTTL = ttl
}

// FailNextWith makes the next token request fail with the given HTTP
// status and provider error code, then resets.
func (p *Provider) FailNextWith(status int, errorCode string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.nextStatus = status
	p.nextErrorCode = errorCode
}

// RevokeAllRefreshTokens invalidates every outstanding refresh token, so
// the next refresh grant is rejected with invalid_grant.
func (p *Provider) RevokeAllRefreshTokens() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.refreshTokens = make(map[string]string)
}

// LoginCalls returns how many password grants have been received.
func (p *Provider) LoginCalls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.loginCalls
}

// RefreshCalls returns how many refresh grants have been received.
func (p *Provider) RefreshCalls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.refreshCalls
}

// RevokeCalls returns how many revocations have been received.
func (p *Provider) RevokeCalls() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.revokeCalls
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, oauth2.ErrorCodeInvalidRequest, "malformed form body")
		return
	}

	p.lock.Lock()
	if p.nextStatus != 0 {
		status, code := p.nextStatus, p.nextErrorCode
		p.nextStatus, p.nextErrorCode = 0, ""
		p.lock.Unlock()
		writeTokenError(w, status, code, "injected failure")
		return
	}
	p.lock.Unlock()

	switch oauth2.GrantType(r.PostFormValue("grant_type")) {
	case oauth2.PasswordGrant:
		p.passwordGrant(w, r)
	case oauth2.RefreshTokenGrant:
		p.refreshGrant(w, r)
	default:
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (p *Provider) passwordGrant(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	p.lock.Lock()
	p.loginCalls++
	hash, ok := p.users[username]
	p.lock.Unlock()

	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		writeTokenError(w, http.StatusBadRequest, oauth2.ErrorCodeInvalidGrant, "invalid username or password")
		return
	}
	p.issueTokens(w, username)
}

func (p *Provider) refreshGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.PostFormValue("refresh_token")

	p.lock.Lock()
	p.refreshCalls++
	username, ok := p.refreshTokens[refreshToken]
	if ok {
		// Rotation: a refresh token is good for exactly one exchange.
		delete(p.refreshTokens, refreshToken)
	}
	p.lock.Unlock()

	if !ok {
		writeTokenError(w, http.StatusBadRequest, oauth2.ErrorCodeInvalidGrant, "refresh token is invalid or revoked")
		return
	}
	p.issueTokens(w, username)
}

func (p *Provider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	token := r.PostFormValue("token")

	p.lock.Lock()
	p.revokeCalls++
	delete(p.refreshTokens, token)
	p.lock.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (p *Provider) issueTokens(w http.ResponseWriter, username string) {
	p.lock.Lock()
	ttl := p.accessTTL
	refreshToken := uuid.New().String()
	p.refreshTokens[refreshToken] = username
	p.lock.Unlock()

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		writeTokenError(w, http.StatusInternalServerError, "server_error", "failed signing access token")
		return
	}

	response := oauth2.TokenResponse{
		AccessToken:  utils.Ptr(accessToken),
		TokenType:    "bearer",
		ExpiresIn:    int(ttl / time.Second),
		RefreshToken: utils.Ptr(refreshToken),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func writeTokenError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{Error: code, ErrorDescription: description})
}
