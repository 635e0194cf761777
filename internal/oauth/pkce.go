package oauth

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrSessionExpired is returned by Exchange when the pending PKCE
// session is more than 10 minutes old.
var ErrSessionExpired = fmt.Errorf("oauth: login session expired, start a new login")

// ErrStateMismatch is returned by Exchange when the state embedded in
// the pasted code does not match the session that produced the
// authorize URL.
var ErrStateMismatch = fmt.Errorf("oauth: state does not match the pending login session")

// AuthCodeRejectedError wraps a non-2xx response from the token
// endpoint during code exchange or refresh.
type AuthCodeRejectedError struct {
	StatusCode int
	Body       string
}

func (e *AuthCodeRejectedError) Error() string {
	return fmt.Sprintf("oauth: token endpoint rejected request with status %d: %s", e.StatusCode, e.Body)
}

// PKCEAuthenticator drives the Claude Code consumer OAuth flow:
// authorize-URL construction, code exchange, and refresh. Grounded on
// recreate-run-mix/internal/llm/provider/oauth.go's NewOAuthFlow /
// ExchangeCodeForTokens / RefreshAccessToken, stripped of that file's
// Cloudflare-fallback manual-entry path (this gateway treats a
// non-JSON or non-2xx token response as a hard failure per the spec's
// AuthCodeRejected error kind) and re-hosted behind HTTP handlers
// instead of a terminal prompt.
type PKCEAuthenticator struct {
	endpoints Endpoints
	client    *http.Client

	mu      sync.Mutex
	session *PKCESession
}

func NewPKCEAuthenticator(endpoints Endpoints) *PKCEAuthenticator {
	return &PKCEAuthenticator{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BeginLogin generates fresh PKCE material, replaces any pending
// session with it, and returns the authorize URL to present to the user.
func (a *PKCEAuthenticator) BeginLogin() (authorizeURL string, session PKCESession, err error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return "", PKCESession{}, err
	}
	state, err := generateState()
	if err != nil {
		return "", PKCESession{}, err
	}
	challenge := computeCodeChallenge(verifier)

	sess := PKCESession{
		Verifier:  verifier,
		Challenge: challenge,
		State:     state,
		CreatedAt: time.Now(),
	}

	a.mu.Lock()
	a.session = &sess
	a.mu.Unlock()

	params := url.Values{
		"client_id":             {a.endpoints.clientID()},
		"response_type":         {"code"},
		"redirect_uri":          {a.endpoints.RedirectURI},
		"scope":                 {a.endpoints.scope()},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"state":                 {state},
	}
	return fmt.Sprintf("%s/oauth/authorize?%s", a.endpoints.AuthBase, params.Encode()), sess, nil
}

// Exchange consumes the pending session (it can only be used once) and
// trades the pasted "code#state" value for a Credential.
func (a *PKCEAuthenticator) Exchange(pasted string) (Credential, error) {
	a.mu.Lock()
	sess := a.session
	a.session = nil
	a.mu.Unlock()

	if sess == nil {
		return Credential{}, ErrSessionExpired
	}
	if sess.expired() {
		return Credential{}, ErrSessionExpired
	}

	code, state := splitPastedCode(pasted)
	if state != "" && state != sess.State {
		return Credential{}, ErrStateMismatch
	}

	body := map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  a.endpoints.RedirectURI,
		"client_id":     a.endpoints.clientID(),
		"code_verifier": sess.Verifier,
	}
	return a.postTokenRequest(body)
}

// Refresh trades a refresh token for a new Credential, preserving the
// old refresh token if the upstream doesn't issue a new one.
func (a *PKCEAuthenticator) Refresh(refreshToken string) (Credential, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     a.endpoints.clientID(),
	}
	cred, err := a.postTokenRequest(body)
	if err != nil {
		return Credential{}, err
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

func (a *PKCEAuthenticator) postTokenRequest(body map[string]string) (Credential, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Credential{}, fmt.Errorf("oauth: marshaling token request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.endpoints.TokenBase+"/v1/oauth/token", bytes.NewReader(payload))
	if err != nil {
		return Credential{}, fmt.Errorf("oauth: building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("oauth: token request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("oauth: reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, &AuthCodeRejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Credential{}, &AuthCodeRejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return Credential{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresAt:    time.Now().Unix() + parsed.ExpiresIn,
	}, nil
}

// splitPastedCode splits the "code#state" value the Anthropic-hosted
// callback page shows the user; a pasted value with no "#" is treated
// as a bare code with no state to verify.
func splitPastedCode(pasted string) (code, state string) {
	pasted = strings.TrimSpace(pasted)
	if idx := strings.IndexByte(pasted, '#'); idx >= 0 {
		return pasted[:idx], pasted[idx+1:]
	}
	return pasted, ""
}

func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth: generating code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func computeCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth: generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
