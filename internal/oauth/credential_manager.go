package oauth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"

	"golang.org/x/sync/singleflight"
)

// ErrNeedsLogin is returned by CredentialManager.Current when no
// credential is stored, or the stored one could not be refreshed.
var ErrNeedsLogin = errors.New("oauth: no valid credential, visit /auth/login")

// failFastWindow bounds how long a failed refresh is remembered before
// the next caller is allowed to try again, preventing a login-storm of
// repeated refresh attempts against a down or revoked upstream.
const failFastWindow = 5 * time.Second

// CredentialManager is the single owner of the in-memory credential
// cache. All consumers obtain bearers by calling Current; nothing else
// in the gateway holds a token directly. Concurrent refreshes coalesce
// onto a single in-flight request via singleflight, replacing the
// ad-hoc mutex-guarded refresh recreate-run-mix/internal/llm/provider/anthropic.go
// used around its own token-refresh call with the purpose-built
// primitive the design notes call for. Lifecycle transitions are
// reported straight through the logging package rather than a separate
// event broker: this is the only consumer those transitions ever had.
type CredentialManager struct {
	store *TokenStore
	auth  *PKCEAuthenticator
	sf    singleflight.Group

	mu          sync.RWMutex
	cred        Credential
	loaded      bool
	lastFailure time.Time
}

func NewCredentialManager(store *TokenStore, auth *PKCEAuthenticator) *CredentialManager {
	return &CredentialManager{store: store, auth: auth}
}

func (m *CredentialManager) ensureLoaded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return
	}
	m.loaded = true
	if cred, err := m.store.Load(); err == nil {
		m.cred = cred
	}
}

// Current returns a usable bearer token, refreshing it first if it is
// expired (or within its safety skew). Concurrent callers observing an
// expired token all await the same refresh outcome.
func (m *CredentialManager) Current(ctx context.Context) (string, error) {
	m.ensureLoaded()

	m.mu.RLock()
	cred := m.cred
	lastFailure := m.lastFailure
	m.mu.RUnlock()

	if cred.AccessToken != "" && !cred.Expired() {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", ErrNeedsLogin
	}
	if time.Since(lastFailure) < failFastWindow {
		return "", ErrNeedsLogin
	}

	v, err, _ := m.sf.Do("refresh", func() (any, error) {
		return m.doRefresh(cred.RefreshToken)
	})
	if err != nil {
		return "", ErrNeedsLogin
	}
	return v.(string), nil
}

func (m *CredentialManager) doRefresh(refreshToken string) (string, error) {
	refreshed, err := m.auth.Refresh(refreshToken)
	if err != nil {
		m.mu.Lock()
		m.lastFailure = time.Now()
		m.mu.Unlock()
		logging.Warn("credential refresh failed", "error", err)
		return "", err
	}

	m.Install(refreshed)
	logging.Info("credential refreshed")
	return refreshed.AccessToken, nil
}

// Install atomically replaces the in-memory cache and persists the new
// credential, used after a successful login exchange or refresh.
func (m *CredentialManager) Install(cred Credential) {
	m.mu.Lock()
	m.cred = cred
	m.loaded = true
	m.lastFailure = time.Time{}
	m.mu.Unlock()

	if err := m.store.Save(cred); err != nil {
		logging.Error("failed to persist credential", "error", err)
	}
}

// Invalidate marks the cached access token expired so the next Current
// call forces a refresh. Called by UpstreamClient after an upstream 401.
func (m *CredentialManager) Invalidate() {
	m.mu.Lock()
	m.cred.ExpiresAt = 0
	m.mu.Unlock()
	logging.Warn("credential invalidated after upstream 401")
}

// Status reports whether a credential is stored and its expiry, for
// the /auth/status endpoint. Never exposes token material.
func (m *CredentialManager) Status() (present bool, expiresAt int64, expired bool) {
	m.ensureLoaded()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred.AccessToken == "" && m.cred.RefreshToken == "" {
		return false, 0, true
	}
	return true, m.cred.ExpiresAt, m.cred.Expired()
}

// Clear removes any stored credential (logout).
func (m *CredentialManager) Clear() error {
	m.mu.Lock()
	m.cred = Credential{}
	m.mu.Unlock()
	return m.store.Clear()
}
