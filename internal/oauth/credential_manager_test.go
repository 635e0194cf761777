package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, tokenServerURL string) *CredentialManager {
	t.Helper()
	store := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	auth := NewPKCEAuthenticator(newTestEndpoints(tokenServerURL))
	return NewCredentialManager(store, auth)
}

func TestCredentialManager_Current_UsesCachedTokenWhileValid(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "new", "expires_in": 3600})
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	m.Install(Credential{AccessToken: "cached", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	token, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", token)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestCredentialManager_Current_NoCredential(t *testing.T) {
	m := newTestManager(t, "https://unused.example")

	_, err := m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNeedsLogin)
}

func TestCredentialManager_Current_RefreshesExpiredToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "refreshed", "refresh_token": "r2", "expires_in": 3600})
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	m.Install(Credential{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Hour).Unix()})

	token, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	present, _, expired := m.Status()
	assert.True(t, present)
	assert.False(t, expired)
}

// TestCredentialManager_Current_CoalescesConcurrentRefreshes exercises
// invariant 2: concurrent callers observing an expired token must
// trigger exactly one outbound refresh request.
func TestCredentialManager_Current_CoalescesConcurrentRefreshes(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release // hold every concurrent caller here until all have joined
		json.NewEncoder(w).Encode(map[string]any{"access_token": "refreshed", "expires_in": 3600})
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	m.Install(Credential{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Hour).Unix()})

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Current(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // let every goroutine reach the refresh call
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed", results[i])
	}
}

func TestCredentialManager_Current_FastFailsAfterRefreshFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	m.Install(Credential{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Hour).Unix()})

	_, err := m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNeedsLogin)

	_, err = m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNeedsLogin)

	// Second call within the fail-fast window must not re-hit the upstream.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCredentialManager_Invalidate_ForcesRefreshOnNextCurrent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh", "expires_in": 3600})
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	m.Install(Credential{AccessToken: "valid", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	m.Invalidate()

	token, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCredentialManager_Status_NoCredential(t *testing.T) {
	m := newTestManager(t, "https://unused.example")

	present, _, expired := m.Status()
	assert.False(t, present)
	assert.True(t, expired)
}

func TestCredentialManager_Clear(t *testing.T) {
	m := newTestManager(t, "https://unused.example")
	m.Install(Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	require.NoError(t, m.Clear())

	present, _, _ := m.Status()
	assert.False(t, present)
}

func TestCredentialManager_Install_PersistsToStore(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(filepath.Join(dir, "tokens.json"))
	auth := NewPKCEAuthenticator(newTestEndpoints("https://unused.example"))
	m := NewCredentialManager(store, auth)

	cred := Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	m.Install(cred)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)
}

func TestCredentialManager_LoadsPersistedCredentialOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(filepath.Join(dir, "tokens.json"))
	require.NoError(t, store.Save(Credential{AccessToken: "persisted", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()}))

	auth := NewPKCEAuthenticator(newTestEndpoints("https://unused.example"))
	m := NewCredentialManager(store, auth)

	token, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
}
