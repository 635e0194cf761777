package oauth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(filepath.Join(dir, "sub", "tokens.json"))

	cred := Credential{
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}

	require.NoError(t, store.Save(cred))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cred, loaded)
}

func TestTokenStore_Load_NotFound(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_Load_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	store := NewTokenStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTokenStore_Load_MissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a"}`), 0o600))
	store := NewTokenStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTokenStore_Save_Permissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "tokens.json")
	store := NewTokenStore(path)

	require.NoError(t, store.Save(Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: 1}))

	fileInfo, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestTokenStore_Save_NoStaleTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	store := NewTokenStore(path)

	require.NoError(t, store.Save(Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: 1}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away, not left behind")
}

func TestTokenStore_Save_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewTokenStore(path)

	require.NoError(t, store.Save(Credential{AccessToken: "old", RefreshToken: "r", ExpiresAt: 1}))
	require.NoError(t, store.Save(Credential{AccessToken: "new", RefreshToken: "r", ExpiresAt: 2}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", loaded.AccessToken)
}

func TestTokenStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store := NewTokenStore(path)

	require.NoError(t, store.Save(Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: 1}))
	require.NoError(t, store.Clear())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_Clear_NotFoundIsSuccess(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, store.Clear())
}
