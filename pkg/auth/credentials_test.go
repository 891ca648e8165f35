package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentStore(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		t.Setenv("FLICKRDUMP_API_KEY", "")
		t.Setenv("FLICKRDUMP_OAUTH_TOKEN", "")

		store := NewEnvironmentStore()
		_, err := store.Retrieve("")
		assert.ErrorIs(t, err, ErrCredentialsNotFound)

		accounts, err := store.List()
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})

	t.Run("configured", func(t *testing.T) {
		t.Setenv("FLICKRDUMP_API_KEY", "env-key")
		t.Setenv("FLICKRDUMP_API_SECRET", "env-secret")
		t.Setenv("FLICKRDUMP_OAUTH_TOKEN", "env-token")
		t.Setenv("FLICKRDUMP_OAUTH_TOKEN_SECRET", "env-token-secret")

		store := NewEnvironmentStore()
		account, err := store.Retrieve("anything")
		require.NoError(t, err)
		assert.Equal(t, "environment", account.Name)
		assert.Equal(t, "env-key", account.APIKey)
		assert.Equal(t, "env-token", account.OAuthToken)
	})

	t.Run("read only", func(t *testing.T) {
		store := NewEnvironmentStore()
		assert.Error(t, store.Store(&Account{Name: "x"}))
		assert.Error(t, store.Delete("x"))
	})
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("FLICKRDUMP_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{
		Name:             "personal",
		APIKey:           "key",
		APISecret:        "secret",
		OAuthToken:       "token",
		OAuthTokenSecret: "token-secret",
	}
	require.NoError(t, store.Store(account))

	got, err := store.Retrieve("personal")
	require.NoError(t, err)
	assert.Equal(t, account.APIKey, got.APIKey)
	assert.Equal(t, account.OAuthTokenSecret, got.OAuthTokenSecret)

	// The file is opaque without the passphrase; a fresh store with the
	// same passphrase can read it back.
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err = reopened.Retrieve("personal")
	require.NoError(t, err)
	assert.Equal(t, "token", got.OAuthToken)

	assert.True(t, store.Exists("personal"))
	assert.False(t, store.Exists("unknown"))

	require.NoError(t, store.Delete("personal"))
	_, err = store.Retrieve("personal")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("FLICKRDUMP_PASSPHRASE", "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Name: "a", APIKey: "k", OAuthToken: "t"}))

	t.Setenv("FLICKRDUMP_PASSPHRASE", "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("a")
	assert.Error(t, err, "a different passphrase must not decrypt the store")
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{
		Name:             "personal",
		APIKey:           "0123456789abcdef0123456789abcdef",
		APISecret:        "fedcba9876543210",
		OAuthToken:       "72157...very-long-token-value",
		OAuthTokenSecret: "short",
	}

	sanitized := SanitizeAccount(account)
	assert.Equal(t, "personal", sanitized.Name)
	assert.NotEqual(t, account.APIKey, sanitized.APIKey)
	assert.Contains(t, sanitized.APIKey, "...")
	assert.Equal(t, "********", sanitized.OAuthTokenSecret)

	assert.Nil(t, SanitizeAccount(nil))
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "********", maskString("tiny"))
	assert.Equal(t, "0123...cdef", maskString("0123456789abcdef"))
}
