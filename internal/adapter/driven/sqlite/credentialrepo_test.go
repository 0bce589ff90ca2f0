package sqlite

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

func TestCredentialRepo_AddAndResolve(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	cred, err := repo.Add(ctx, "main account", "session-token-abc123")
	require.NoError(t, err)
	require.NotEmpty(t, cred.ID)
	assert.Equal(t, "main account", cred.DisplayName)
	assert.False(t, cred.CreatedAt.IsZero())

	accounts, err := repo.Resolve(ctx, []string{cred.ID})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, cred.ID, accounts[0].ID)
	assert.Equal(t, "main account", accounts[0].Name)
	assert.Equal(t, "session-token-abc123", accounts[0].Secret)
}

func TestCredentialRepo_RoundTripPreservesSecret(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	secrets := []string{
		"0123456789",
		"a-much-longer-secret-with-punctuation-!@#$%^&*()",
		"unicode-sécrét-ключ-秘密",
	}

	for _, secret := range secrets {
		cred, err := repo.Add(ctx, "acct", secret)
		require.NoError(t, err)

		accounts, err := repo.Resolve(ctx, []string{cred.ID})
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, secret, accounts[0].Secret)
	}
}

func TestCredentialRepo_ListNeverExposesSecrets(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	_, err := repo.Add(ctx, "first", "secret-one-value")
	require.NoError(t, err)
	_, err = repo.Add(ctx, "second", "secret-two-value")
	require.NoError(t, err)

	creds, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "first", creds[0].DisplayName)
	assert.Equal(t, "second", creds[1].DisplayName)
}

func TestCredentialRepo_RemoveMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())

	err := repo.Remove(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_Remove(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	cred, err := repo.Add(ctx, "doomed", "secret-to-delete")
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, cred.ID))

	creds, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialRepo_ResolveSkipsTampered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	good, err := repo.Add(ctx, "good", "intact-secret-value")
	require.NoError(t, err)
	bad, err := repo.Add(ctx, "bad", "tampered-secret-value")
	require.NoError(t, err)

	// Flip one bit of the stored ciphertext; GCM must reject it outright
	// rather than return a corrupted plaintext.
	var encoded string
	err = db.Reader.QueryRowContext(ctx, `SELECT secret FROM credentials WHERE id = ?`, bad.ID).Scan(&encoded)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = db.Writer.ExecContext(ctx, `UPDATE credentials SET secret = ? WHERE id = ?`,
		base64.StdEncoding.EncodeToString(raw), bad.ID)
	require.NoError(t, err)

	accounts, err := repo.Resolve(ctx, []string{good.ID, bad.ID})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, good.ID, accounts[0].ID)
	assert.Equal(t, "intact-secret-value", accounts[0].Secret)
}

func TestCredentialRepo_ResolveSkipsUnknownIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	cred, err := repo.Add(ctx, "only", "the-only-secret")
	require.NoError(t, err)

	accounts, err := repo.Resolve(ctx, []string{"ghost", cred.ID, "phantom"})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, cred.ID, accounts[0].ID)
}

func TestCredentialRepo_NoKeyConfigured(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	_, err := repo.Add(ctx, "acct", "some-secret")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Resolve(ctx, []string{"any"})
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}
