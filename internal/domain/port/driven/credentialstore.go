package driven

import (
	"context"
	"errors"

	"github.com/boostpanel/boostpanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// BOOSTPANEL_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set BOOSTPANEL_SECRET_KEY")

// ErrCredentialNotFound is returned by Remove when no credential exists for
// the given id.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore defines the driven port for encrypted credential
// persistence. The adapter layer owns encryption/decryption; this interface
// operates on plaintext secrets at the domain boundary and never leaks them
// through List.
type CredentialStore interface {
	// Add encrypts and stores a new secret under a fresh id and returns the
	// stored metadata. Returns ErrEncryptionKeyNotSet if the adapter was
	// constructed without an encryption key.
	Add(ctx context.Context, displayName, secret string) (model.Credential, error)

	// List returns metadata for all stored credentials, ordered by creation
	// time. Secrets are never included.
	List(ctx context.Context) ([]model.Credential, error)

	// Remove deletes the credential for the given id. Returns
	// ErrCredentialNotFound if no such credential exists. Removal is
	// immediate and not reversible.
	Remove(ctx context.Context, id string) error

	// Resolve decrypts the secrets for the given ids and returns the usable
	// accounts. Ids that do not exist or whose ciphertext fails to decrypt
	// are skipped, not fatal: the returned slice may be shorter than ids.
	Resolve(ctx context.Context, ids []string) ([]model.Account, error)
}

// CredentialRefresher exchanges an expired account secret for a renewed one.
// It is an optional capability: a nil refresher disables refresh-on-expiry
// and expired credentials simply fail their actions.
type CredentialRefresher interface {
	Refresh(ctx context.Context, account model.Account) (model.Account, error)
}
