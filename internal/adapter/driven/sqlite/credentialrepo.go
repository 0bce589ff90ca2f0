package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Secrets are encrypted with AES-256-GCM before write and decrypted only
// during Resolve; List never touches ciphertext.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Add encrypts secret with a fresh per-entry nonce and inserts it under a new
// uuid. The returned Credential carries metadata only.
func (r *CredentialRepo) Add(ctx context.Context, displayName, secret string) (model.Credential, error) {
	encrypted, err := r.encrypt(secret)
	if err != nil {
		return model.Credential{}, err
	}

	cred := model.Credential{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	const query = `INSERT INTO credentials (id, display_name, secret, created_at) VALUES (?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query, cred.ID, cred.DisplayName, encrypted, formatTime(cred.CreatedAt))
	if err != nil {
		return model.Credential{}, fmt.Errorf("add credential %q: %w", displayName, err)
	}
	return cred, nil
}

// List returns metadata for all stored credentials ordered by creation time.
// Secrets stay encrypted at rest; List does not require the key.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	const query = `SELECT id, display_name, created_at FROM credentials ORDER BY created_at, id`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		var cred model.Credential
		var createdAt string
		if err := rows.Scan(&cred.ID, &cred.DisplayName, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for credential %q: %w", cred.ID, err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Remove deletes the credential for the given id. Returns
// driven.ErrCredentialNotFound if no row was deleted.
func (r *CredentialRepo) Remove(ctx context.Context, id string) error {
	const query = `DELETE FROM credentials WHERE id = ?`
	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("remove credential %q: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove credential %q: rows affected: %w", id, err)
	}
	if affected == 0 {
		return driven.ErrCredentialNotFound
	}
	return nil
}

// Resolve decrypts the requested ids independently. Unknown ids and
// decryption failures (tamper or wrong key) are logged and skipped; they
// never abort resolution of the remaining ids.
func (r *CredentialRepo) Resolve(ctx context.Context, ids []string) ([]model.Account, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT display_name, secret FROM credentials WHERE id = ?`

	accounts := []model.Account{}
	for _, id := range ids {
		var displayName, encrypted string
		err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&displayName, &encrypted)
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("credential not found during resolve", "credential_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve credential %q: %w", id, err)
		}

		secret, err := r.decrypt(encrypted)
		if err != nil {
			slog.Error("credential decrypt failed, skipping", "credential_id", id, "error", err)
			continue
		}

		accounts = append(accounts, model.Account{ID: id, Name: displayName, Secret: secret})
	}

	return accounts, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
