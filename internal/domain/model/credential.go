package model

import "time"

// Credential is the stored metadata for one account secret. The secret itself
// is encrypted at rest and never appears on this type; it is only materialized
// transiently as an Account during resolution.
type Credential struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// Account is a resolved credential: the decrypted secret paired with its
// identity. Accounts live in memory only and must never be persisted.
type Account struct {
	ID     string
	Name   string
	Secret string
}
