package model

import "time"

// ActionKind identifies one of the three engagement operations performed
// against the external API.
type ActionKind string

const (
	ActionReact   ActionKind = "react"
	ActionComment ActionKind = "comment"
	ActionShare   ActionKind = "share"
)

// Outcome records whether an action ultimately succeeded or exhausted its
// retries.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AuditEntry is one append-only record of a dispatched action. Entries are
// never mutated after creation; the audit store may evict the oldest entries
// once its capacity is exceeded.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	TargetID  string
	ItemID    string
	AccountID string
	Action    ActionKind
	Outcome   Outcome
	Detail    string // error text on failure, empty on success
}
