package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditStore = (*AuditRepo)(nil)

// DefaultAuditCapacity bounds the audit trail when no capacity is configured.
const DefaultAuditCapacity = 500

// AuditRepo is the SQLite implementation of the AuditStore port. Entries are
// append-only; once the table grows past capacity the oldest rows are evicted
// inside the same write path, so the trail is bounded without a separate
// janitor.
type AuditRepo struct {
	db       *DB
	capacity int
}

// NewAuditRepo creates a new AuditRepo retaining at most capacity entries.
// capacity <= 0 selects DefaultAuditCapacity.
func NewAuditRepo(db *DB, capacity int) *AuditRepo {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditRepo{db: db, capacity: capacity}
}

// Append records one action outcome and evicts the oldest entries beyond
// capacity.
func (r *AuditRepo) Append(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	const insert = `INSERT INTO audit_entries (id, ts, target_id, item_id, account_id, action, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, insert,
		entry.ID, formatTime(entry.Timestamp), entry.TargetID, entry.ItemID,
		entry.AccountID, string(entry.Action), string(entry.Outcome), entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	const evict = `DELETE FROM audit_entries WHERE seq <= (
		SELECT seq FROM audit_entries ORDER BY seq DESC LIMIT 1 OFFSET ?
	)`
	if _, err := r.db.Writer.ExecContext(ctx, evict, r.capacity); err != nil {
		return fmt.Errorf("evict audit entries: %w", err)
	}

	return nil
}

// Recent returns the most recent n entries, newest first.
func (r *AuditRepo) Recent(ctx context.Context, n int) ([]model.AuditEntry, error) {
	const query = `SELECT id, ts, target_id, item_id, account_id, action, outcome, detail
		FROM audit_entries ORDER BY seq DESC LIMIT ?`
	return r.query(ctx, query, n)
}

// ByTarget returns the most recent n entries for one target, newest first.
func (r *AuditRepo) ByTarget(ctx context.Context, targetID string, n int) ([]model.AuditEntry, error) {
	const query = `SELECT id, ts, target_id, item_id, account_id, action, outcome, detail
		FROM audit_entries WHERE target_id = ? ORDER BY seq DESC LIMIT ?`
	return r.query(ctx, query, targetID, n)
}

func (r *AuditRepo) query(ctx context.Context, query string, args ...any) ([]model.AuditEntry, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var entry model.AuditEntry
		var ts, action, outcome string
		if err := rows.Scan(&entry.ID, &ts, &entry.TargetID, &entry.ItemID,
			&entry.AccountID, &action, &outcome, &entry.Detail); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		entry.Action = model.ActionKind(action)
		entry.Outcome = model.Outcome(outcome)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
