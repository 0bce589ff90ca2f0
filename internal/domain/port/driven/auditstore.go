package driven

import (
	"context"

	"github.com/boostpanel/boostpanel/internal/domain/model"
)

// AuditStore defines the driven port for the append-only action audit trail.
// Entries are immutable once appended; the store may evict the oldest entries
// once its configured capacity is exceeded, and never removes entries any
// other way.
type AuditStore interface {
	// Append records one action outcome.
	Append(ctx context.Context, entry model.AuditEntry) error

	// Recent returns the most recent n entries, newest first.
	Recent(ctx context.Context, n int) ([]model.AuditEntry, error)

	// ByTarget returns the most recent n entries for one target, newest first.
	ByTarget(ctx context.Context, targetID string, n int) ([]model.AuditEntry, error)
}
