package model

import "time"

// RateLimitState is a snapshot of one credential's ad-hoc action budget.
// Independent of any watch; created lazily on the credential's first use.
type RateLimitState struct {
	UsedCount  int
	LastUsedAt time.Time
	ResetAt    time.Time
}
