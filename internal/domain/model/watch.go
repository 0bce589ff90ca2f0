package model

import "time"

// Default watch tuning values, applied by WatchConfig.Normalize when the
// caller leaves a field unset.
const (
	DefaultPollInterval    = 8 * time.Second
	DefaultPerAccountDelay = 1 * time.Second
	DefaultCommentText     = "Nice!"
	DefaultFetchLimit      = 10
)

// WatchConfig is the engagement configuration for one watch: which reactions
// to leave, what to comment, and how the poll/dispatch cadence is paced.
type WatchConfig struct {
	ReactionKinds   []string
	CommentText     string
	PerAccountDelay time.Duration
	PollInterval    time.Duration
}

// Normalize returns a copy of the config with defaults filled in for unset
// fields. ReactionKinds is left as-is; an empty list means no reactions are
// configured and the dispatcher falls back to "LIKE".
func (c WatchConfig) Normalize() WatchConfig {
	if c.CommentText == "" {
		c.CommentText = DefaultCommentText
	}
	if c.PerAccountDelay <= 0 {
		c.PerAccountDelay = DefaultPerAccountDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// WatchStatus is a read-only snapshot of one running watch, safe to hand to
// the control plane: account names only, never secrets.
type WatchStatus struct {
	TargetID      string
	ActivatedAt   time.Time
	AccountNames  []string
	ReactionKinds []string
	ItemsSeen     int
}
