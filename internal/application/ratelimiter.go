package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boostpanel/boostpanel/internal/domain/model"
)

// Default rate limiter tuning for the ad-hoc single-action path.
const (
	DefaultCooldown   = 15 * time.Minute
	DefaultDailyQuota = 10

	quotaResetPeriod = 24 * time.Hour
)

// RateLimitReason distinguishes which limit rejected a call.
type RateLimitReason string

const (
	ReasonCooldown RateLimitReason = "cooldown"
	ReasonQuota    RateLimitReason = "quota"
)

// RateLimitError rejects an ad-hoc action that would violate the
// per-credential cooldown or daily quota. RetryAfter estimates when the call
// would be admitted.
type RateLimitError struct {
	Reason     RateLimitReason
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s): retry in %s", e.Reason, e.RetryAfter.Round(time.Second))
}

// AsRateLimitError unwraps err to a *RateLimitError if one is in its chain.
func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr, true
	}
	return nil, false
}

// rateLimitState tracks one credential's budget. usedCount is never negative
// and resetAt is always in the future relative to the last reset.
type rateLimitState struct {
	usedCount  int
	lastUsedAt time.Time
	resetAt    time.Time
}

// RateLimiter gates ad-hoc single actions per credential, independently of
// any watch. State is created lazily on first use and kept in memory only;
// a restart grants a fresh budget.
type RateLimiter struct {
	cooldown   time.Duration
	dailyQuota int
	now        func() time.Time

	mu     sync.Mutex
	states map[string]*rateLimitState
}

// NewRateLimiter creates a RateLimiter. Non-positive arguments select the
// defaults (15m cooldown, 10 calls per 24h window).
func NewRateLimiter(cooldown time.Duration, dailyQuota int) *RateLimiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if dailyQuota <= 0 {
		dailyQuota = DefaultDailyQuota
	}
	return &RateLimiter{
		cooldown:   cooldown,
		dailyQuota: dailyQuota,
		now:        time.Now,
		states:     make(map[string]*rateLimitState),
	}
}

// Do admits or rejects one call for the credential, then runs it. Only a
// successful call consumes budget: a rejected or failed call leaves both
// cooldown and quota untouched.
func (l *RateLimiter) Do(ctx context.Context, credentialID string, call func(context.Context) error) error {
	if err := l.admit(credentialID); err != nil {
		return err
	}

	if err := call(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.states[credentialID]
	st.usedCount++
	st.lastUsedAt = l.now()
	return nil
}

// admit checks cooldown and quota for the credential, resetting the window
// first if it has elapsed.
func (l *RateLimiter) admit(credentialID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	st, ok := l.states[credentialID]
	if !ok {
		st = &rateLimitState{resetAt: now.Add(quotaResetPeriod)}
		l.states[credentialID] = st
	}

	if now.After(st.resetAt) {
		st.usedCount = 0
		st.resetAt = now.Add(quotaResetPeriod)
	}

	if !st.lastUsedAt.IsZero() {
		if elapsed := now.Sub(st.lastUsedAt); elapsed < l.cooldown {
			return &RateLimitError{Reason: ReasonCooldown, RetryAfter: l.cooldown - elapsed}
		}
	}

	if st.usedCount >= l.dailyQuota {
		return &RateLimitError{Reason: ReasonQuota, RetryAfter: st.resetAt.Sub(now)}
	}

	return nil
}

// State returns a copy of the credential's current limiter state, or a zero
// state if the credential has never been used.
func (l *RateLimiter) State(credentialID string) model.RateLimitState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[credentialID]
	if !ok {
		return model.RateLimitState{}
	}
	return model.RateLimitState{
		UsedCount:  st.usedCount,
		LastUsedAt: st.lastUsedAt,
		ResetAt:    st.resetAt,
	}
}
