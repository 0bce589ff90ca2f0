// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// Retry policy for each individual action operation.
const (
	retryAttempts  = 3
	retryBaseDelay = 700 * time.Millisecond
	retryFactor    = 2.0
)

// fallbackReactionKind is used when a watch is configured with no reaction
// kinds at all.
const fallbackReactionKind = "LIKE"

// Dispatcher performs the three engagement operations for each account of a
// watch against one content item. It is stateless per call: all per-watch
// state (dedup, activation boundary) is owned by the registry.
type Dispatcher struct {
	actions   driven.ActionClient
	audit     driven.AuditStore
	refresher driven.CredentialRefresher // nil disables refresh-on-expiry

	// newBackOff builds the per-operation retry schedule. Swapped in tests
	// to avoid real sleeps.
	newBackOff func() backoff.BackOff
	// sleep waits between accounts; context-aware so Stop is not held up by
	// a pending inter-account delay.
	sleep func(ctx context.Context, d time.Duration)
}

// NewDispatcher creates a Dispatcher. refresher may be nil, in which case an
// expired credential simply fails its operations.
func NewDispatcher(actions driven.ActionClient, audit driven.AuditStore, refresher driven.CredentialRefresher) *Dispatcher {
	return &Dispatcher{
		actions:    actions,
		audit:      audit,
		refresher:  refresher,
		newBackOff: newRetryBackOff,
		sleep:      ctxSleep,
	}
}

// newRetryBackOff returns the retry schedule for one operation: 3 attempts
// total, the second delayed 700ms after the first and the third 1400ms after
// the second. No jitter, so the schedule is deterministic.
func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.Multiplier = retryFactor
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	// NewExponentialBackOff latches its defaults into the current interval;
	// re-sync it with the fields set above.
	b.Reset()
	return backoff.WithMaxRetries(b, retryAttempts-1)
}

// ctxSleep sleeps for d or until ctx is done, whichever comes first.
func ctxSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// DispatchItem runs react, comment, and share for every account, in list
// order. Accounts are processed sequentially with a configurable delay in
// between to avoid bursty request patterns. One account's failure never
// aborts the remaining accounts; every operation outcome is audited.
func (d *Dispatcher) DispatchItem(ctx context.Context, item model.ContentItem, targetID string, accounts []model.Account, cfg model.WatchConfig) {
	for i, account := range accounts {
		if ctx.Err() != nil {
			return
		}

		kind := fallbackReactionKind
		if len(cfg.ReactionKinds) > 0 {
			// Round-robin keyed by account index: deterministic coverage of
			// the configured kinds across accounts.
			kind = cfg.ReactionKinds[i%len(cfg.ReactionKinds)]
		}

		commentText := cfg.CommentText
		if commentText == "" {
			commentText = model.DefaultCommentText
		}

		d.dispatchAccount(ctx, item, targetID, account, kind, commentText)

		if i < len(accounts)-1 {
			d.sleep(ctx, cfg.PerAccountDelay)
		}
	}
}

// dispatchAccount runs the three operations for one account. Each operation
// is retried independently; a recognized credential-expiry failure triggers
// at most one refresh for the account, after which the failed operation gets
// a second retry cycle with the renewed secret.
func (d *Dispatcher) dispatchAccount(ctx context.Context, item model.ContentItem, targetID string, account model.Account, reactionKind, commentText string) {
	refreshed := false

	run := func(action model.ActionKind, op func(model.Account) error) {
		err := d.retry(ctx, func() error { return op(account) })

		if err != nil && !refreshed && d.refresher != nil {
			if apiErr, ok := driven.AsAPIError(err); ok && apiErr.IsCredentialExpired() {
				renewed, refreshErr := d.refresher.Refresh(ctx, account)
				if refreshErr != nil {
					slog.Error("credential refresh failed",
						"target", targetID, "account", account.Name, "error", refreshErr)
				} else {
					account = renewed
					refreshed = true
					err = d.retry(ctx, func() error { return op(account) })
				}
			}
		}

		d.record(ctx, item, targetID, account, action, err)
	}

	run(model.ActionReact, func(a model.Account) error {
		return d.actions.React(ctx, a, item.ID, reactionKind)
	})
	run(model.ActionComment, func(a model.Account) error {
		return d.actions.Comment(ctx, a, item.ID, commentText)
	})
	run(model.ActionShare, func(a model.Account) error {
		return d.actions.Share(ctx, a, item.ID)
	})
}

// retry runs op through the configured backoff schedule. The final failure is
// returned, not raised further: callers record it and move on.
func (d *Dispatcher) retry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(d.newBackOff(), ctx))
}

// record appends one audit entry for an operation outcome. Audit failures are
// logged and swallowed; losing an audit line must not fail the dispatch.
func (d *Dispatcher) record(ctx context.Context, item model.ContentItem, targetID string, account model.Account, action model.ActionKind, opErr error) {
	entry := model.AuditEntry{
		Timestamp: time.Now().UTC(),
		TargetID:  targetID,
		ItemID:    item.ID,
		AccountID: account.ID,
		Action:    action,
		Outcome:   model.OutcomeSuccess,
	}
	if opErr != nil {
		entry.Outcome = model.OutcomeFailure
		entry.Detail = opErr.Error()
		slog.Warn("action failed after retries",
			"target", targetID, "item", item.ID, "account", account.Name,
			"action", string(action), "error", opErr)
	}

	// A stop mid-tick must still record outcomes of work already performed,
	// so the append is detached from the watch's cancellation.
	if err := d.audit.Append(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("audit append failed", "target", targetID, "item", item.ID, "error", err)
	}
}
