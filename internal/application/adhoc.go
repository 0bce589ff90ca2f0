package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// adHocTargetID marks audit entries produced outside any watch.
const adHocTargetID = "ad-hoc"

// AdHocService performs a single caller-invoked action with one credential,
// gated by the RateLimiter. It never touches the watch registry.
type AdHocService struct {
	creds   driven.CredentialStore
	actions driven.ActionClient
	limiter *RateLimiter
	audit   driven.AuditStore
}

// NewAdHocService creates an AdHocService.
func NewAdHocService(creds driven.CredentialStore, actions driven.ActionClient, limiter *RateLimiter, audit driven.AuditStore) *AdHocService {
	return &AdHocService{creds: creds, actions: actions, limiter: limiter, audit: audit}
}

// Perform runs one action for one credential against one item. arg is the
// reaction kind for react and the comment text for comment; share ignores it.
// A RateLimitError is returned synchronously; rejected calls are never queued
// or retried. Executed calls are audited whether they succeed or fail.
func (s *AdHocService) Perform(ctx context.Context, credentialID, itemID string, action model.ActionKind, arg string) error {
	accounts, err := s.creds.Resolve(ctx, []string{credentialID})
	if err != nil {
		return fmt.Errorf("resolve credential %s: %w", credentialID, err)
	}
	if len(accounts) == 0 {
		return ErrNoUsableAccounts
	}
	account := accounts[0]

	err = s.limiter.Do(ctx, credentialID, func(ctx context.Context) error {
		switch action {
		case model.ActionReact:
			kind := arg
			if kind == "" {
				kind = fallbackReactionKind
			}
			return s.actions.React(ctx, account, itemID, kind)
		case model.ActionComment:
			text := arg
			if text == "" {
				text = model.DefaultCommentText
			}
			return s.actions.Comment(ctx, account, itemID, text)
		case model.ActionShare:
			return s.actions.Share(ctx, account, itemID)
		default:
			return fmt.Errorf("unknown action kind %q", action)
		}
	})

	// Rejections never reach the external API, so there is nothing to audit.
	if _, rejected := AsRateLimitError(err); rejected {
		return err
	}

	entry := model.AuditEntry{
		Timestamp: time.Now().UTC(),
		TargetID:  adHocTargetID,
		ItemID:    itemID,
		AccountID: account.ID,
		Action:    action,
		Outcome:   model.OutcomeSuccess,
	}
	if err != nil {
		entry.Outcome = model.OutcomeFailure
		entry.Detail = err.Error()
	}
	if auditErr := s.audit.Append(ctx, entry); auditErr != nil {
		slog.Error("audit append failed", "item", itemID, "error", auditErr)
	}

	return err
}
