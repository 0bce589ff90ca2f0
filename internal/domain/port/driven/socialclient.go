package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/boostpanel/boostpanel/internal/domain/model"
)

// APIError is the structured error indicator carried by a content/action API
// response. A response is a failure if it carries any of these fields,
// regardless of transport status.
type APIError struct {
	Status  int    // HTTP status, 0 when the call failed before a response
	Code    string // machine-readable error code from the response body
	Message string // human-readable error message from the response body
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%q message=%q", e.Status, e.Code, e.Message)
}

// IsCredentialExpired reports whether this error indicates the credential
// needs to be exchanged for a renewed one.
func (e *APIError) IsCredentialExpired() bool {
	return e.Status == 401 || e.Code == "credential_expired"
}

// AsAPIError unwraps err to an *APIError if one is in its chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ContentSource defines the driven port for enumerating recent content of a
// target. Ordering is newest-first; a later poll may reorder or omit items
// that disappeared upstream, so callers must not assume pagination
// consistency.
type ContentSource interface {
	// FetchRecent returns up to limit of the target's most recent items,
	// newest first, as seen through the given account.
	FetchRecent(ctx context.Context, targetID string, account model.Account, limit int) ([]model.ContentItem, error)
}

// ActionClient defines the driven port for the three engagement operations.
// None of the operations is idempotent on the external side; retrying may
// duplicate the visible effect.
type ActionClient interface {
	React(ctx context.Context, account model.Account, itemID, reactionKind string) error
	Comment(ctx context.Context, account model.Account, itemID, text string) error
	Share(ctx context.Context, account model.Account, itemID string) error
}
