package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/boostpanel/boostpanel/internal/domain/model"
)

// Error kinds exposed on failure responses.
const (
	kindValidationError     = "validation_error"
	kindCredentialError     = "credential_error"
	kindExternalAPIError    = "external_api_error"
	kindRateLimitExceeded   = "rate_limit_exceeded"
	kindConcurrencyConflict = "concurrency_conflict"
	kindNotFound            = "not_found"
	kindInternalError       = "internal_error"
)

// errorResponse is the standard error response body. Every failure carries a
// machine-readable kind alongside the message.
type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
	// RetryAfterSeconds is set only for rate_limit_exceeded.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_kind":"internal_error","error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status, kind, and message.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{ErrorKind: kind, Error: message})
}

// CredentialResponse is the JSON representation of stored credential metadata.
// The secret is never part of any response after creation.
type CredentialResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:        c.ID,
		Name:      c.DisplayName,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// WatchStatusResponse is the JSON representation of one running watch.
type WatchStatusResponse struct {
	TargetID      string   `json:"target_id"`
	ActivatedAt   string   `json:"activated_at"`
	AccountNames  []string `json:"account_names"`
	ReactionKinds []string `json:"reaction_kinds"`
	ItemsSeen     int      `json:"items_seen"`
}

func toWatchStatusResponse(s model.WatchStatus) WatchStatusResponse {
	return WatchStatusResponse{
		TargetID:      s.TargetID,
		ActivatedAt:   s.ActivatedAt.UTC().Format(time.RFC3339),
		AccountNames:  s.AccountNames,
		ReactionKinds: s.ReactionKinds,
		ItemsSeen:     s.ItemsSeen,
	}
}

// AuditEntryResponse is the JSON representation of one audit entry.
type AuditEntryResponse struct {
	Timestamp string `json:"timestamp"`
	TargetID  string `json:"target_id"`
	ItemID    string `json:"item_id"`
	AccountID string `json:"account_id"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

func toAuditEntryResponse(e model.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		TargetID:  e.TargetID,
		ItemID:    e.ItemID,
		AccountID: e.AccountID,
		Action:    string(e.Action),
		Outcome:   string(e.Outcome),
		Detail:    e.Detail,
	}
}
