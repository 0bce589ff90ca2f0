// Package httphandler is the HTTP driving adapter serving the control-plane
// REST API: credential management, watch lifecycle, ad-hoc actions, and audit
// queries.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/boostpanel/boostpanel/internal/application"
	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

const defaultAuditQueryLimit = 50

// Handler is the HTTP driving adapter for the orchestration core.
type Handler struct {
	creds    driven.CredentialStore
	audit    driven.AuditStore
	registry *application.BotRegistry
	adhoc    *application.AdHocService
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	creds driven.CredentialStore,
	audit driven.AuditStore,
	registry *application.BotRegistry,
	adhoc *application.AdHocService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:    creds,
		audit:    audit,
		registry: registry,
		adhoc:    adhoc,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/credentials", h.AddCredential)
	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.RemoveCredential)

	mux.HandleFunc("POST /api/v1/watches", h.StartWatch)
	mux.HandleFunc("GET /api/v1/watches", h.WatchStatus)
	mux.HandleFunc("DELETE /api/v1/watches/{target}", h.StopWatch)

	mux.HandleFunc("POST /api/v1/actions", h.PerformAction)
	mux.HandleFunc("GET /api/v1/audit", h.QueryAudit)

	mux.HandleFunc("GET /healthz", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// AddCredentialRequest is the body of POST /api/v1/credentials.
type AddCredentialRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// AddCredential stores a new encrypted credential. The secret appears in the
// request only; no response ever carries it back.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req AddCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidationError, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Secret == "" {
		writeError(w, http.StatusBadRequest, kindValidationError, "name and secret are required")
		return
	}

	cred, err := h.creds.Add(r.Context(), req.Name, req.Secret)
	if err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			writeError(w, http.StatusConflict, kindCredentialError, err.Error())
			return
		}
		h.logger.Error("failed to add credential", "error", err)
		writeError(w, http.StatusInternalServerError, kindInternalError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// ListCredentials returns metadata for all stored credentials.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.creds.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list credentials", "error", err)
		writeError(w, http.StatusInternalServerError, kindInternalError, "internal server error")
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, toCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveCredential deletes a credential by id.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.creds.Remove(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrCredentialNotFound) {
			writeError(w, http.StatusNotFound, kindNotFound, "credential not found")
			return
		}
		h.logger.Error("failed to remove credential", "credential_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, kindInternalError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartWatchRequest is the body of POST /api/v1/watches.
type StartWatchRequest struct {
	TargetID          string   `json:"target_id"`
	CredentialIDs     []string `json:"credential_ids"`
	ReactionKinds     []string `json:"reaction_kinds"`
	CommentText       string   `json:"comment_text"`
	PerAccountDelayMs int      `json:"per_account_delay_ms"`
	PollIntervalMs    int      `json:"poll_interval_ms"`
}

// StartWatchResponse reports how many accounts the new watch resolved.
type StartWatchResponse struct {
	TargetID string `json:"target_id"`
	Accounts int    `json:"accounts"`
}

// StartWatch activates a watch for a target. The response reflects the first
// poll, which runs before the registry returns.
func (h *Handler) StartWatch(w http.ResponseWriter, r *http.Request) {
	var req StartWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidationError, "invalid request body")
		return
	}

	req.TargetID = strings.TrimSpace(req.TargetID)
	if req.TargetID == "" {
		writeError(w, http.StatusBadRequest, kindValidationError, "target_id is required")
		return
	}
	if len(req.CredentialIDs) == 0 {
		writeError(w, http.StatusBadRequest, kindValidationError, "credential_ids must not be empty")
		return
	}

	cfg := model.WatchConfig{
		ReactionKinds:   req.ReactionKinds,
		CommentText:     req.CommentText,
		PerAccountDelay: time.Duration(req.PerAccountDelayMs) * time.Millisecond,
		PollInterval:    time.Duration(req.PollIntervalMs) * time.Millisecond,
	}

	accounts, err := h.registry.Start(r.Context(), req.TargetID, req.CredentialIDs, cfg)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrWatchAlreadyRunning):
			writeError(w, http.StatusConflict, kindConcurrencyConflict, "watch already running for target")
		case errors.Is(err, application.ErrNoUsableAccounts):
			writeError(w, http.StatusUnprocessableEntity, kindCredentialError, "no usable accounts resolved")
		default:
			h.logger.Error("failed to start watch", "target", req.TargetID, "error", err)
			writeError(w, http.StatusInternalServerError, kindInternalError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, StartWatchResponse{TargetID: req.TargetID, Accounts: accounts})
}

// StopWatchResponse reports whether a watch was actually stopped.
type StopWatchResponse struct {
	TargetID string `json:"target_id"`
	Stopped  bool   `json:"stopped"`
}

// StopWatch deactivates the watch for a target. Stopping an unknown target is
// a benign no-op, never an error.
func (h *Handler) StopWatch(w http.ResponseWriter, r *http.Request) {
	target := r.PathValue("target")
	stopped := h.registry.Stop(target)
	writeJSON(w, http.StatusOK, StopWatchResponse{TargetID: target, Stopped: stopped})
}

// WatchStatus returns a snapshot of all running watches.
func (h *Handler) WatchStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := h.registry.Status()
	resp := make([]WatchStatusResponse, 0, len(statuses))
	for _, s := range statuses {
		resp = append(resp, toWatchStatusResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// PerformActionRequest is the body of POST /api/v1/actions.
type PerformActionRequest struct {
	CredentialID string `json:"credential_id"`
	ItemID       string `json:"item_id"`
	Action       string `json:"action"` // react | comment | share
	Arg          string `json:"arg"`    // reaction kind or comment text
}

// PerformAction runs one ad-hoc action through the rate limiter.
func (h *Handler) PerformAction(w http.ResponseWriter, r *http.Request) {
	var req PerformActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidationError, "invalid request body")
		return
	}

	action := model.ActionKind(req.Action)
	switch action {
	case model.ActionReact, model.ActionComment, model.ActionShare:
	default:
		writeError(w, http.StatusBadRequest, kindValidationError, "action must be react, comment, or share")
		return
	}
	if req.CredentialID == "" || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, kindValidationError, "credential_id and item_id are required")
		return
	}

	err := h.adhoc.Perform(r.Context(), req.CredentialID, req.ItemID, action, req.Arg)
	if err != nil {
		if rlErr, ok := application.AsRateLimitError(err); ok {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				ErrorKind:         kindRateLimitExceeded,
				Error:             rlErr.Error(),
				RetryAfterSeconds: int(rlErr.RetryAfter.Seconds()),
			})
			return
		}
		if errors.Is(err, application.ErrNoUsableAccounts) {
			writeError(w, http.StatusUnprocessableEntity, kindCredentialError, "credential did not resolve")
			return
		}
		if _, ok := driven.AsAPIError(err); ok {
			writeError(w, http.StatusBadGateway, kindExternalAPIError, err.Error())
			return
		}
		h.logger.Error("ad-hoc action failed", "item", req.ItemID, "error", err)
		writeError(w, http.StatusInternalServerError, kindInternalError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QueryAudit returns recent audit entries, optionally filtered by target.
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditQueryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, kindValidationError, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var entries []model.AuditEntry
	var err error
	if target := r.URL.Query().Get("target"); target != "" {
		entries, err = h.audit.ByTarget(r.Context(), target, limit)
	} else {
		entries, err = h.audit.Recent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("failed to query audit entries", "error", err)
		writeError(w, http.StatusInternalServerError, kindInternalError, "internal server error")
		return
	}

	resp := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toAuditEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
