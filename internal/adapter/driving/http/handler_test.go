package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/boostpanel/boostpanel/internal/adapter/driving/http"
	"github.com/boostpanel/boostpanel/internal/application"
	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// --- Minimal port mocks for handler tests ---

type stubCredentialStore struct {
	creds map[string]model.Account
}

func (s *stubCredentialStore) Add(_ context.Context, displayName, _ string) (model.Credential, error) {
	id := "cred-" + displayName
	s.creds[id] = model.Account{ID: id, Name: displayName, Secret: "s"}
	return model.Credential{ID: id, DisplayName: displayName, CreatedAt: time.Now().UTC()}, nil
}

func (s *stubCredentialStore) List(_ context.Context) ([]model.Credential, error) {
	out := []model.Credential{}
	for id, a := range s.creds {
		out = append(out, model.Credential{ID: id, DisplayName: a.Name})
	}
	return out, nil
}

func (s *stubCredentialStore) Remove(_ context.Context, id string) error {
	if _, ok := s.creds[id]; !ok {
		return driven.ErrCredentialNotFound
	}
	delete(s.creds, id)
	return nil
}

func (s *stubCredentialStore) Resolve(_ context.Context, ids []string) ([]model.Account, error) {
	out := []model.Account{}
	for _, id := range ids {
		if a, ok := s.creds[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubContentSource struct{}

func (stubContentSource) FetchRecent(context.Context, string, model.Account, int) ([]model.ContentItem, error) {
	return nil, nil
}

type stubActionClient struct{}

func (stubActionClient) React(context.Context, model.Account, string, string) error { return nil }
func (stubActionClient) Comment(context.Context, model.Account, string, string) error {
	return nil
}
func (stubActionClient) Share(context.Context, model.Account, string) error { return nil }

type stubAuditStore struct {
	entries []model.AuditEntry
}

func (s *stubAuditStore) Append(_ context.Context, e model.AuditEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubAuditStore) Recent(_ context.Context, n int) ([]model.AuditEntry, error) {
	if n > len(s.entries) {
		n = len(s.entries)
	}
	return s.entries[len(s.entries)-n:], nil
}

func (s *stubAuditStore) ByTarget(_ context.Context, target string, _ int) ([]model.AuditEntry, error) {
	out := []model.AuditEntry{}
	for _, e := range s.entries {
		if e.TargetID == target {
			out = append(out, e)
		}
	}
	return out, nil
}

// newTestServer wires real application services over the stub ports.
func newTestServer(t *testing.T) (*httptest.Server, *stubCredentialStore) {
	t.Helper()

	creds := &stubCredentialStore{creds: map[string]model.Account{
		"cred-1": {ID: "cred-1", Name: "alpha", Secret: "s1"},
	}}
	audit := &stubAuditStore{}
	actions := stubActionClient{}

	dispatcher := application.NewDispatcher(actions, audit, nil)
	registry := application.NewBotRegistry(creds, stubContentSource{}, dispatcher, 0)
	t.Cleanup(registry.StopAll)

	limiter := application.NewRateLimiter(15*time.Minute, 10)
	adhoc := application.NewAdHocService(creds, actions, limiter, audit)

	logger := slog.New(slog.DiscardHandler)
	h := httphandler.NewHandler(creds, audit, registry, adhoc, logger)
	server := httptest.NewServer(httphandler.NewServeMux(h, logger))
	t.Cleanup(server.Close)

	return server, creds
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAddCredential_NeverEchoesSecret(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/credentials",
		`{"name":"burner","secret":"super-secret-token"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "burner", body["name"])
	assert.NotContains(t, body, "secret")
}

func TestAddCredential_Validation(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/credentials", `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "validation_error", body["error_kind"])
}

func TestRemoveCredential_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, server.URL+"/api/v1/credentials/ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartWatch_ThenConflict(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/watches",
		`{"target_id":"T1","credential_ids":["cred-1"],"reaction_kinds":["LIKE"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, float64(1), body["accounts"])

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/watches",
		`{"target_id":"T1","credential_ids":["cred-1"]}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body = decodeBody[map[string]any](t, resp)
	assert.Equal(t, "concurrency_conflict", body["error_kind"])
}

func TestStartWatch_UnresolvableCredentials(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/watches",
		`{"target_id":"T1","credential_ids":["ghost"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "credential_error", body["error_kind"])
}

func TestStopWatch_UnknownTarget(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, server.URL+"/api/v1/watches/never-started", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, false, body["stopped"])
}

func TestPerformAction_RateLimited(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/actions",
		`{"credential_id":"cred-1","item_id":"item-1","action":"react","arg":"LIKE"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/actions",
		`{"credential_id":"cred-1","item_id":"item-2","action":"react","arg":"LIKE"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "rate_limit_exceeded", body["error_kind"])
	assert.InDelta(t, 900, body["retry_after_seconds"], 5)
}

func TestPerformAction_Validation(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/actions",
		`{"credential_id":"cred-1","item_id":"item-1","action":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryAudit_FilterByTarget(t *testing.T) {
	server, _ := newTestServer(t)

	// An ad-hoc action produces one audit entry under the "ad-hoc" target.
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/actions",
		`{"credential_id":"cred-1","item_id":"item-1","action":"share"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/audit?target=ad-hoc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := decodeBody[[]map[string]any](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "item-1", entries[0]["item_id"])
	assert.Equal(t, "success", entries[0]["outcome"])
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
