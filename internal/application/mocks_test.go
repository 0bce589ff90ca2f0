package application

import (
	"context"
	"sync"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// --- Mock implementations of the driven ports ---

type mockCredentialStore struct {
	accounts   map[string]model.Account // id -> resolved account
	resolveErr error
}

func (m *mockCredentialStore) Add(_ context.Context, displayName, _ string) (model.Credential, error) {
	return model.Credential{ID: "new", DisplayName: displayName}, nil
}

func (m *mockCredentialStore) List(_ context.Context) ([]model.Credential, error) {
	return nil, nil
}

func (m *mockCredentialStore) Remove(_ context.Context, _ string) error {
	return nil
}

func (m *mockCredentialStore) Resolve(_ context.Context, ids []string) ([]model.Account, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	accounts := []model.Account{}
	for _, id := range ids {
		if a, ok := m.accounts[id]; ok {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

type mockContentSource struct {
	mu      sync.Mutex
	fetches int
	fetch   func(targetID string, account model.Account, limit int) ([]model.ContentItem, error)
}

func (m *mockContentSource) FetchRecent(_ context.Context, targetID string, account model.Account, limit int) ([]model.ContentItem, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()
	return m.fetch(targetID, account, limit)
}

func (m *mockContentSource) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// actionCall records one invocation of the mock action client.
type actionCall struct {
	Action  model.ActionKind
	Account model.Account
	ItemID  string
	Arg     string // reaction kind or comment text
}

type mockActionClient struct {
	mu    sync.Mutex
	calls []actionCall
	// fail decides per call whether to return an error; nil means all succeed.
	fail func(call actionCall, attempt int) error
	// attempts counts invocations per (action, account, item) for fail.
	attempts map[string]int
}

func (m *mockActionClient) record(call actionCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if m.fail == nil {
		return nil
	}
	if m.attempts == nil {
		m.attempts = make(map[string]int)
	}
	key := string(call.Action) + "|" + call.Account.ID + "|" + call.ItemID
	m.attempts[key]++
	return m.fail(call, m.attempts[key])
}

func (m *mockActionClient) React(_ context.Context, account model.Account, itemID, reactionKind string) error {
	return m.record(actionCall{Action: model.ActionReact, Account: account, ItemID: itemID, Arg: reactionKind})
}

func (m *mockActionClient) Comment(_ context.Context, account model.Account, itemID, text string) error {
	return m.record(actionCall{Action: model.ActionComment, Account: account, ItemID: itemID, Arg: text})
}

func (m *mockActionClient) Share(_ context.Context, account model.Account, itemID string) error {
	return m.record(actionCall{Action: model.ActionShare, Account: account, ItemID: itemID})
}

func (m *mockActionClient) callList() []actionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]actionCall(nil), m.calls...)
}

func (m *mockActionClient) callsFor(action model.ActionKind) []actionCall {
	var out []actionCall
	for _, c := range m.callList() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

type mockAuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *mockAuditStore) Append(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditStore) Recent(_ context.Context, n int) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]model.AuditEntry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *mockAuditStore) ByTarget(_ context.Context, targetID string, n int) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AuditEntry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		if m.entries[i].TargetID == targetID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockAuditStore) all() []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditEntry(nil), m.entries...)
}

type mockRefresher struct {
	mu        sync.Mutex
	refreshes int
	renew     func(account model.Account) (model.Account, error)
}

func (m *mockRefresher) Refresh(_ context.Context, account model.Account) (model.Account, error) {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	return m.renew(account)
}

var _ driven.CredentialStore = (*mockCredentialStore)(nil)
var _ driven.ContentSource = (*mockContentSource)(nil)
var _ driven.ActionClient = (*mockActionClient)(nil)
var _ driven.AuditStore = (*mockAuditStore)(nil)
var _ driven.CredentialRefresher = (*mockRefresher)(nil)
