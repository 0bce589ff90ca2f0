package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// ErrWatchAlreadyRunning is returned by Start when a watch for the target
// already exists. The existing watch is left untouched.
var ErrWatchAlreadyRunning = errors.New("watch already running for target")

// ErrNoUsableAccounts is returned by Start when credential resolution yields
// zero usable accounts (all ids unknown or all decryptions failed).
var ErrNoUsableAccounts = errors.New("no usable accounts resolved")

// watch is the live state of one target being watched. processed only grows
// for the lifetime of the watch, except through the explicit prune operation.
type watch struct {
	targetID    string
	activatedAt time.Time
	accounts    []model.Account
	config      model.WatchConfig

	mu        sync.Mutex
	processed map[string]time.Time // item id -> first seen

	cancel context.CancelFunc
	done   chan struct{}
}

// BotRegistry owns the set of active watches. It is the only shared mutable
// state in the orchestration core; every access to the watches map goes
// through its mutex. Each watch runs one goroutine, so poll ticks for a
// target can never overlap while different targets poll concurrently.
type BotRegistry struct {
	creds      driven.CredentialStore
	source     driven.ContentSource
	dispatcher *Dispatcher
	fetchLimit int

	now func() time.Time

	mu      sync.Mutex
	watches map[string]*watch
}

// NewBotRegistry creates a BotRegistry. fetchLimit bounds how many items one
// poll may return; <= 0 selects model.DefaultFetchLimit.
func NewBotRegistry(creds driven.CredentialStore, source driven.ContentSource, dispatcher *Dispatcher, fetchLimit int) *BotRegistry {
	if fetchLimit <= 0 {
		fetchLimit = model.DefaultFetchLimit
	}
	return &BotRegistry{
		creds:      creds,
		source:     source,
		dispatcher: dispatcher,
		fetchLimit: fetchLimit,
		now:        time.Now,
		watches:    make(map[string]*watch),
	}
}

// Start activates a watch for targetID. It resolves the credentials, runs one
// poll synchronously so the caller's response reflects the first batch of
// actions, then schedules recurring polls at the configured interval.
// Returns the number of resolved accounts, ErrWatchAlreadyRunning if the
// target is already watched, or ErrNoUsableAccounts if nothing resolved.
func (r *BotRegistry) Start(ctx context.Context, targetID string, credentialIDs []string, cfg model.WatchConfig) (int, error) {
	cfg = cfg.Normalize()

	accounts, err := r.creds.Resolve(ctx, credentialIDs)
	if err != nil {
		return 0, fmt.Errorf("resolve credentials for %s: %w", targetID, err)
	}
	if len(accounts) == 0 {
		return 0, ErrNoUsableAccounts
	}

	// The watch outlives the start request, so its context is detached from
	// the caller's and only Stop cancels it.
	wctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		targetID:    targetID,
		activatedAt: r.now(),
		accounts:    accounts,
		config:      cfg,
		processed:   make(map[string]time.Time),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	// Map insertion is the linearization point: of two concurrent starts for
	// the same target, exactly one inserts and the other conflicts here.
	r.mu.Lock()
	if _, exists := r.watches[targetID]; exists {
		r.mu.Unlock()
		cancel()
		return 0, ErrWatchAlreadyRunning
	}
	r.watches[targetID] = w
	r.mu.Unlock()

	slog.Info("watch started",
		"target", targetID,
		"accounts", len(accounts),
		"poll_interval", cfg.PollInterval,
	)

	r.tick(wctx, w)

	go r.run(wctx, w)

	return len(accounts), nil
}

// Stop deactivates the watch for targetID and discards its state. It is
// idempotent: stopping an unknown target returns false and is not an error.
// After Stop returns no further tick will begin; a tick already in flight
// runs to completion and its outcomes are still recorded.
func (r *BotRegistry) Stop(targetID string) bool {
	r.mu.Lock()
	w, ok := r.watches[targetID]
	if ok {
		delete(r.watches, targetID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	w.cancel()
	slog.Info("watch stopped", "target", targetID)
	return true
}

// StopAll stops every active watch and waits for their loops to exit. Used
// during shutdown.
func (r *BotRegistry) StopAll() {
	r.mu.Lock()
	watches := make([]*watch, 0, len(r.watches))
	for id, w := range r.watches {
		watches = append(watches, w)
		delete(r.watches, id)
	}
	r.mu.Unlock()

	for _, w := range watches {
		w.cancel()
	}
	for _, w := range watches {
		<-w.done
	}
}

// Status returns a read-only snapshot of all running watches, sorted by
// target id. It never triggers a poll and never exposes secrets.
func (r *BotRegistry) Status() []model.WatchStatus {
	r.mu.Lock()
	watches := make([]*watch, 0, len(r.watches))
	for _, w := range r.watches {
		watches = append(watches, w)
	}
	r.mu.Unlock()

	statuses := make([]model.WatchStatus, 0, len(watches))
	for _, w := range watches {
		names := make([]string, len(w.accounts))
		for i, a := range w.accounts {
			names[i] = a.Name
		}

		w.mu.Lock()
		seen := len(w.processed)
		w.mu.Unlock()

		statuses = append(statuses, model.WatchStatus{
			TargetID:      w.targetID,
			ActivatedAt:   w.activatedAt,
			AccountNames:  names,
			ReactionKinds: w.config.ReactionKinds,
			ItemsSeen:     seen,
		})
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].TargetID < statuses[j].TargetID })
	return statuses
}

// PruneProcessedBefore drops dedup entries first seen before horizon from
// every running watch and returns how many were removed. The dedup set has no
// automatic eviction; this is an operator-invoked retention valve for
// long-lived watches. Pruning an entry makes its item eligible again if the
// source ever re-serves it.
func (r *BotRegistry) PruneProcessedBefore(horizon time.Time) int {
	r.mu.Lock()
	watches := make([]*watch, 0, len(r.watches))
	for _, w := range r.watches {
		watches = append(watches, w)
	}
	r.mu.Unlock()

	var pruned int
	for _, w := range watches {
		w.mu.Lock()
		for id, firstSeen := range w.processed {
			if firstSeen.Before(horizon) {
				delete(w.processed, id)
				pruned++
			}
		}
		w.mu.Unlock()
	}
	return pruned
}

// run is the recurring poll loop for one watch. Ticks execute sequentially in
// this goroutine, so a slow tick delays the next one rather than overlapping
// with it.
func (r *BotRegistry) run(ctx context.Context, w *watch) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick received concurrently with Stop must not execute.
			if ctx.Err() != nil {
				return
			}
			r.tick(ctx, w)
		}
	}
}

// tick fetches recent items through the first account and dispatches the
// eligible ones. A fetch failure contributes zero items; it never terminates
// the watch. Only the first account enumerates content: if other accounts see
// a different view of the target, items visible only to them are never
// discovered. Accepted limitation.
func (r *BotRegistry) tick(ctx context.Context, w *watch) {
	start := r.now()

	items, err := r.source.FetchRecent(ctx, w.targetID, w.accounts[0], r.fetchLimit)
	if err != nil {
		slog.Error("content fetch failed", "target", w.targetID, "error", err)
		return
	}

	var dispatched int
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}

		// Strict boundary: an item created exactly at activation is excluded.
		if !item.CreatedAt.After(w.activatedAt) {
			continue
		}

		w.mu.Lock()
		if _, seen := w.processed[item.ID]; seen {
			w.mu.Unlock()
			continue
		}
		// Marked before dispatch: a crash mid-dispatch must not reprocess
		// the item on the next poll. At-most-once per item.
		w.processed[item.ID] = r.now()
		w.mu.Unlock()

		r.dispatcher.DispatchItem(ctx, item, w.targetID, w.accounts, w.config)
		dispatched++
	}

	slog.Debug("poll tick complete",
		"target", w.targetID,
		"fetched", len(items),
		"dispatched", dispatched,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}
