package store

import (
	"context"
	"sync"
	"time"
)

// hub fans change notifications out to live subscriptions. Each
// subscription owns a one-slot dirty channel, so a burst of writes collapses
// into a single re-query and the handler always sees the latest state.
type hub struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscription]struct{})}
}

func (h *hub) add(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

func (h *hub) all() []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		out = append(out, sub)
	}
	return out
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *hub) notify() {
	for _, sub := range h.all() {
		sub.markDirty()
	}
}

type subscription struct {
	store   *SQLiteStore
	query   IssueQuery
	handler SnapshotHandler

	dirty    chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func (sub *subscription) markDirty() {
	select {
	case sub.dirty <- struct{}{}:
	default:
		// Already pending; the next query will pick up this change too.
	}
}

func (sub *subscription) run(ctx context.Context) {
	defer close(sub.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.dirty:
		}

		issues, err := sub.store.ListIssues(ctx, sub.query)
		if ctx.Err() != nil {
			return
		}
		sub.handler(Snapshot{Issues: issues, ReadAt: sub.store.now().UTC()}, err)
	}
}

// Stop implements Subscription.
func (sub *subscription) Stop() {
	sub.stopOnce.Do(func() {
		sub.store.hub.remove(sub)
		sub.cancel()
		<-sub.done
	})
}

// Subscribe opens a live query. The handler receives the initial snapshot
// and a fresh full snapshot after every change, on a goroutine owned by the
// subscription.
func (s *SQLiteStore) Subscribe(ctx context.Context, q IssueQuery, handler SnapshotHandler) (Subscription, error) {
	if err := s.watchCtx.Err(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		store:   s,
		query:   q,
		handler: handler,
		dirty:   make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.hub.add(sub)
	sub.markDirty()
	go sub.run(subCtx)

	s.watchOnce.Do(func() { go s.watch() })
	return sub, nil
}

// watch polls PRAGMA data_version, which changes whenever another
// connection (usually another tracker process) commits to the database.
// Writes through this store notify the hub directly.
func (s *SQLiteStore) watch() {
	defer close(s.watchDone)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last int64 = -1
	for {
		select {
		case <-s.watchCtx.Done():
			return
		case <-ticker.C:
		}

		if s.hub.len() == 0 {
			continue
		}

		var version int64
		if err := s.db.QueryRowContext(s.watchCtx, "PRAGMA data_version").Scan(&version); err != nil {
			if s.watchCtx.Err() == nil {
				s.logger.Debug("poll data_version", "error", err)
			}
			continue
		}
		if last >= 0 && version != last {
			s.logger.Debug("external change detected", "data_version", version)
			s.hub.notify()
		}
		last = version
	}
}
