package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/bazaar/internal/backend"
	"github.com/abgdnv/bazaar/internal/kv"
	"github.com/abgdnv/bazaar/internal/notify"
	"github.com/abgdnv/bazaar/internal/syncqueue"
)

const defaultIdleTimeout = 30 * time.Minute

// ManagerDeps are shared by every store a Manager creates.
type ManagerDeps struct {
	KV           kv.Store
	Backend      backend.Backend
	Connectivity Connectivity
	Resolver     ProductResolver
	Notifier     notify.Notifier
	Logger       *slog.Logger
	QueueOptions []syncqueue.Option
	// IdleTimeout is how long an unused session stays in memory. Zero means 30 minutes.
	IdleTimeout  time.Duration
	Clock        func() time.Time
}

type session struct {
	store    *Store
	lastUsed time.Time
}

// Manager hands out the Store of each session, creating it on first use.
// Sessions idle for longer than the idle timeout are dropped from memory once nothing is
// left to sync; their state stays in the kv store and is reloaded on the next request.
type Manager struct {
	mu       sync.Mutex
	deps     ManagerDeps
	sessions map[string]*session
}

func NewManager(deps ManagerDeps) *Manager {
	if deps.Notifier == nil {
		deps.Notifier = notify.Multi{}
	}
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = defaultIdleTimeout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Manager{deps: deps, sessions: make(map[string]*session)}
}

// Get returns the store of session. A store loaded with changes still queued from an
// earlier run syncs them right away when the backend is reachable.
func (m *Manager) Get(ctx context.Context, id string) (*Store, error) {
	s, loaded, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if loaded && s.queue.Len() > 0 && m.deps.Connectivity.Online() {
		res, err := s.Sync(ctx)
		if err != nil {
			m.deps.Logger.WarnContext(ctx, "failed to sync restored session", "session_id", id, "error", err)
		} else {
			m.deps.Logger.InfoContext(ctx, "restored session synced", "session_id", id,
				"replayed", res.Replayed, "discarded", res.Discarded)
		}
	}
	return s, nil
}

func (m *Manager) get(ctx context.Context, id string) (*Store, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		sess.lastUsed = m.deps.Clock()
		return sess.store, false, nil
	}

	notifier := m.deps.Notifier
	onFailure := func(ctx context.Context, f syncqueue.Failure) {
		if err := notifier.Notify(ctx, notify.SyncFailure(id, f)); err != nil {
			m.deps.Logger.ErrorContext(ctx, "failed to deliver notification", "session_id", id, "error", err)
		}
	}
	opts := append([]syncqueue.Option{syncqueue.WithFailureHandler(onFailure)}, m.deps.QueueOptions...)
	queue, err := syncqueue.Open(ctx, m.deps.KV, id, m.deps.Logger, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open sync queue: %w", err)
	}

	s, err := NewStore(ctx, id, Deps{
		KV:           m.deps.KV,
		Backend:      m.deps.Backend,
		Queue:        queue,
		Connectivity: m.deps.Connectivity,
		Resolver:     m.deps.Resolver,
		Notifier:     m.deps.Notifier,
		Logger:       m.deps.Logger,
	})
	if err != nil {
		return nil, false, err
	}
	m.sessions[id] = &session{store: s, lastUsed: m.deps.Clock()}
	return s, true, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle drops the sessions unused for longer than the idle timeout whose queue is
// empty. Sessions in the middle of a sign-in are kept. Returns the number evicted.
func (m *Manager) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.deps.Clock().Add(-m.deps.IdleTimeout)
	evicted := 0
	for id, sess := range m.sessions {
		if sess.lastUsed.After(cutoff) || sess.store.queue.Len() > 0 || sess.store.State() == StateMigrating {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				m.deps.Logger.DebugContext(ctx, "idle sessions evicted", "count", n, "live", m.Len())
			}
		}
	}
}

// DrainAll syncs every session with pending changes, one after another.
func (m *Manager) DrainAll(ctx context.Context) error {
	m.mu.Lock()
	stores := make([]*Store, 0, len(m.sessions))
	for _, sess := range m.sessions {
		stores = append(stores, sess.store)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range stores {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.queue.Len() == 0 {
			if err := s.Refresh(ctx); err != nil {
				m.deps.Logger.WarnContext(ctx, "failed to refresh session", "session_id", s.session, "error", err)
			}
			continue
		}
		res, err := s.Sync(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.session, err))
			continue
		}
		m.deps.Logger.InfoContext(ctx, "session synced", "session_id", s.session,
			"replayed", res.Replayed, "discarded", res.Discarded)
	}
	return errors.Join(errs...)
}
