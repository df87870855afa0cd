// Package connectivity tracks whether the backend is reachable and tells subscribers when that changes.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Listener is called with the new state after every transition.
type Listener func(ctx context.Context, online bool)

// Monitor polls a Pinger and tracks the online state.
// The state starts online; an override pins it regardless of probe results.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	override  *bool
	listeners []Listener

	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewMonitor(p Pinger, interval, timeout time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		online:   true,
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "connectivity"),
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Overridden reports whether the state is pinned.
func (m *Monitor) Overridden() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.override != nil
}

// Subscribe registers l for state transitions.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Set records an observed state. It is ignored while an override is active.
func (m *Monitor) Set(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.override != nil {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(ctx, online)
}

// Override pins the state to *online, or releases the pin when online is nil.
// Releasing keeps the pinned state until the next probe.
func (m *Monitor) Override(ctx context.Context, online *bool) {
	m.mu.Lock()
	if online == nil {
		m.override = nil
		m.mu.Unlock()
		m.logger.InfoContext(ctx, "connectivity override cleared")
		return
	}
	v := *online
	m.override = &v
	m.transitionLocked(ctx, v)
}

// transitionLocked applies a state and notifies listeners after unlocking m.mu.
func (m *Monitor) transitionLocked(ctx context.Context, online bool) {
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "connectivity changed", "online", online)
	for _, l := range listeners {
		l(ctx, online)
	}
}

// Probe pings the backend once and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(pingCtx)
	if err != nil && ctx.Err() == nil {
		m.logger.DebugContext(ctx, "backend ping failed", "error", err)
	}
	if ctx.Err() != nil {
		return m.Online()
	}
	m.Set(ctx, err == nil)
	return err == nil
}

// Run probes every interval until ctx is cancelled. Listeners run on this goroutine.
func (m *Monitor) Run(ctx context.Context) error {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
