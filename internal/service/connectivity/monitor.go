// Package connectivity tracks whether the remote store is reachable and turns
// offline-to-online transitions into drain cycles.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober checks reachability of the remote store.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor holds the current online state and notifies listeners on change.
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	listeners []func(online bool)
	logger    *zap.Logger
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(initial bool, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{online: initial, logger: logger}
}

// IsOnline reports the last known state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnTransition registers a listener invoked after every state change.
func (m *Monitor) OnTransition(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Set records the current state. Listeners only fire when it changed.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", zap.Bool("online", online))
	for _, fn := range listeners {
		fn(online)
	}
}

// Watch probes every interval until ctx is done.
func (m *Monitor) Watch(ctx context.Context, prober Prober, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.probe(ctx, prober, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx, prober, interval)
		}
	}
}

func (m *Monitor) probe(ctx context.Context, prober Prober, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	m.Set(prober.Probe(probeCtx))
}
