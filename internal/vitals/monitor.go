package vitals

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Listener receives the updated window after every sample.
type Listener interface {
	OnVitalUpdate(info Info)
}

// Reader produces one raw sample. ok=false skips the tick (e.g. the source
// is temporarily unavailable).
type Reader interface {
	ReadVital() (value float64, ok bool)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() (float64, bool)

// ReadVital implements Reader.
func (f ReaderFunc) ReadVital() (float64, bool) { return f() }

// Monitor fans samples out to listeners, each with its own window.
//
// Thread-safety: all methods are safe for concurrent use.
type Monitor struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[Listener]Info
	last      float64
	hasLast   bool
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the logger used by Run. Default: slog.Default().
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonitor creates a monitor. name is used in logs.
func NewMonitor(name string, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		name:      name,
		logger:    slog.Default(),
		listeners: make(map[Listener]Info),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the monitor name.
func (m *Monitor) Name() string {
	return m.name
}

// Register starts a fresh window for l. Registering twice resets the window.
func (m *Monitor) Register(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[l] = Empty
}

// Unregister stops notifying l.
func (m *Monitor) Unregister(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, l)
}

// ListenerCount returns the number of registered listeners.
func (m *Monitor) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Latest returns the last sample seen.
func (m *Monitor) Latest() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasLast
}

// Sample records one value and notifies every listener.
// Listeners are invoked outside the monitor lock.
func (m *Monitor) Sample(value float64) {
	type update struct {
		l    Listener
		info Info
	}

	m.mu.Lock()
	m.last, m.hasLast = value, true
	updates := make([]update, 0, len(m.listeners))
	for l, info := range m.listeners {
		next := info.Add(value)
		m.listeners[l] = next
		updates = append(updates, update{l: l, info: next})
	}
	m.mu.Unlock()

	for _, u := range updates {
		u.l.OnVitalUpdate(u.info)
	}
}

// Run samples r every interval until ctx is cancelled.
// Returns ctx.Err() on cancellation.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, r Reader) error {
	m.logger.Debug("vital monitor starting", "vital", m.name, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("vital monitor stopping",
				"vital", m.name,
				"listeners", m.ListenerCount(),
			)
			return ctx.Err()
		case <-ticker.C:
			if value, ok := r.ReadVital(); ok {
				m.Sample(value)
			}
		}
	}
}
