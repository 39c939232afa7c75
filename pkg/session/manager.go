package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/metrics"
	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/types"
)

// ManagerOptions configures a Manager
type ManagerOptions struct {
	// ServerInfo is passed through to created transports
	ServerInfo types.Implementation
	// Logger instance
	Logger *zap.Logger
	// Metrics sink, may be nil
	Metrics *metrics.Metrics
	// MaxSessions bounds the session table; 0 means unbounded
	MaxSessions int
	// IdleTTL closes sessions with no traffic for this long; 0 disables
	IdleTTL time.Duration
}

// Manager owns the session table. All mutation of the table happens
// under its mutex; no other component holds transport references
// outside a single in-flight request.
type Manager struct {
	reg     *registry.Registry
	opts    ManagerOptions
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Transport
}

// NewManager creates a Manager with an empty session table
func NewManager(reg *registry.Registry, opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		reg:      reg,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		sessions: make(map[string]*Transport),
	}
}

// Resolve maps a session id to a live transport. An empty id creates a
// new session with a fresh server-generated identifier. A non-empty id
// must name an existing active session; unknown or closed ids are
// rejected rather than silently recreated, so a client can never
// dictate a server-chosen identifier.
func (m *Manager) Resolve(id string) (*Transport, error) {
	if id == "" {
		return m.create()
	}

	m.mu.Lock()
	t, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok || t.State() != StateActive {
		return nil, types.NewError(types.CodeUnknownSession, "unknown session: "+id)
	}
	return t, nil
}

func (m *Manager) create() (*Transport, error) {
	m.mu.Lock()

	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		return nil, types.NewError(types.CodeSessionLimit, "session limit reached")
	}

	// Collisions are vanishingly rare but handled, not assumed away.
	var id string
	for {
		id = uuid.NewString()
		if _, exists := m.sessions[id]; !exists {
			break
		}
	}

	t := NewTransport(id, m.reg, TransportOptions{
		ServerInfo: m.opts.ServerInfo,
		Logger:     m.logger,
		Metrics:    m.metrics,
	})
	m.sessions[id] = t
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Info("session created", zap.String("session_id", id))

	h := t.Start()
	go m.reap(t, h)
	return t, nil
}

// reap removes the table entry once the transport closes. Eviction
// waits for in-flight requests to finish so a response is never
// delivered through a transport already gone from the table.
func (m *Manager) reap(t *Transport, h *Handle) {
	<-h.Closed()
	t.drain()

	m.mu.Lock()
	delete(m.sessions, t.ID())
	m.mu.Unlock()

	m.metrics.SessionClosed()
	m.logger.Info("session evicted", zap.String("session_id", t.ID()))
}

// Close terminates the named session. Closing an already-gone session
// is a no-op, not an error.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	t, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return
	}
	t.Close()
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll terminates every live session, used on server shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	transports := make([]*Transport, 0, len(m.sessions))
	for _, t := range m.sessions {
		transports = append(transports, t)
	}
	m.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
}

// Run sweeps idle sessions until ctx is done. No-op when IdleTTL is
// unset, matching the unbounded behavior of the original design.
func (m *Manager) Run(ctx context.Context) {
	if m.opts.IdleTTL <= 0 {
		<-ctx.Done()
		return
	}

	interval := m.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var stale []*Transport
	for _, t := range m.sessions {
		if t.LastUsed().Before(cutoff) {
			stale = append(stale, t)
		}
	}
	m.mu.Unlock()

	for _, t := range stale {
		m.logger.Info("closing idle session", zap.String("session_id", t.ID()))
		t.Close()
	}
}
