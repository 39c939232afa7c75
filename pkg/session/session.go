// Package session implements the session and transport layer: one
// Transport per logical client connection, multiplexed by a Manager
// that owns the session table.
package session

import "context"

// State is the lifecycle state of a session. Transitions are linear:
// Pending -> Active -> Closed, with Pending -> Closed allowed when
// initialization fails. Closed is terminal.
type State int32

const (
	// StatePending means the session exists but has not completed its handshake
	StatePending State = iota
	// StateActive means the session is initialized and serving requests
	StateActive
	// StateClosed means the session is terminated; no further requests are honored
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handle exposes a transport's lifecycle as awaitable transitions
// instead of free-floating callbacks, so the state machine can be
// observed and tested in isolation.
type Handle struct {
	ready  chan struct{}
	closed chan struct{}
}

func newHandle() *Handle {
	return &Handle{
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Ready is closed exactly once, when the session handshake is accepted
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// Closed is closed exactly once, when the session terminates for any reason
func (h *Handle) Closed() <-chan struct{} {
	return h.closed
}

// AwaitReady blocks until the session is active or ctx is done
func (h *Handle) AwaitReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-h.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitClosed blocks until the session is closed or ctx is done
func (h *Handle) AwaitClosed(ctx context.Context) error {
	select {
	case <-h.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
