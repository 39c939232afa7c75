// Package server binds a tool registry to the session layer and is
// the shared core behind the stdio and network transports.
package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/metrics"
	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/session"
	"github.com/forgeline/sitesmith/pkg/types"
)

// Server is the facade shared by all transports. The stdio transport
// asks it for a single implicit session; the network transports ask it
// for a session manager.
type Server struct {
	name    string
	version string
	logger  *zap.Logger
	metrics *metrics.Metrics
	reg     *registry.Registry
}

// Options represents server configuration options
type Options struct {
	Name    string
	Version string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// New creates a new server instance bound to reg
func New(reg *registry.Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}

	return &Server{
		name:    opts.Name,
		version: opts.Version,
		logger:  logger,
		metrics: opts.Metrics,
		reg:     reg,
	}
}

// Info returns the server implementation info
func (s *Server) Info() types.Implementation {
	return types.Implementation{Name: s.name, Version: s.version}
}

// Registry returns the bound tool registry
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Logger returns the server logger
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Metrics returns the metrics sink, which may be nil
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// SessionLimits bounds the session table for network transports
type SessionLimits struct {
	// MaxSessions caps concurrent sessions; 0 means unbounded
	MaxSessions int
	// IdleTTL closes sessions idle for this long; 0 disables expiry
	IdleTTL time.Duration
}

// NewSessionManager creates the session manager for a multi-session
// transport. Freezes the registry: no tools register after serving
// begins.
func (s *Server) NewSessionManager(limits SessionLimits) *session.Manager {
	s.reg.Freeze()
	return session.NewManager(s.reg, session.ManagerOptions{
		ServerInfo:  s.Info(),
		Logger:      s.logger,
		Metrics:     s.metrics,
		MaxSessions: limits.MaxSessions,
		IdleTTL:     limits.IdleTTL,
	})
}

// NewImplicitSession creates the single process-lifetime session used
// by the stdio transport; no session table is involved.
func (s *Server) NewImplicitSession(id string) *session.Transport {
	s.reg.Freeze()
	return session.NewTransport(id, s.reg, session.TransportOptions{
		ServerInfo: s.Info(),
		Logger:     s.logger,
		Metrics:    s.metrics,
	})
}
