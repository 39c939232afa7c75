// Package http implements the multi-session network transport: JSON
// envelopes over POST, with the session token carried out-of-band in
// the Mcp-Session-Id header.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/server"
	"github.com/forgeline/sitesmith/pkg/server/middleware"
	"github.com/forgeline/sitesmith/pkg/session"
	"github.com/forgeline/sitesmith/pkg/types"
)

// Options represents server configuration options
type Options struct {
	// Address to listen on
	Address string
	// ReadTimeout for requests
	ReadTimeout time.Duration
	// WriteTimeout for responses
	WriteTimeout time.Duration
	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration
	// JWTSecret enables bearer-token auth when non-empty
	JWTSecret string
	// RateRPS enables per-session rate limiting when positive
	RateRPS   float64
	RateBurst int
	// Limits bounds the session table
	Limits server.SessionLimits
	// Logger instance
	Logger *zap.Logger
}

// Server is the HTTP transport server. One endpoint serves all
// sessions; the session manager multiplexes them.
type Server struct {
	srv     *server.Server
	mgr     *session.Manager
	logger  *zap.Logger
	http    *http.Server
	handler http.Handler
	mcp     http.Handler

	sweepCancel context.CancelFunc
}

// New creates a new HTTP transport server bound to srv
func New(srv *server.Server, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = srv.Logger()
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 120 * time.Second
	}

	s := &Server{
		srv:    srv,
		mgr:    srv.NewSessionManager(opts.Limits),
		logger: opts.Logger,
	}

	mcp := http.Handler(http.HandlerFunc(s.handleMCP))
	if opts.RateRPS > 0 {
		mcp = middleware.RateLimit(opts.RateRPS, opts.RateBurst)(mcp)
	}
	if opts.JWTSecret != "" {
		mcp = middleware.Auth(opts.JWTSecret, opts.Logger)(mcp)
	}

	s.mcp = mcp

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m := srv.Metrics(); m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	s.handler = middleware.Chain(mux,
		middleware.Recovery(opts.Logger),
		middleware.Logging(opts.Logger),
	)
	s.http = &http.Server{
		Addr:         opts.Address,
		Handler:      s.handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	return s
}

// Handler returns the full handler chain, for mounting into other
// frameworks or test servers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPHandler returns just the session endpoint handler, with auth and
// rate limiting applied, for mounting into other routers.
func (s *Server) MCPHandler() http.Handler {
	return s.mcp
}

// Manager returns the session manager, shared with sibling transports
func (s *Server) Manager() *session.Manager {
	return s.mgr
}

// Start starts listening. Blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP transport", zap.String("address", s.http.Addr))

	sweepCtx, cancel := context.WithCancel(ctx)
	s.sweepCancel = cancel
	go s.mgr.Run(sweepCtx)

	return s.http.ListenAndServe()
}

// Stop gracefully shuts down the server and closes all sessions
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP transport")
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	s.mgr.CloseAll()
	return s.http.Shutdown(ctx)
}

// handleMCP serves the shared session endpoint. POST dispatches one
// request on a session; DELETE terminates a session.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed,
			types.NewError(types.CodeProtocolError, "method not allowed"))
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	transport, err := s.mgr.Resolve(r.Header.Get(types.HeaderSessionID))
	if err != nil {
		perr, _ := types.AsError(err)
		writeError(w, perr.Code, perr)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			types.NewError(types.CodeProtocolError, "failed to read request body"))
		return
	}

	resp := transport.HandleRequest(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(types.HeaderSessionID, transport.ID())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(types.HeaderSessionID)
	if id == "" {
		writeError(w, http.StatusBadRequest,
			types.NewError(types.CodeProtocolError, "missing session id"))
		return
	}

	// Closing an already-gone session is not an error.
	s.mgr.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, perr *types.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.Response{Error: perr})
}
