// Package websocket implements a network transport where each
// WebSocket connection is one managed session. The read loop
// serializes requests naturally; the session id is returned in the
// upgrade response header.
package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/session"
	"github.com/forgeline/sitesmith/pkg/types"
)

// Options represents server configuration options
type Options struct {
	// ReadBufferSize for WebSocket connections
	ReadBufferSize int
	// WriteBufferSize for WebSocket connections
	WriteBufferSize int
	// HandshakeTimeout for WebSocket upgrade
	HandshakeTimeout time.Duration
	// CheckOrigin function for WebSocket upgrade
	CheckOrigin func(*http.Request) bool
	// Logger instance
	Logger *zap.Logger
}

// Server upgrades HTTP requests and serves one session per connection
type Server struct {
	upgrader websocket.Upgrader
	mgr      *session.Manager
	logger   *zap.Logger
}

// New creates a new WebSocket transport sharing mgr with sibling
// transports.
func New(mgr *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReadBufferSize == 0 {
		opts.ReadBufferSize = 1024
	}
	if opts.WriteBufferSize == 0 {
		opts.WriteBufferSize = 1024
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:   opts.ReadBufferSize,
			WriteBufferSize:  opts.WriteBufferSize,
			HandshakeTimeout: opts.HandshakeTimeout,
			CheckOrigin:      opts.CheckOrigin,
		},
		mgr:    mgr,
		logger: opts.Logger,
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	transport, err := s.mgr.Resolve("")
	if err != nil {
		perr, _ := types.AsError(err)
		http.Error(w, perr.Message, perr.Code)
		return
	}

	header := http.Header{}
	header.Set(types.HeaderSessionID, transport.ID())
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		transport.Close()
		return
	}

	s.serve(r, conn, transport)
}

func (s *Server) serve(r *http.Request, conn *websocket.Conn, transport *session.Transport) {
	defer conn.Close()
	defer transport.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			// Connection drop is a transport-level failure: evict, no
			// response to deliver.
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended",
					zap.String("session_id", transport.ID()),
					zap.Error(err))
			}
			return
		}

		resp := transport.HandleRequest(r.Context(), msg)
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			s.logger.Warn("websocket write failed",
				zap.String("session_id", transport.ID()),
				zap.Error(err))
			return
		}
	}
}
