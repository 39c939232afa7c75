package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/metrics"
	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/types"
)

// ProtocolVersion is the wire protocol version this server speaks
const ProtocolVersion = "2024-11-05"

// TransportOptions configures a Transport
type TransportOptions struct {
	// ServerInfo is reported in initialize responses
	ServerInfo types.Implementation
	// Logger instance
	Logger *zap.Logger
	// Metrics sink, may be nil
	Metrics *metrics.Metrics
}

// Transport owns the message stream of one session. Requests on a
// transport are processed strictly one at a time; requests on
// different transports are independent.
type Transport struct {
	id         string
	reg        *registry.Registry
	serverInfo types.Implementation
	logger     *zap.Logger
	metrics    *metrics.Metrics
	handle     *Handle

	readyOnce  sync.Once
	closedOnce sync.Once

	mu       sync.Mutex // guards state and lastUsed, gates inflight
	state    State
	lastUsed time.Time
	inflight sync.WaitGroup

	reqMu sync.Mutex // serializes HandleRequest
}

// NewTransport creates a transport in Pending state
func NewTransport(id string, reg *registry.Registry, opts TransportOptions) *Transport {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Transport{
		id:         id,
		reg:        reg,
		serverInfo: opts.ServerInfo,
		logger:     opts.Logger.With(zap.String("session_id", id)),
		metrics:    opts.Metrics,
		handle:     newHandle(),
		state:      StatePending,
		lastUsed:   time.Now(),
	}
}

// ID returns the session identifier
func (t *Transport) ID() string {
	return t.id
}

// State returns the current lifecycle state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastUsed returns when the transport last served a request
func (t *Transport) LastUsed() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUsed
}

// Start begins the transport's lifecycle and returns its handle
func (t *Transport) Start() *Handle {
	t.logger.Debug("transport started")
	return t.handle
}

// Handle returns the lifecycle handle
func (t *Transport) Handle() *Handle {
	return t.handle
}

// Close terminates the session. Idempotent: only the first call has
// effect. In-flight requests are allowed to finish; Close does not
// wait for them.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	t.state = StateClosed
	t.mu.Unlock()

	t.closedOnce.Do(func() {
		close(t.handle.closed)
	})
	t.logger.Info("session closed")
}

// HandleRequest decodes one request, dispatches it, and returns the
// response envelope. A malformed message or a failing handler yields
// an error envelope without closing the transport; only transport
// level failures terminate the session.
func (t *Transport) HandleRequest(ctx context.Context, raw []byte) []byte {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return marshalResponse(&types.Response{
			Error: types.NewError(types.CodeUnknownSession, "session is closed"),
		})
	}
	t.inflight.Add(1)
	t.lastUsed = time.Now()
	t.mu.Unlock()
	defer t.inflight.Done()

	t.reqMu.Lock()
	defer t.reqMu.Unlock()

	var req types.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return marshalResponse(&types.Response{
			Error: types.NewError(types.CodeProtocolError, "malformed request: "+err.Error()),
		})
	}

	resp := t.dispatch(ctx, &req)
	return marshalResponse(resp)
}

func (t *Transport) dispatch(ctx context.Context, req *types.Request) *types.Response {
	switch req.Method {
	case types.MethodInitialize:
		return t.handleInitialize(req.Params)
	case types.MethodPing:
		return &types.Response{Result: map[string]interface{}{"ok": true}}
	case types.MethodListTools:
		return &types.Response{Result: t.reg.List()}
	case types.MethodCallTool:
		return t.handleCallTool(ctx, req.Params)
	default:
		return &types.Response{
			Error: types.NewError(types.CodeProtocolError, "unknown method: "+req.Method),
		}
	}
}

func (t *Transport) handleInitialize(params json.RawMessage) *types.Response {
	var init types.InitializeRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &init); err != nil {
			return &types.Response{
				Error: types.NewError(types.CodeProtocolError, "invalid initialize params: "+err.Error()),
			}
		}
	}

	t.mu.Lock()
	if t.state == StatePending {
		t.state = StateActive
	}
	t.mu.Unlock()
	t.readyOnce.Do(func() {
		close(t.handle.ready)
	})

	t.logger.Info("session initialized",
		zap.String("client_name", init.ClientInfo.Name),
		zap.String("client_version", init.ClientInfo.Version))

	return &types.Response{Result: types.InitializeResponse{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      t.serverInfo,
		Capabilities: types.ServerCapabilities{
			Tools: &types.ToolsCapability{},
		},
	}}
}

func (t *Transport) handleCallTool(ctx context.Context, params json.RawMessage) *types.Response {
	var call types.CallToolRequest
	if err := json.Unmarshal(params, &call); err != nil {
		return &types.Response{
			Error: types.NewError(types.CodeProtocolError, "invalid callTool params: "+err.Error()),
		}
	}
	if call.Name == "" {
		return &types.Response{
			Error: types.NewError(types.CodeProtocolError, "callTool requires a tool name"),
		}
	}

	start := time.Now()
	result, err := t.invoke(ctx, call.Name, call.Args)
	t.metrics.ObserveCall(call.Name, time.Since(start).Seconds(), err != nil)

	if err != nil {
		t.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.Error(err))
		if perr, ok := types.AsError(err); ok {
			return &types.Response{Error: perr}
		}
		return &types.Response{
			Error: types.NewError(types.CodeToolExecution, err.Error()),
		}
	}
	return &types.Response{Result: result}
}

// invoke runs the tool through the registry, converting a handler
// panic into an error so one tool's bug cannot take down the
// transport or other sessions.
func (t *Transport) invoke(ctx context.Context, name string, args map[string]interface{}) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tool handler panicked",
				zap.String("tool", name),
				zap.Any("panic", r))
			err = types.NewError(types.CodeToolExecution, fmt.Sprintf("tool %s panicked: %v", name, r))
		}
	}()
	return t.reg.Call(ctx, name, args)
}

// drain blocks until all in-flight requests have produced responses.
// Used by the manager to order table eviction after response delivery.
func (t *Transport) drain() {
	t.inflight.Wait()
}

func marshalResponse(resp *types.Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Result was not serializable; report instead of dropping the reply.
		fallback, _ := json.Marshal(&types.Response{
			Error: types.NewError(types.CodeToolExecution, "failed to encode response: "+err.Error()),
		})
		return fallback
	}
	return data
}
