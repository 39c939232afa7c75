package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/metrics"
	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/server"
	"github.com/forgeline/sitesmith/pkg/types"
	"github.com/forgeline/sitesmith/pkg/validation"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Tool{
		Name: "echo",
		Input: validation.Contract{Fields: []validation.Field{
			{Name: "message", Kind: validation.KindString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"message": args["message"]}, nil
		},
	}))

	core := server.New(reg, server.Options{
		Name:    "test-server",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	})
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := New(core, opts)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url, sessionID string, method string, params interface{}) (*http.Response, *types.Response) {
	t.Helper()

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	body, err := json.Marshal(types.Request{Method: method, Params: raw})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url+"/mcp", bytes.NewReader(body))
	require.NoError(t, err)
	if sessionID != "" {
		req.Header.Set(types.HeaderSessionID, sessionID)
	}

	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()

	var envelope types.Response
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&envelope))
	return httpResp, &envelope
}

func TestServer_NewSessionOnFirstContact(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	httpResp, envelope := post(t, ts.URL, "", types.MethodInitialize, types.InitializeRequest{
		ProtocolVersion: "2024-11-05",
		ClientInfo:      types.Implementation{Name: "test-client", Version: "1.0.0"},
	})

	assert.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Nil(t, envelope.Error)
	assert.NotEmpty(t, httpResp.Header.Get(types.HeaderSessionID))
}

func TestServer_SessionReuse(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	httpResp, _ := post(t, ts.URL, "", types.MethodInitialize, nil)
	sid := httpResp.Header.Get(types.HeaderSessionID)
	require.NotEmpty(t, sid)
	require.Equal(t, 1, s.Manager().Len())

	httpResp, envelope := post(t, ts.URL, sid, types.MethodCallTool, types.CallToolRequest{
		Name: "echo",
		Args: map[string]interface{}{"message": "hi"},
	})
	assert.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Nil(t, envelope.Error)
	assert.Equal(t, sid, httpResp.Header.Get(types.HeaderSessionID))
	assert.Equal(t, 1, s.Manager().Len(), "reuse must not create a second session")
}

func TestServer_UnknownSessionRejected(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	httpResp, envelope := post(t, ts.URL, "no-such-session", types.MethodPing, nil)
	assert.Equal(t, types.CodeUnknownSession, httpResp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, types.CodeUnknownSession, envelope.Error.Code)
}

func TestServer_UnknownToolKeepsSession(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	httpResp, _ := post(t, ts.URL, "", types.MethodInitialize, nil)
	sid := httpResp.Header.Get(types.HeaderSessionID)

	_, envelope := post(t, ts.URL, sid, types.MethodCallTool, types.CallToolRequest{Name: "nope"})
	require.NotNil(t, envelope.Error)
	assert.Equal(t, types.CodeUnknownTool, envelope.Error.Code)

	// Session still serves requests.
	_, envelope = post(t, ts.URL, sid, types.MethodPing, nil)
	assert.Nil(t, envelope.Error)
}

func TestServer_DeleteClosesSession(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	httpResp, _ := post(t, ts.URL, "", types.MethodInitialize, nil)
	sid := httpResp.Header.Get(types.HeaderSessionID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(types.HeaderSessionID, sid)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	require.Eventually(t, func() bool { return s.Manager().Len() == 0 }, time.Second, 5*time.Millisecond)

	httpResp, envelope := post(t, ts.URL, sid, types.MethodPing, nil)
	assert.Equal(t, types.CodeUnknownSession, httpResp.StatusCode)
	require.NotNil(t, envelope.Error)
}

func TestServer_DeleteUnknownSessionIsNoOp(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(types.HeaderSessionID, "gone")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/mcp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "POST, DELETE", resp.Header.Get("Allow"))
}

func TestServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := registry.New()
	core := server.New(reg, server.Options{
		Name:    "test-server",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
		Metrics: metrics.New(),
	})
	s := New(core, Options{Logger: zap.NewNop()})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_SessionLimit(t *testing.T) {
	_, ts := newTestServer(t, Options{Limits: server.SessionLimits{MaxSessions: 1}})

	httpResp, _ := post(t, ts.URL, "", types.MethodInitialize, nil)
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	httpResp, envelope := post(t, ts.URL, "", types.MethodInitialize, nil)
	assert.Equal(t, types.CodeSessionLimit, httpResp.StatusCode)
	require.NotNil(t, envelope.Error)
}
