package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/session"
	"github.com/forgeline/sitesmith/pkg/types"
	"github.com/forgeline/sitesmith/pkg/validation"
)

func newTestManager(t *testing.T) *session.Manager {
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
	return session.NewManager(reg, session.ManagerOptions{
		ServerInfo: types.Implementation{Name: "test-server", Version: "1.0.0"},
		Logger:     zap.NewNop(),
	})
}

func dial(t *testing.T, url string) (*websocket.Conn, string) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, resp.Header.Get(types.HeaderSessionID)
}

func roundTrip(t *testing.T, conn *websocket.Conn, method string, params interface{}) *types.Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	req, err := json.Marshal(types.Request{Method: method, Params: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, req))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp types.Response
	require.NoError(t, json.Unmarshal(msg, &resp))
	return &resp
}

func TestServer_SessionPerConnection(t *testing.T) {
	mgr := newTestManager(t)
	ts := httptest.NewServer(New(mgr, Options{Logger: zap.NewNop()}))
	defer ts.Close()

	conn1, sid1 := dial(t, ts.URL)
	conn2, sid2 := dial(t, ts.URL)

	assert.NotEmpty(t, sid1)
	assert.NotEmpty(t, sid2)
	assert.NotEqual(t, sid1, sid2)
	assert.Equal(t, 2, mgr.Len())

	resp := roundTrip(t, conn1, types.MethodInitialize, nil)
	assert.Nil(t, resp.Error)
	resp = roundTrip(t, conn2, types.MethodCallTool, types.CallToolRequest{
		Name: "echo",
		Args: map[string]interface{}{"message": "over ws"},
	})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "over ws", result["message"])
}

func TestServer_DisconnectEvictsSession(t *testing.T) {
	mgr := newTestManager(t)
	ts := httptest.NewServer(New(mgr, Options{Logger: zap.NewNop()}))
	defer ts.Close()

	conn, _ := dial(t, ts.URL)
	require.Eventually(t, func() bool { return mgr.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return mgr.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_MalformedMessageKeepsConnection(t *testing.T) {
	mgr := newTestManager(t)
	ts := httptest.NewServer(New(mgr, Options{Logger: zap.NewNop()}))
	defer ts.Close()

	conn, _ := dial(t, ts.URL)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp types.Response
	require.NoError(t, json.Unmarshal(msg, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.CodeProtocolError, resp.Error.Code)

	// Connection still usable.
	good := roundTrip(t, conn, types.MethodPing, nil)
	assert.Nil(t, good.Error)
}
