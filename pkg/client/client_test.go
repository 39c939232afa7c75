package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/server"
	httptransport "github.com/forgeline/sitesmith/pkg/server/transport/http"
	"github.com/forgeline/sitesmith/pkg/types"
	"github.com/forgeline/sitesmith/pkg/validation"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Tool{
		Name:        "echo",
		Description: "Echo the message back",
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
	s := httptransport.New(core, httptransport.Options{Logger: zap.NewNop()})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_InitializeTracksSession(t *testing.T) {
	ts := newTestServer(t)

	cli, err := New(Options{BaseURL: ts.URL})
	require.NoError(t, err)
	assert.Empty(t, cli.SessionID())

	resp, err := cli.Initialize(context.Background(), types.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	})
	require.NoError(t, err)
	assert.Equal(t, "test-server", resp.ServerInfo.Name)
	assert.NotEmpty(t, cli.SessionID())
}

func TestClient_SessionIsReusedAcrossCalls(t *testing.T) {
	ts := newTestServer(t)

	cli, err := New(Options{BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = cli.Initialize(context.Background(), types.Implementation{Name: "c", Version: "1"})
	require.NoError(t, err)
	first := cli.SessionID()

	require.NoError(t, cli.Ping(context.Background()))
	assert.Equal(t, first, cli.SessionID())

	tools, err := cli.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, first, cli.SessionID())
}

func TestClient_CallTool(t *testing.T) {
	ts := newTestServer(t)

	cli, err := New(Options{BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = cli.Initialize(context.Background(), types.Implementation{Name: "c", Version: "1"})
	require.NoError(t, err)

	result, err := cli.CallTool(context.Background(), "echo", map[string]interface{}{
		"message": "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", result["message"])
}

func TestClient_CallToolErrorsCarryCode(t *testing.T) {
	ts := newTestServer(t)

	cli, err := New(Options{BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = cli.Initialize(context.Background(), types.Implementation{Name: "c", Version: "1"})
	require.NoError(t, err)

	_, err = cli.CallTool(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CodeUnknownTool))
}

func TestClient_CloseThenResetStartsFreshSession(t *testing.T) {
	ts := newTestServer(t)

	cli, err := New(Options{BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = cli.Initialize(context.Background(), types.Implementation{Name: "c", Version: "1"})
	require.NoError(t, err)
	first := cli.SessionID()

	require.NoError(t, cli.Close(context.Background()))
	assert.Empty(t, cli.SessionID())

	_, err = cli.Initialize(context.Background(), types.Implementation{Name: "c", Version: "1"})
	require.NoError(t, err)
	assert.NotEqual(t, first, cli.SessionID())
}

func TestClient_CloseWithoutSessionIsNoOp(t *testing.T) {
	ts := newTestServer(t)

	cli, err := New(Options{BaseURL: ts.URL})
	require.NoError(t, err)
	require.NoError(t, cli.Close(context.Background()))
}

func TestClient_RequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
