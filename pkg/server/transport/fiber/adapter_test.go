package fiber

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/server"
	httptransport "github.com/forgeline/sitesmith/pkg/server/transport/http"
	"github.com/forgeline/sitesmith/pkg/types"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			return args, nil
		},
	}))
	core := server.New(reg, server.Options{Name: "test-server", Version: "1.0.0", Logger: zap.NewNop()})
	transport := httptransport.New(core, httptransport.Options{Logger: zap.NewNop()})

	app := fiber.New()
	New(transport).RegisterRoutes(app)
	return app
}

func TestAdapter_Health(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdapter_MCP(t *testing.T) {
	app := newApp(t)

	body, err := json.Marshal(types.Request{Method: types.MethodInitialize})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(types.HeaderSessionID))

	var envelope types.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Nil(t, envelope.Error)
}
