// Package fiber mounts the HTTP transport into a Fiber app.
package fiber

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	httptransport "github.com/forgeline/sitesmith/pkg/server/transport/http"
)

// Adapter provides a Fiber adapter for the tool server
type Adapter struct {
	transport *httptransport.Server
}

// New creates a new Fiber adapter
func New(transport *httptransport.Server) *Adapter {
	return &Adapter{transport: transport}
}

// Handler returns a Fiber handler function for the session endpoint
func (a *Adapter) Handler() fiber.Handler {
	return adaptor.HTTPHandler(a.transport.MCPHandler())
}

// RegisterRoutes registers the tool server routes with a Fiber app
func (a *Adapter) RegisterRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Post("/mcp", a.Handler())
	app.Delete("/mcp", a.Handler())
}
