// Package gin mounts the HTTP transport into a Gin engine.
package gin

import (
	"github.com/gin-gonic/gin"

	httptransport "github.com/forgeline/sitesmith/pkg/server/transport/http"
)

// Adapter provides a Gin adapter for the tool server
type Adapter struct {
	transport *httptransport.Server
}

// New creates a new Gin adapter
func New(transport *httptransport.Server) *Adapter {
	return &Adapter{transport: transport}
}

// Handler returns a Gin handler function for the session endpoint
func (a *Adapter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.transport.MCPHandler().ServeHTTP(c.Writer, c.Request)
	}
}

// RegisterRoutes registers the tool server routes with a Gin engine
func (a *Adapter) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	r.POST("/mcp", a.Handler())
	r.DELETE("/mcp", a.Handler())
}
