package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/api/handler"
	"github.com/redpanda-data/docs-edge/api/middleware"
	"github.com/redpanda-data/docs-edge/cache"
	"github.com/redpanda-data/docs-edge/cleaner"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config *config.Config

	// MCP serves the protocol traffic at Config.MCP.Path.
	MCP http.Handler

	Upstream   handler.UpstreamStatus
	Cleaner    *cleaner.Cleaner
	Cache      *cache.Cache
	HTTPClient *http.Client
	Metrics    *metrics.Collector
	StartTime  time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:   Recovery → Logger → RequestID
//	MCP:      MCPGate → RateLimit → protocol handler
//	Metrics:  BearerToken (if configured)
//	NoRoute:  NullRedirect → Markdown → Static
//
// The health endpoints sit outside the gate so probes never open a stream
// or spend rate-limit quota. ctx bounds background sweepers.
func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	cfg := d.Config
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())

	// Health routes are registered before the MCP route.
	mcpPath := "/" + strings.Trim(cfg.MCP.Path, "/")
	r.GET(mcpPath+"/health", handler.MCPHealth(d.Metrics))
	r.GET("/healthz", handler.Health(d.Upstream, cfg.MCP.Version, d.StartTime))

	// MCP endpoint
	r.Any(mcpPath,
		middleware.MCPGate(cfg.MCP, d.Metrics),
		middleware.RateLimit(ctx, cfg.RateLimit, d.Metrics),
		gin.WrapH(d.MCP),
	)

	// Metrics
	if cfg.Metrics.Enabled && d.Metrics != nil {
		r.GET(cfg.Metrics.Path, middleware.BearerToken(cfg.Metrics.Token), gin.WrapH(d.Metrics.Handler()))
	}

	// API reference proxy
	if cfg.APIDocs.Enabled {
		apiDocs := handler.APIDocs(d.HTTPClient, cfg.APIDocs, d.Cache, d.Metrics)
		r.GET("/api/*path", apiDocs)
		r.HEAD("/api/*path", apiDocs)
	}

	// Documentation site
	var site http.FileSystem
	if cfg.Server.SiteDir != "" {
		site = http.Dir(cfg.Server.SiteDir)
	}
	r.NoRoute(
		handler.NullRedirect(),
		handler.Markdown(cfg.Markdown, site, d.Cleaner, d.Metrics),
		handler.Static(site),
	)

	return r
}
