package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/models"
	"github.com/redpanda-data/docs-edge/upstream"
)

// UpstreamStatus reports the shared upstream connection.
type UpstreamStatus interface {
	State() string
	Dials() int64
	Resets() int64
}

// MCPHealth returns a handler for GET <mcp path>/health. It answers without
// opening a stream so uptime probes stay cheap.
func MCPHealth(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RecordClassification("health")
		c.Header("Cache-Control", "no-store")
		c.String(http.StatusOK, "ok")
	}
}

// Health returns a handler for GET /healthz.
//
// Status degrades when the upstream has been reset more often than it has
// been dialed successfully, which means connections are failing repeatedly.
func Health(up UpstreamStatus, version string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := models.UpstreamStats{
			State:  up.State(),
			Dials:  up.Dials(),
			Resets: up.Resets(),
		}

		status := "healthy"
		if stats.Resets > 0 && stats.Resets >= stats.Dials && stats.State != upstream.StateConnected {
			status = "degraded"
		}

		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Version:  version,
			Upstream: stats,
		})
	}
}
