package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/models"
	"github.com/redpanda-data/docs-edge/ratelimit"
)

// sweepInterval is how often expired windows are evicted.
const sweepInterval = 5 * time.Minute

// RateLimit returns per-identity fixed-window rate limiting middleware.
//
// GET and HEAD bypass the limiter so long-lived server-push streams are not
// counted. Admitted and rejected responses carry both the standard
// RateLimit-* headers and the legacy X-RateLimit-* headers.
//
// Expired windows are swept in the background until ctx is done.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig, m *metrics.Collector) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	w := ratelimit.NewWindow(cfg.Limit, cfg.Window)
	go w.RunSweeper(ctx, sweepInterval)
	trusted := parsePrefixes(cfg.TrustedProxies)

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key := ratelimit.Key(c.Request.Header, platformIP(c, cfg.PlatformHeader, trusted))
		d := w.Allow(key)
		setRateLimitHeaders(c, d)

		if !d.Allowed {
			m.RecordRateLimited()
			c.Header("Retry-After", strconv.Itoa(ceilSeconds(d.ResetAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "Too many requests, please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}

// platformIP is the client address vouched for by the hosting platform.
// An empty result sends ratelimit.Key to the proxy-chain headers, which
// happens only when the connection comes from a trusted proxy.
func platformIP(c *gin.Context, header string, trusted []netip.Prefix) string {
	if header != "" {
		return c.GetHeader(header)
	}
	remote := c.RemoteIP()
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return remote
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return ""
		}
	}
	return remote
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, s := range cidrs {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "cidr", s, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	limit := strconv.Itoa(d.Limit)
	remaining := strconv.Itoa(d.Remaining)
	reset := ceilSeconds(d.ResetAfter)

	c.Header("RateLimit-Limit", limit)
	c.Header("RateLimit-Remaining", remaining)
	c.Header("RateLimit-Reset", strconv.Itoa(reset))

	c.Header("X-RateLimit-Limit", limit)
	c.Header("X-RateLimit-Remaining", remaining)
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.ResetAfter).Unix(), 10))
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
