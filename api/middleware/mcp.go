package middleware

import (
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/models"
)

const (
	defaultAccept      = "application/json, text/event-stream"
	defaultContentType = "application/json"
)

var browserUA = regexp.MustCompile(`Mozilla|Chrome|Safari|Edge`)

// IsBrowserNavigation reports whether r looks like a person opening the MCP
// URL in a browser rather than an MCP client talking to it.
func IsBrowserNavigation(r *http.Request) bool {
	return r.Method == http.MethodGet &&
		strings.Contains(r.Header.Get("Accept"), "text/html") &&
		!strings.Contains(r.Header.Get("Content-Type"), "application/json") &&
		browserUA.MatchString(r.Header.Get("User-Agent"))
}

// AllowedMethods lists the verbs the MCP endpoint accepts. GET opens a
// server-push stream and DELETE ends a session; both need streaming.
func AllowedMethods(streaming bool) []string {
	if streaming {
		return []string{http.MethodPost, http.MethodGet, http.MethodDelete}
	}
	return []string{http.MethodPost}
}

// MCPGate classifies requests to the MCP endpoint before they reach the
// rate limiter and the protocol handler:
//
//	browser navigation  -> 302 to the setup page
//	disallowed method   -> 405 with Allow
//	everything else     -> default Accept/Content-Type, then next
//
// Every response that passes the gate carries X-MCP-Server and
// Cache-Control: no-store, even if the handler sets its own caching.
func MCPGate(cfg config.MCPConfig, m *metrics.Collector) gin.HandlerFunc {
	allowed := AllowedMethods(cfg.Streaming)
	allowHeader := strings.Join(allowed, ", ")
	serverID := cfg.ServerName + "/" + cfg.Version

	return func(c *gin.Context) {
		r := c.Request

		if IsBrowserNavigation(r) {
			m.RecordClassification("browser")
			c.Redirect(http.StatusFound, cfg.SetupPage)
			c.Abort()
			return
		}

		stamp := func(h http.Header) {
			h.Set("X-MCP-Server", serverID)
			h.Set("Cache-Control", "no-store")
		}
		stamp(c.Writer.Header())

		if !slices.Contains(allowed, r.Method) {
			m.RecordClassification("method_not_allowed")
			c.Header("Allow", allowHeader)
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeMethodNotAllowed,
					Message: "method not allowed: use " + allowHeader,
				},
			})
			return
		}

		m.RecordClassification("protocol")
		if r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", defaultAccept)
		}
		if r.Method == http.MethodPost && r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", defaultContentType)
		}

		orig := c.Writer
		c.Writer = &stampWriter{ResponseWriter: orig, stamp: stamp}
		c.Next()
		c.Writer = orig
	}
}

// stampWriter reapplies fixed headers just before they are sent.
type stampWriter struct {
	gin.ResponseWriter
	stamp func(http.Header)
}

func (w *stampWriter) WriteHeader(code int) {
	w.stamp(w.Header())
	w.ResponseWriter.WriteHeader(code)
}

func (w *stampWriter) WriteHeaderNow() {
	w.stamp(w.Header())
	w.ResponseWriter.WriteHeaderNow()
}

func (w *stampWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		w.stamp(w.Header())
	}
	return w.ResponseWriter.Write(b)
}

func (w *stampWriter) WriteString(s string) (int, error) {
	if !w.Written() {
		w.stamp(w.Header())
	}
	return w.ResponseWriter.WriteString(s)
}

func (w *stampWriter) Flush() {
	if !w.Written() {
		w.stamp(w.Header())
	}
	w.ResponseWriter.Flush()
}
