package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

func testMCPConfig(streaming bool) config.MCPConfig {
	cfg := config.Defaults().MCP
	cfg.Streaming = streaming
	return cfg
}

// newGateRouter mounts the gate and a limiter in front of a handler that
// records what it saw.
func newGateRouter(t *testing.T, cfg config.MCPConfig, rl config.RateLimitConfig, seen *http.Header) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Any("/mcp", MCPGate(cfg, nil), RateLimit(t.Context(), rl, nil), func(c *gin.Context) {
		if seen != nil {
			*seen = c.Request.Header.Clone()
		}
		c.Header("Cache-Control", "no-cache")
		c.String(http.StatusOK, "handled")
	})
	return r
}

func TestMCPGateRedirectsBrowsers(t *testing.T) {
	var downstream int
	r := gin.New()
	r.Any("/mcp", MCPGate(testMCPConfig(true), nil), func(c *gin.Context) {
		downstream++
		c.String(http.StatusOK, "handled")
	})

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", chromeUA)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/home/mcp-setup" {
		t.Errorf("Location = %q", loc)
	}
	if downstream != 0 {
		t.Errorf("handlers after the gate ran %d times for a browser navigation", downstream)
	}
	if strings.Contains(rec.Body.String(), "handled") {
		t.Error("protocol handler ran for a browser navigation")
	}
}

func TestIsBrowserNavigation(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		want    bool
	}{
		{"chrome", http.MethodGet, map[string]string{"Accept": "text/html", "User-Agent": chromeUA}, true},
		{"post", http.MethodPost, map[string]string{"Accept": "text/html", "User-Agent": chromeUA}, false},
		{"event stream", http.MethodGet, map[string]string{"Accept": "text/event-stream", "User-Agent": chromeUA}, false},
		{"json body", http.MethodGet, map[string]string{"Accept": "text/html", "Content-Type": "application/json", "User-Agent": chromeUA}, false},
		{"cli client", http.MethodGet, map[string]string{"Accept": "text/html", "User-Agent": "node-fetch/1.0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/mcp", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := IsBrowserNavigation(req); got != tt.want {
				t.Errorf("IsBrowserNavigation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMCPGateMethodNotAllowed(t *testing.T) {
	tests := []struct {
		name      string
		streaming bool
		method    string
		wantCode  int
		wantAllow string
	}{
		{"put with streaming", true, http.MethodPut, http.StatusMethodNotAllowed, "POST, GET, DELETE"},
		{"delete with streaming", true, http.MethodDelete, http.StatusOK, ""},
		{"get without streaming", false, http.MethodGet, http.StatusMethodNotAllowed, "POST"},
		{"post without streaming", false, http.MethodPost, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newGateRouter(t, testMCPConfig(tt.streaming), config.Defaults().RateLimit, nil)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, "/mcp", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Allow"); got != tt.wantAllow {
				t.Errorf("Allow = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestMCPGateNormalizesHeaders(t *testing.T) {
	var seen http.Header
	r := newGateRouter(t, testMCPConfig(true), config.Defaults().RateLimit, &seen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := seen.Get("Accept"); got != "application/json, text/event-stream" {
		t.Errorf("Accept = %q", got)
	}
	if got := seen.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get("X-MCP-Server"); got != "Redpanda Docs MCP/1.1.0" {
		t.Errorf("X-MCP-Server = %q", got)
	}
}

func TestMCPGateKeepsCallerHeaders(t *testing.T) {
	var seen http.Header
	r := newGateRouter(t, testMCPConfig(true), config.Defaults().RateLimit, &seen)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got := seen.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if got := seen.Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	rl := config.RateLimitConfig{Enabled: true, Window: time.Minute, Limit: 2}
	r := newGateRouter(t, testMCPConfig(true), rl, nil)

	post := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
		req.Header.Set("X-Client-Key", key)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := post("a")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
		if rec.Header().Get("RateLimit-Limit") != "2" || rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("missing limit headers: %v", rec.Header())
		}
	}

	rec := post("a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if rec.Header().Get("RateLimit-Remaining") != "0" {
		t.Errorf("RateLimit-Remaining = %q", rec.Header().Get("RateLimit-Remaining"))
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMITED") {
		t.Errorf("body = %s", rec.Body.String())
	}

	if rec := post("b"); rec.Code != http.StatusOK {
		t.Errorf("other key status = %d, want 200", rec.Code)
	}

	// GET streams are never counted.
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("X-Client-Key", "a")
	get := httptest.NewRecorder()
	r.ServeHTTP(get, req)
	if get.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", get.Code)
	}
}

func TestRateLimitIdentity(t *testing.T) {
	rl := config.Defaults().RateLimit
	rl.Window = time.Minute
	rl.Limit = 1
	r := newGateRouter(t, testMCPConfig(true), rl, nil)

	post := func(remote, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	// Behind a trusted load balancer each forwarded client gets its own bucket.
	if code := post("10.0.0.5:443", "203.0.113.7"); code != http.StatusOK {
		t.Fatalf("first forwarded client status = %d", code)
	}
	if code := post("10.0.0.5:443", "203.0.113.8, 10.0.0.5"); code != http.StatusOK {
		t.Errorf("second forwarded client status = %d, want 200", code)
	}
	if code := post("10.0.0.5:443", "203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("repeat forwarded client status = %d, want 429", code)
	}

	// A direct client cannot pick its bucket by spoofing X-Forwarded-For.
	if code := post("198.51.100.1:5000", "203.0.113.50"); code != http.StatusOK {
		t.Fatalf("direct client status = %d", code)
	}
	if code := post("198.51.100.1:5000", "203.0.113.51"); code != http.StatusTooManyRequests {
		t.Errorf("spoofed header status = %d, want 429", code)
	}
}

func TestRateLimitPlatformHeader(t *testing.T) {
	rl := config.RateLimitConfig{Enabled: true, Window: time.Minute, Limit: 1, PlatformHeader: "X-Nf-Client-Connection-Ip"}
	r := newGateRouter(t, testMCPConfig(true), rl, nil)

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
		req.Header.Set("X-Nf-Client-Connection-Ip", ip)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if post("203.0.113.1") != http.StatusOK || post("203.0.113.2") != http.StatusOK {
		t.Fatal("distinct platform IPs shared a bucket")
	}
	if code := post("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	rl := config.RateLimitConfig{Enabled: false, Window: time.Minute, Limit: 1}
	r := newGateRouter(t, testMCPConfig(true), rl, nil)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`)))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
}

func TestBearerToken(t *testing.T) {
	r := gin.New()
	r.GET("/metrics", BearerToken("s3cret"), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"api key", "X-API-Key", "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBearerTokenOpenWhenUnset(t *testing.T) {
	r := gin.New()
	r.GET("/metrics", BearerToken(""), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	if len(generated) != 36 {
		t.Errorf("generated id = %q, want a uuid", generated)
	}
	if rec.Body.String() != generated {
		t.Errorf("context id = %q, header id = %q", rec.Body.String(), generated)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("id = %q, want caller's id", got)
	}
}
