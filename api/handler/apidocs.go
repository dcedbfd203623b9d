package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/cache"
	"github.com/redpanda-data/docs-edge/cleaner"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/models"
)

const (
	apiPrefix     = "/api"
	adminAPIAlias = "/api/admin-api"
	adminAPIPath  = "/api/doc/admin-api"

	// proxySecretHeader authenticates the docs site to the API reference host.
	proxySecretHeader = "X-BUMP-SH-PROXY"

	maxProxyBody = 10 << 20
)

// hopHeaders are never copied from the upstream response.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
}

// APIDocs returns a handler for GET /api/*path that serves the hosted API
// reference under the docs domain.
//
//  1. /api/admin-api redirects to its canonical path.
//  2. Rewritten HTML is served from cache when fresh. Only 2xx pages are
//     cached.
//  3. The upstream page is fetched with the proxy secret.
//  4. HTML gets the embed markers the docs site mounts its header and
//     footer into. Everything else passes through unchanged.
func APIDocs(client *http.Client, cfg config.APIDocsConfig, cc *cache.Cache, m *metrics.Collector) gin.HandlerFunc {
	base := strings.TrimSuffix(cfg.UpstreamBase, "/")

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// ── 1. Alias redirect ───────────────────────────────────────
		if path == adminAPIAlias {
			c.Redirect(http.StatusFound, adminAPIPath)
			return
		}

		target := base + strings.Replace(path, apiPrefix, "", 1)
		key := cache.Key(target)

		// ── 2. Cache lookup ─────────────────────────────────────────
		if cc != nil {
			if page, hit := cc.Get(key); hit {
				m.RecordAPIDocs("hit")
				c.Header("X-Cache", "hit")
				c.Data(page.Status, page.ContentType, page.Body)
				return
			}
		}

		// ── 3. Upstream fetch ───────────────────────────────────────
		resp, err := fetchAPIDoc(c, client, target, cfg.ProxySecret)
		if err != nil {
			m.RecordAPIDocs("error")
			slog.Warn("api docs upstream failed", "path", path, "error", err)
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeUpstream,
					Message: "API reference is temporarily unavailable.",
				},
			})
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody+1))
		if err == nil && len(body) > maxProxyBody {
			err = fmt.Errorf("apidocs: body exceeds %d bytes", maxProxyBody)
		}
		if err != nil {
			m.RecordAPIDocs("error")
			slog.Warn("api docs upstream body unreadable", "path", path, "error", err)
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeUpstream, Message: "failed to read API reference"},
			})
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(contentType, "text/html") {
			m.RecordAPIDocs("passthrough")
			copyHeaders(c.Writer.Header(), resp.Header)
			c.Data(resp.StatusCode, contentType, body)
			return
		}

		// ── 4. Inject embed markers ─────────────────────────────────
		html, err := cleaner.InjectEmbedMarkers(string(body))
		if err != nil {
			slog.Warn("api docs injection failed, serving upstream html", "path", path, "error", err)
			html = string(body)
		}

		page := &cache.Page{
			Status:      resp.StatusCode,
			ContentType: "text/html; charset=utf-8",
			Body:        []byte(html),
		}
		// Upstream error pages keep their status and are never cached.
		if cc != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			cc.Set(key, page)
		}
		m.RecordAPIDocs("miss")
		c.Header("X-Cache", "miss")
		c.Data(page.Status, page.ContentType, page.Body)
	}
}

func fetchAPIDoc(c *gin.Context, client *http.Client, target, secret string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("apidocs: build request: %w", err)
	}
	req.Header.Set(proxySecretHeader, secret)
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apidocs: fetch %s: %w", target, err)
	}
	return resp, nil
}

// copyHeaders mirrors upstream response headers, minus hop-by-hop ones.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
