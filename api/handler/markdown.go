package handler

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/cleaner"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
)

const (
	contentSourceHeader = "X-Content-Source"
	markdownContentType = "text/markdown; charset=utf-8"
)

// WantsMarkdown reports whether an Accept header asks for markdown or plain
// text.
func WantsMarkdown(accept string) bool {
	return strings.Contains(accept, "text/markdown") || strings.Contains(accept, "text/plain")
}

// MarkdownPath maps a page URL path to the path of its markdown twin.
//
//	/docs/page      -> /docs/page/index.md
//	/docs/page/     -> /docs/page/index.md
//	/docs/page.html -> /docs/page.md
//	/docs/file.txt  -> /docs/file.txt/index.md
func MarkdownPath(p string) string {
	if !strings.HasSuffix(p, "/") && !strings.Contains(p, ".") {
		p += "/"
	}
	switch {
	case strings.HasSuffix(p, "/"):
		return p + "index.md"
	case strings.HasSuffix(p, ".html"):
		return strings.TrimSuffix(p, ".html") + ".md"
	default:
		return p + "/index.md"
	}
}

// Markdown returns a handler that answers markdown-preferring requests with
// the page's markdown twin from site. If the twin is missing and conversion
// is enabled, the HTML page is converted instead. Requests it cannot answer
// continue down the chain to the static site.
func Markdown(cfg config.MarkdownConfig, site http.FileSystem, cl *cleaner.Cleaner, m *metrics.Collector) gin.HandlerFunc {
	cacheControl := fmt.Sprintf("public, max-age=%d", int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		if !cfg.Enabled || site == nil || !WantsMarkdown(c.GetHeader("Accept")) {
			c.Next()
			return
		}

		mdPath := MarkdownPath(c.Request.URL.Path)
		body, err := readSiteFile(site, mdPath)
		if err == nil {
			serveMarkdown(c, cacheControl, "markdown", body)
			m.RecordMarkdown("markdown")
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("markdown twin unreadable", "path", mdPath, "error", err)
		}

		if !cfg.Convert || cl == nil {
			c.Next()
			return
		}

		htmlPath := strings.TrimSuffix(mdPath, ".md") + ".html"
		raw, err := readSiteFile(site, htmlPath)
		if err != nil {
			c.Next()
			return
		}
		page, err := cl.Markdown(string(raw), requestURL(c))
		if err != nil {
			slog.Warn("markdown conversion failed", "path", htmlPath, "error", err)
			c.Next()
			return
		}
		serveMarkdown(c, cacheControl, "converted", []byte(page.Markdown))
		m.RecordMarkdown("converted")
	}
}

func serveMarkdown(c *gin.Context, cacheControl, source string, body []byte) {
	c.Header("Cache-Control", cacheControl)
	c.Header(contentSourceHeader, source)
	c.Header("Vary", "Accept")
	c.Data(http.StatusOK, markdownContentType, body)
	c.Abort()
}

// readSiteFile reads a regular file from site. Directories count as missing.
func readSiteFile(site http.FileSystem, name string) ([]byte, error) {
	f, err := site.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return io.ReadAll(f)
}

// requestURL reconstructs the public URL of the request for resolving
// relative links.
func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}
