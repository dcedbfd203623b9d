package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// NullRedirect permanently redirects paths ending in a literal "null"
// segment, left behind by links built from missing values, to their parent.
// Other requests continue down the chain.
func NullRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := StripNullSegment(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		c.Redirect(http.StatusMovedPermanently, target)
		c.Abort()
	}
}

// StripNullSegment removes a trailing "/null" or "/null/" from p. The result
// always ends in "/".
func StripNullSegment(p string) (string, bool) {
	var trimmed string
	switch {
	case strings.HasSuffix(p, "/null/"):
		trimmed = strings.TrimSuffix(p, "null/")
	case strings.HasSuffix(p, "/null"):
		trimmed = strings.TrimSuffix(p, "null")
	default:
		return p, false
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	return trimmed, true
}
