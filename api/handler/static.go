package handler

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/models"
)

// notFoundPage is served with status 404 when the site provides one.
const notFoundPage = "/404.html"

// Static returns a handler that serves the built documentation site. Missing
// paths get the site's 404 page, or a JSON error if it has none.
func Static(site http.FileSystem) gin.HandlerFunc {
	var fileServer http.Handler
	if site != nil {
		fileServer = http.FileServer(site)
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if site == nil || (method != http.MethodGet && method != http.MethodHead) {
			notFound(c)
			return
		}

		name := path.Clean("/" + c.Request.URL.Path)
		if f, err := site.Open(name); err == nil {
			f.Close()
			fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}

		if body, err := readSiteFile(site, notFoundPage); err == nil {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", body)
			return
		}
		notFound(c)
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeNotFound,
			Message: "page not found",
		},
	})
}
