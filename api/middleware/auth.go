package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redpanda-data/docs-edge/models"
)

// BearerToken returns middleware that requires "Authorization: Bearer
// <token>" on the routes it guards. X-API-Key is accepted as well.
//
// If token is empty, the middleware is a no-op (open access).
func BearerToken(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}

	want := []byte(token)
	return func(c *gin.Context) {
		got := extractToken(c)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeUnauthorized,
					Message: "missing token: provide Authorization: Bearer <token>",
				},
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeUnauthorized,
					Message: "invalid token",
				},
			})
			return
		}

		c.Next()
	}
}

// extractToken tries Authorization: Bearer first, then X-API-Key.
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.GetHeader("X-API-Key")
}
