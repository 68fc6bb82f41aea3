package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/models"
)

// Auth returns bearer-token authentication middleware.
//
// Supports two header styles:
//
//	Authorization: Bearer <token>
//	X-API-Key: <token>
//
// If tokens is empty, the middleware is a no-op (open access).
func Auth(tokens []string) gin.HandlerFunc {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			accepted = append(accepted, []byte(t))
		}
	}
	if len(accepted) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "missing token: provide Authorization: Bearer <token>")
			return
		}
		if !matches(accepted, []byte(token)) {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Next()
	}
}

// matches compares against every accepted token in constant time.
func matches(accepted [][]byte, token []byte) bool {
	ok := 0
	for _, a := range accepted {
		ok |= subtle.ConstantTimeCompare(a, token)
	}
	return ok == 1
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.RenderResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}

// extractToken tries Authorization: Bearer first, then X-API-Key.
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.GetHeader("X-API-Key")
}
