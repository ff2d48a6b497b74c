// README: Session middleware; resolves the caller identity from X-User-ID.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "tandem_user_id"

// Session requires an X-User-ID header and exposes it to handlers. Real
// token verification sits in front of this service.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-User-ID")
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// CallerID returns the authenticated caller's id, or "" when Session did not run.
func CallerID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
