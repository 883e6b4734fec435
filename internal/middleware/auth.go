package middleware

import (
	"github.com/gin-gonic/gin"
)

const devUserID = "00000000-0000-0000-0000-000000000001"

// DevelopmentAuthMiddleware is a simple auth middleware for development.
// It keeps a user already placed by IstioAuth, honours X-User-ID, and falls
// back to a fixed dev user.
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.GetHeader("X-User-ID")
		}
		if userID == "" {
			userID = devUserID
		}

		// Set both camelCase and snake_case for compatibility with RBAC middleware
		c.Set("userId", userID)
		c.Set("user_id", userID)
		c.Set("staff_id", userID)
		c.Next()
	}
}
