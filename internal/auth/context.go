package auth

import "github.com/gin-gonic/gin"

// ContextKeyUserID is the gin context key holding the authenticated user's ID.
const ContextKeyUserID = "userID"

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
