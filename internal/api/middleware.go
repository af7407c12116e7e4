package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/seat-booking-backend/internal/auth"
	"github.com/nekogravitycat/seat-booking-backend/internal/user"
)

// UserGetter is the slice of user.Service the admin guard needs.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// RequireSystemAdmin lets only active system admins through.
// Must run after auth.AuthRequired.
func RequireSystemAdmin(users UserGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		u, err := users.GetByID(c.Request.Context(), userID)
		switch {
		case errors.Is(err, user.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		if !u.IsSystemAdmin || !u.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: system admin access required"})
			return
		}

		c.Next()
	}
}
