package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers booking, seat release and slot ledger routes.
// reserveLimiter runs after authentication so buckets are keyed per user.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware, reserveLimiter gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.POST("", reserveLimiter, h.Create)
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("/:id/cancel", h.Cancel)
	}

	// === System Admin Routes ===
	g.POST("/seats/:id/release", authMiddleware, adminMiddleware, h.ReleaseSeat)
	g.GET("/slots/:id/bookings", authMiddleware, adminMiddleware, h.SlotBookings)
}
