package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers slot and seat availability routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	g.GET("/resources/:id/slots", h.ResourceSlots)
	g.POST("/resources/:id/slots", authMiddleware, adminMiddleware, h.Create)

	slots := g.Group("/slots")
	{
		slots.GET("/:id", h.Get)
		slots.GET("/:id/seats", h.AvailableSeats)
	}
}
