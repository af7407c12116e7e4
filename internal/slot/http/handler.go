package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
)

type Handler struct {
	service slot.Service
}

func NewHandler(service slot.Service) *Handler {
	return &Handler{service: service}
}

// ResourceSlots returns a resource with its slots that still have free seats.
func (h *Handler) ResourceSlots(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var q WindowQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	w, err := q.Window()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	res, err := h.service.ResourceWithOpenSlots(c.Request.Context(), uri.ID, w)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResourceWithSlotsResponse(res))
}

func (h *Handler) Create(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body CreateSlotRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	sl, err := h.service.Create(c.Request.Context(), slot.CreateRequest{
		ResourceID: uri.ID,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		Capacity:   body.Capacity,
		SeatType:   body.SeatType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewSlotWithSeatsResponse(sl))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	sl, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSlotResponse(sl))
}

// AvailableSeats lists the free seats of a slot.
func (h *Handler) AvailableSeats(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var q SeatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	seats, err := h.service.AvailableSeats(c.Request.Context(), uri.ID, q.SeatType)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSeatResponses(seats))
}
