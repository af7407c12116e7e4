package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/seat-booking-backend/internal/auth"
	"github.com/nekogravitycat/seat-booking-backend/internal/booking"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/response"
	slotHttp "github.com/nekogravitycat/seat-booking-backend/internal/slot/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/user"
)

// UserLookup resolves the current user to decide administrator access.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Handler struct {
	service booking.Service
	users   UserLookup
}

func NewHandler(service booking.Service, users UserLookup) *Handler {
	return &Handler{
		service: service,
		users:   users,
	}
}

// checkIsSysAdmin helper checks if the current user is a system admin
func (h *Handler) checkIsSysAdmin(c *gin.Context, userID string) bool {
	u, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		return false
	}
	return u.IsSystemAdmin
}

// Create reserves a seat for the current user.
func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	b, err := h.service.Reserve(c.Request.Context(), auth.GetUserID(c), body.SeatID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	// Normal users only ever see their own bookings.
	currentUserID := auth.GetUserID(c)
	filterUserID := currentUserID
	if req.UserID != "" && req.UserID != currentUserID {
		if !h.checkIsSysAdmin(c, currentUserID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden: system admin access required"})
			return
		}
		filterUserID = req.UserID
	}

	items, total, err := h.service.List(c.Request.Context(), booking.Filter{
		UserID:   filterUserID,
		Status:   booking.Status(req.Status),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(NewBookingResponses(items), req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	currentUserID := auth.GetUserID(c)
	b, err := h.service.GetByID(c.Request.Context(), uri.ID, currentUserID, false)
	// Only look the user up when the booking belongs to someone else.
	if errors.Is(err, booking.ErrPermissionDenied) && h.checkIsSysAdmin(c, currentUserID) {
		b, err = h.service.GetByID(c.Request.Context(), uri.ID, currentUserID, true)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), uri.ID, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// ReleaseSeat is the administrative release of a booked seat.
func (h *Handler) ReleaseSeat(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	seat, err := h.service.ReleaseSeat(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, slotHttp.NewSeatResponse(seat))
}

// SlotBookings lists the confirmed bookings of a slot.
func (h *Handler) SlotBookings(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var params request.ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	items, total, err := h.service.ListBySlot(c.Request.Context(), uri.ID, params.Page, params.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, response.NewPageResponse(NewBookingResponses(items), params.Page, params.PageSize, total))
}
