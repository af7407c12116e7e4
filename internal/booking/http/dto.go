package http

import (
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/booking"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	UserID string `form:"user_id" binding:"omitempty,uuid"`
}

type CreateBookingRequest struct {
	SeatID string `json:"seat_id" binding:"required,uuid"`
}

type ResourceTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type SlotTag struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type SeatTag struct {
	ID         string `json:"id"`
	SeatNumber string `json:"seat_number"`
	SeatType   string `json:"seat_type"`
}

type BookingResponse struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Status    string      `json:"status"`
	Resource  ResourceTag `json:"resource"`
	Slot      SlotTag     `json:"slot"`
	Seat      SeatTag     `json:"seat"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Status:    string(b.Status),
		Resource:  ResourceTag{ID: b.ResourceID, Name: b.ResourceName, Type: b.ResourceType},
		Slot:      SlotTag{ID: b.SlotID, StartTime: b.SlotStart, EndTime: b.SlotEnd},
		Seat:      SeatTag{ID: b.SeatID, SeatNumber: b.SeatNumber, SeatType: b.SeatType},
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func NewBookingResponses(items []*booking.Booking) []BookingResponse {
	out := make([]BookingResponse, len(items))
	for i, b := range items {
		out[i] = NewBookingResponse(b)
	}
	return out
}
