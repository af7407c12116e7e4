package http

import (
	"fmt"
	"time"

	resourceHttp "github.com/nekogravitycat/seat-booking-backend/internal/resource/http"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
)

type SeatResponse struct {
	ID         string          `json:"id"`
	SlotID     string          `json:"slot_id"`
	SeatNumber string          `json:"seat_number"`
	Status     slot.SeatStatus `json:"status"`
	SeatType   string          `json:"seat_type"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func NewSeatResponse(s *slot.Seat) SeatResponse {
	return SeatResponse{
		ID:         s.ID,
		SlotID:     s.SlotID,
		SeatNumber: s.SeatNumber,
		Status:     s.Status,
		SeatType:   s.SeatType,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func NewSeatResponses(seats []*slot.Seat) []SeatResponse {
	out := make([]SeatResponse, len(seats))
	for i, s := range seats {
		out[i] = NewSeatResponse(s)
	}
	return out
}

type SlotResponse struct {
	ID             string    `json:"id"`
	ResourceID     string    `json:"resource_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Capacity       int       `json:"capacity"`
	Version        int       `json:"version"`
	AvailableCount int       `json:"available_count"`
}

func NewSlotResponse(s *slot.Slot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		ResourceID:     s.ResourceID,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Capacity:       s.Capacity,
		Version:        s.Version,
		AvailableCount: s.AvailableCount,
	}
}

type SlotWithSeatsResponse struct {
	SlotResponse
	Seats          []SeatResponse `json:"seats"`
	AvailableSeats []SeatResponse `json:"available_seats"`
}

func NewSlotWithSeatsResponse(s *slot.SlotWithSeats) SlotWithSeatsResponse {
	return SlotWithSeatsResponse{
		SlotResponse:   NewSlotResponse(&s.Slot),
		Seats:          NewSeatResponses(s.Seats),
		AvailableSeats: NewSeatResponses(s.AvailableSeats),
	}
}

type ResourceWithSlotsResponse struct {
	resourceHttp.ResourceResponse
	Slots []SlotWithSeatsResponse `json:"slots"`
}

func NewResourceWithSlotsResponse(r *slot.ResourceWithSlots) ResourceWithSlotsResponse {
	slots := make([]SlotWithSeatsResponse, len(r.Slots))
	for i, s := range r.Slots {
		slots[i] = NewSlotWithSeatsResponse(s)
	}
	return ResourceWithSlotsResponse{
		ResourceResponse: resourceHttp.NewResponse(r.Resource),
		Slots:            slots,
	}
}

// WindowQuery holds the optional RFC3339 bounds of a slot search.
type WindowQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

func (q WindowQuery) Window() (slot.Window, error) {
	var w slot.Window
	if q.StartDate != "" {
		t, err := time.Parse(time.RFC3339, q.StartDate)
		if err != nil {
			return w, fmt.Errorf("start_date must be RFC3339: %w", err)
		}
		w.Start = &t
	}
	if q.EndDate != "" {
		t, err := time.Parse(time.RFC3339, q.EndDate)
		if err != nil {
			return w, fmt.Errorf("end_date must be RFC3339: %w", err)
		}
		w.End = &t
	}
	return w, nil
}

type SeatsQuery struct {
	SeatType string `form:"seat_type"`
}

type CreateSlotRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Capacity  int       `json:"capacity" binding:"required,min=1"`
	SeatType  string    `json:"seat_type"`
}
