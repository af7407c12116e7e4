package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.NotFound("booking not found")
	ErrSeatNotFound     = apperror.NotFound("seat not found")
	ErrSeatUnavailable  = apperror.Conflict("seat is not available")
	ErrSlotStarted      = apperror.InvalidState("cannot book seats for past time slots")
	ErrDuplicateBooking = apperror.Conflict("you already have a booking for this time slot")
	ErrAlreadyCancelled = apperror.InvalidState("booking is already cancelled")
	ErrNotCancellable   = apperror.InvalidState("only confirmed bookings can be cancelled")
	ErrCancelStarted    = apperror.InvalidState("cannot cancel bookings for past time slots")
	ErrSeatNotBooked    = apperror.InvalidState("seat is not currently booked")
	ErrSeatBusy         = apperror.Conflict("seat is busy, please retry")
	ErrPermissionDenied = apperror.Forbidden("permission denied")
	ErrInvalidStatus    = apperror.New(http.StatusBadRequest, "invalid booking status")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	// StatusCompleted is reserved; no write path produces it.
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Booking claims one seat of one slot for one user. SlotID is a copy of the
// seat's slot taken when the booking is created.
type Booking struct {
	ID        string
	UserID    string
	SeatID    string
	SlotID    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time

	// Read-only details joined from the catalog.
	SeatNumber   string
	SeatType     string
	SlotStart    time.Time
	SlotEnd      time.Time
	ResourceID   string
	ResourceName string
	ResourceType string
}

type Filter struct {
	UserID   string
	SlotID   string
	Status   Status
	Page     int
	PageSize int
	// OldestFirst orders by created_at ascending instead of newest first.
	OldestFirst bool
}
