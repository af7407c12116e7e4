package slot

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/seat-booking-backend/internal/resource"
)

var (
	ErrNotFound         = apperror.NotFound("slot not found")
	ErrInvalidTimeRange = apperror.New(http.StatusBadRequest, "end_time must be after start_time")
	ErrInvalidCapacity  = apperror.New(http.StatusBadRequest, "capacity must be between 1 and 1000")
)

// MaxCapacity bounds the number of seats generated for one slot.
const MaxCapacity = 1000

// DefaultSeatType is assigned to generated seats when none is given.
const DefaultSeatType = "standard"

// SeatStatus is the bookability state of a seat.
type SeatStatus string

const (
	SeatAvailable   SeatStatus = "available"
	SeatBooked      SeatStatus = "booked"
	SeatReserved    SeatStatus = "reserved"
	SeatMaintenance SeatStatus = "maintenance"
)

// Valid reports whether s is a known status.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatBooked, SeatReserved, SeatMaintenance:
		return true
	}
	return false
}

// CanTransition reports whether write paths may move a seat from s to next.
// Only available->booked and booked->available are allowed.
func (s SeatStatus) CanTransition(next SeatStatus) bool {
	return (s == SeatAvailable && next == SeatBooked) ||
		(s == SeatBooked && next == SeatAvailable)
}

// Slot is a half-open time window [StartTime, EndTime) of a resource.
type Slot struct {
	ID         string
	ResourceID string
	StartTime  time.Time
	EndTime    time.Time
	Capacity   int
	// Version is reserved for slot-level optimistic locking. Write paths never change it.
	Version int

	// AvailableCount is populated by single-slot lookups only.
	AvailableCount int
}

// HasStarted reports whether a slot beginning at start is no longer bookable at now.
func HasStarted(start, now time.Time) bool {
	return !start.After(now)
}

// Seat is one individually bookable position within a slot.
type Seat struct {
	ID         string
	SlotID     string
	SeatNumber string
	Status     SeatStatus
	SeatType   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SlotWithSeats carries every seat of a slot and the currently available subset.
type SlotWithSeats struct {
	Slot
	Seats          []*Seat
	AvailableSeats []*Seat
}

// ResourceWithSlots is a resource with its bookable slots in a window.
type ResourceWithSlots struct {
	Resource *resource.Resource
	Slots    []*SlotWithSeats
}

// SeatNumber formats the n-th (1-based) seat label of a slot with the given
// capacity. Labels are zero padded so lexical order equals numeric order.
func SeatNumber(n, capacity int) string {
	width := len(strconv.Itoa(capacity))
	if width < 2 {
		width = 2
	}
	return fmt.Sprintf("S%0*d", width, n)
}
