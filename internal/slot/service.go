package slot

import (
	"context"
	"strings"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/resource"
)

// ResourceGetter resolves the resource a slot belongs to.
type ResourceGetter interface {
	GetByID(ctx context.Context, id string) (*resource.Resource, error)
}

type CreateRequest struct {
	ResourceID string
	StartTime  time.Time
	EndTime    time.Time
	Capacity   int
	SeatType   string
}

// Window restricts which slots of a resource are returned.
// A nil Start means now; a nil End means unbounded.
type Window struct {
	Start *time.Time
	End   *time.Time
}

type Service interface {
	// Create adds a slot to a resource together with Capacity seats numbered S01, S02, ...
	Create(ctx context.Context, req CreateRequest) (*SlotWithSeats, error)
	GetByID(ctx context.Context, id string) (*Slot, error)
	// AvailableSeats lists seats of the slot that are currently available,
	// optionally narrowed to one seat type. An unknown slot yields an empty list.
	AvailableSeats(ctx context.Context, slotID, seatType string) ([]*Seat, error)
	// ResourceWithOpenSlots returns the resource and its slots in the window
	// that still have at least one available seat.
	ResourceWithOpenSlots(ctx context.Context, resourceID string, w Window) (*ResourceWithSlots, error)
}

type service struct {
	repo      Repository
	resources ResourceGetter
	now       func() time.Time
}

func NewService(repo Repository, resources ResourceGetter) Service {
	return &service{
		repo:      repo,
		resources: resources,
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*SlotWithSeats, error) {
	if !req.StartTime.Before(req.EndTime) {
		return nil, ErrInvalidTimeRange
	}
	if req.Capacity < 1 || req.Capacity > MaxCapacity {
		return nil, ErrInvalidCapacity
	}

	seatType := strings.TrimSpace(req.SeatType)
	if seatType == "" {
		seatType = DefaultSeatType
	}

	if _, err := s.resources.GetByID(ctx, req.ResourceID); err != nil {
		return nil, err
	}

	sl := &Slot{
		ResourceID: req.ResourceID,
		StartTime:  req.StartTime.UTC(),
		EndTime:    req.EndTime.UTC(),
		Capacity:   req.Capacity,
	}

	seats := make([]*Seat, req.Capacity)
	for i := range seats {
		seats[i] = &Seat{
			SeatNumber: SeatNumber(i+1, req.Capacity),
			Status:     SeatAvailable,
			SeatType:   seatType,
		}
	}

	if err := s.repo.CreateWithSeats(ctx, sl, seats); err != nil {
		return nil, err
	}
	sl.AvailableCount = len(seats)

	return &SlotWithSeats{Slot: *sl, Seats: seats, AvailableSeats: seats}, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Slot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) AvailableSeats(ctx context.Context, slotID, seatType string) ([]*Seat, error) {
	seats, err := s.repo.ListAvailableSeats(ctx, slotID, strings.TrimSpace(seatType))
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []*Seat{}
	}
	return seats, nil
}

func (s *service) ResourceWithOpenSlots(ctx context.Context, resourceID string, w Window) (*ResourceWithSlots, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	start := s.now().UTC()
	if w.Start != nil {
		start = *w.Start
	}

	slots, err := s.repo.ListWithSeats(ctx, resourceID, start, w.End)
	if err != nil {
		return nil, err
	}

	return &ResourceWithSlots{Resource: res, Slots: openSlots(slots)}, nil
}

// openSlots keeps slots with at least one available seat and fills in their
// available subset. Input order is preserved.
func openSlots(slots []*SlotWithSeats) []*SlotWithSeats {
	open := make([]*SlotWithSeats, 0, len(slots))
	for _, sl := range slots {
		var available []*Seat
		for _, seat := range sl.Seats {
			if seat.Status == SeatAvailable {
				available = append(available, seat)
			}
		}
		if len(available) == 0 {
			continue
		}
		sl.AvailableSeats = available
		sl.AvailableCount = len(available)
		open = append(open, sl)
	}
	return open
}
