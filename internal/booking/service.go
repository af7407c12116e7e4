package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/db"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/events"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/metrics"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
)

const publishTimeout = 2 * time.Second

type Service interface {
	// Reserve claims the seat for the user in one transaction.
	Reserve(ctx context.Context, userID, seatID string) (*Booking, error)
	// Cancel cancels the user's own booking before its slot starts.
	Cancel(ctx context.Context, bookingID, userID string) (*Booking, error)
	// ReleaseSeat makes a booked seat available again without touching bookings.
	ReleaseSeat(ctx context.Context, seatID string) (*slot.Seat, error)
	GetByID(ctx context.Context, id, requesterID string, isSysAdmin bool) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	// ListBySlot lists confirmed bookings of a slot, oldest first.
	ListBySlot(ctx context.Context, slotID string, page, pageSize int) ([]*Booking, int, error)
}

// Options tunes the write paths.
type Options struct {
	// ReleaseSeatOnCancel returns the seat to available in the cancel transaction.
	ReleaseSeatOnCancel bool
	Publisher           events.Publisher
	Logger              *slog.Logger
	Now                 func() time.Time
}

type service struct {
	repo Repository
	opts Options
}

func NewService(repo Repository, opts Options) Service {
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{repo: repo, opts: opts}
}

func (s *service) Reserve(ctx context.Context, userID, seatID string) (*Booking, error) {
	var created *Booking

	err := s.repo.WithinTx(ctx, func(tx TxRepository) error {
		waitStart := time.Now()
		lock, err := tx.LockSeat(ctx, seatID)
		metrics.ObserveSeatLockWait(time.Since(waitStart))
		if err != nil {
			return err
		}

		if lock.Seat.Status != slot.SeatAvailable {
			return ErrSeatUnavailable
		}

		now := s.opts.Now()
		if slot.HasStarted(lock.SlotStart, now) {
			return ErrSlotStarted
		}

		dup, err := tx.HasConfirmedInSlot(ctx, userID, lock.Seat.SlotID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBooking
		}

		if _, err := tx.SetSeatStatus(ctx, seatID, slot.SeatAvailable, slot.SeatBooked); err != nil {
			return err
		}

		b := &Booking{
			UserID:       userID,
			SeatID:       seatID,
			SlotID:       lock.Seat.SlotID,
			Status:       StatusConfirmed,
			SeatNumber:   lock.Seat.SeatNumber,
			SeatType:     lock.Seat.SeatType,
			SlotStart:    lock.SlotStart,
			SlotEnd:      lock.SlotEnd,
			ResourceID:   lock.ResourceID,
			ResourceName: lock.ResourceName,
			ResourceType: lock.ResourceType,
		}
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}

		created = b
		return nil
	})

	err = mapLockFailure(err)
	metrics.ObserveReservation(reservationOutcome(err))
	if err != nil {
		s.opts.Logger.InfoContext(ctx, "reservation rejected", "user_id", userID, "seat_id", seatID, "error", err)
		return nil, err
	}

	s.opts.Logger.InfoContext(ctx, "seat reserved",
		"booking_id", created.ID, "user_id", userID, "seat_id", seatID, "slot_id", created.SlotID)
	s.publish(ctx, events.QueueBookingConfirmed, created)

	return created, nil
}

func (s *service) Cancel(ctx context.Context, bookingID, userID string) (*Booking, error) {
	var cancelled *Booking

	err := s.repo.WithinTx(ctx, func(tx TxRepository) error {
		// Unlocked read to learn the seat, so the seat row is locked before the booking row.
		b, err := tx.GetBooking(ctx, bookingID, false)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return ErrNotFound
		}
		if b.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}

		var seat *SeatLock
		if s.opts.ReleaseSeatOnCancel {
			if seat, err = tx.LockSeat(ctx, b.SeatID); err != nil {
				return err
			}
		}

		b, err = tx.GetBooking(ctx, bookingID, true)
		if err != nil {
			return err
		}
		switch b.Status {
		case StatusConfirmed:
		case StatusCancelled:
			return ErrAlreadyCancelled
		default:
			return ErrNotCancellable
		}

		if slot.HasStarted(b.SlotStart, s.opts.Now()) {
			return ErrCancelStarted
		}

		updated, err := tx.UpdateStatus(ctx, bookingID, StatusCancelled)
		if err != nil {
			return err
		}
		b.Status = StatusCancelled
		b.UpdatedAt = updated

		// The seat may already have been released by an administrator.
		if seat != nil && seat.Seat.Status == slot.SeatBooked {
			if _, err := tx.SetSeatStatus(ctx, b.SeatID, slot.SeatBooked, slot.SeatAvailable); err != nil {
				return err
			}
		}

		cancelled = b
		return nil
	})

	err = mapLockFailure(err)
	metrics.ObserveCancellation(cancellationOutcome(err))
	if err != nil {
		return nil, err
	}

	s.opts.Logger.InfoContext(ctx, "booking cancelled",
		"booking_id", bookingID, "user_id", userID, "seat_released", s.opts.ReleaseSeatOnCancel)
	s.publish(ctx, events.QueueBookingCancelled, cancelled)

	return cancelled, nil
}

func (s *service) ReleaseSeat(ctx context.Context, seatID string) (*slot.Seat, error) {
	var released *slot.Seat

	err := s.repo.WithinTx(ctx, func(tx TxRepository) error {
		lock, err := tx.LockSeat(ctx, seatID)
		if err != nil {
			return err
		}
		if lock.Seat.Status != slot.SeatBooked {
			return ErrSeatNotBooked
		}

		updated, err := tx.SetSeatStatus(ctx, seatID, slot.SeatBooked, slot.SeatAvailable)
		if err != nil {
			return err
		}

		seat := lock.Seat
		seat.Status = slot.SeatAvailable
		seat.UpdatedAt = updated
		released = &seat
		return nil
	})
	if err = mapLockFailure(err); err != nil {
		return nil, err
	}

	s.opts.Logger.InfoContext(ctx, "seat released", "seat_id", seatID, "slot_id", released.SlotID)
	return released, nil
}

func (s *service) GetByID(ctx context.Context, id, requesterID string, isSysAdmin bool) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isSysAdmin && b.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

func (s *service) ListBySlot(ctx context.Context, slotID string, page, pageSize int) ([]*Booking, int, error) {
	return s.repo.List(ctx, Filter{
		SlotID:      slotID,
		Status:      StatusConfirmed,
		Page:        page,
		PageSize:    pageSize,
		OldestFirst: true,
	})
}

// publish sends the event after commit. Failures are logged only.
func (s *service) publish(ctx context.Context, queue string, b *Booking) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.BookingEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		SeatID:     b.SeatID,
		SlotID:     b.SlotID,
		SeatNumber: b.SeatNumber,
		Status:     string(b.Status),
		OccurredAt: s.opts.Now().UTC(),
	}
	if err := s.opts.Publisher.Publish(pubCtx, queue, event); err != nil {
		s.opts.Logger.WarnContext(ctx, "publish booking event failed", "queue", queue, "booking_id", b.ID, "error", err)
	}
}

// mapLockFailure turns lock timeouts, deadlocks and serialization failures
// into a retryable conflict.
func mapLockFailure(err error) error {
	if err != nil && db.IsLockFailure(err) {
		return ErrSeatBusy.WithErr(err)
	}
	return err
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrSeatNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrSeatUnavailable):
		return metrics.OutcomeUnavailable
	case errors.Is(err, ErrSlotStarted):
		return metrics.OutcomeRejected
	case errors.Is(err, ErrDuplicateBooking):
		return metrics.OutcomeDuplicate
	case errors.Is(err, ErrSeatBusy):
		return metrics.OutcomeBusy
	default:
		return metrics.OutcomeError
	}
}

func cancellationOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrNotCancellable), errors.Is(err, ErrCancelStarted):
		return metrics.OutcomeRejected
	case errors.Is(err, ErrSeatBusy):
		return metrics.OutcomeBusy
	default:
		return metrics.OutcomeError
	}
}
