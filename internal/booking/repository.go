package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nekogravitycat/seat-booking-backend/internal/db"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
)

// Names of the partial unique indexes guarding confirmed bookings.
const (
	oneConfirmedPerSeatIndex     = "idx_one_confirmed_booking_per_seat"
	oneConfirmedPerUserSlotIndex = "idx_one_confirmed_booking_per_user_slot"
)

// SeatLock is a seat row held under FOR UPDATE together with its slot and resource.
type SeatLock struct {
	Seat         slot.Seat
	SlotStart    time.Time
	SlotEnd      time.Time
	ResourceID   string
	ResourceName string
	ResourceType string
}

type Repository interface {
	// WithinTx runs fn in one transaction. Row locks taken through the
	// TxRepository are held until fn returns.
	WithinTx(ctx context.Context, fn func(tx TxRepository) error) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
}

// TxRepository is the transactional view used by the write paths.
// Callers lock the seat row before the booking row.
type TxRepository interface {
	// LockSeat locks the seat row. Returns ErrSeatNotFound when missing.
	LockSeat(ctx context.Context, seatID string) (*SeatLock, error)
	// SetSeatStatus moves the seat from one status to another and returns the new updated_at.
	SetSeatStatus(ctx context.Context, seatID string, from, to slot.SeatStatus) (time.Time, error)
	HasConfirmedInSlot(ctx context.Context, userID, slotID string) (bool, error)
	// Insert stores a new booking. Unique index violations map to
	// ErrSeatUnavailable and ErrDuplicateBooking.
	Insert(ctx context.Context, b *Booking) error
	// GetBooking reads a booking with details, locking its row when forUpdate is set.
	GetBooking(ctx context.Context, id string, forUpdate bool) (*Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status) (time.Time, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type pgxRepository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPgxRepository creates a Repository. lockTimeout bounds every lock wait
// inside write transactions; zero keeps the server default.
func NewPgxRepository(pool *pgxpool.Pool, lockTimeout time.Duration) Repository {
	return &pgxRepository{pool: pool, lockTimeout: lockTimeout}
}

func (r *pgxRepository) WithinTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.TxOptions{LockTimeout: r.lockTimeout}, func(tx pgx.Tx) error {
		return fn(&pgxTxRepository{q: tx})
	})
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	return getBooking(ctx, r.pool, id, false)
}

func detailSelect(extra ...string) squirrel.SelectBuilder {
	cols := append([]string{
		"b.id", "b.user_id", "b.seat_id", "b.slot_id", "b.status", "b.created_at", "b.updated_at",
		"se.seat_number", "se.seat_type", "sl.start_time", "sl.end_time",
		"r.id", "r.name", "r.type",
	}, extra...)
	return psql.Select(cols...).
		From("public.bookings b").
		Join("public.seats se ON se.id = b.seat_id").
		Join("public.slots sl ON sl.id = b.slot_id").
		Join("public.resources r ON r.id = sl.resource_id")
}

func detailDest(b *Booking) []any {
	return []any{
		&b.ID, &b.UserID, &b.SeatID, &b.SlotID, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		&b.SeatNumber, &b.SeatType, &b.SlotStart, &b.SlotEnd,
		&b.ResourceID, &b.ResourceName, &b.ResourceType,
	}
}

func getBooking(ctx context.Context, q db.Querier, id string, forUpdate bool) (*Booking, error) {
	builder := detailSelect().Where(squirrel.Eq{"b.id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE OF b")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	var b Booking
	if err := q.QueryRow(ctx, query, args...).Scan(detailDest(&b)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return &b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := detailSelect("count(*) OVER() AS total_count")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"b.user_id": filter.UserID})
	}
	if filter.SlotID != "" {
		query = query.Where(squirrel.Eq{"b.slot_id": filter.SlotID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"b.status": filter.Status})
	}

	if filter.OldestFirst {
		query = query.OrderBy("b.created_at ASC", "b.id")
	} else {
		query = query.OrderBy("b.created_at DESC", "b.id")
	}

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int

	for rows.Next() {
		var b Booking
		if err := rows.Scan(append(detailDest(&b), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}

	return bookings, total, nil
}

type pgxTxRepository struct {
	q db.Querier
}

func (r *pgxTxRepository) LockSeat(ctx context.Context, seatID string) (*SeatLock, error) {
	const query = `
		SELECT
			s.id, s.slot_id, s.seat_number, s.status, s.seat_type, s.created_at, s.updated_at,
			sl.start_time, sl.end_time, r.id, r.name, r.type
		FROM public.seats s
		JOIN public.slots sl ON sl.id = s.slot_id
		JOIN public.resources r ON r.id = sl.resource_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`
	var l SeatLock
	if err := r.q.QueryRow(ctx, query, seatID).Scan(
		&l.Seat.ID, &l.Seat.SlotID, &l.Seat.SeatNumber, &l.Seat.Status, &l.Seat.SeatType,
		&l.Seat.CreatedAt, &l.Seat.UpdatedAt,
		&l.SlotStart, &l.SlotEnd, &l.ResourceID, &l.ResourceName, &l.ResourceType,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, fmt.Errorf("lock seat failed: %w", err)
	}
	return &l, nil
}

func (r *pgxTxRepository) SetSeatStatus(ctx context.Context, seatID string, from, to slot.SeatStatus) (time.Time, error) {
	if !from.CanTransition(to) {
		return time.Time{}, fmt.Errorf("seat transition %s -> %s is not allowed", from, to)
	}

	query, args, err := psql.Update("public.seats").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": seatID, "status": from}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build update seat query failed: %w", err)
	}

	var updated time.Time
	if err := r.q.QueryRow(ctx, query, args...).Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, fmt.Errorf("seat %s is no longer %s", seatID, from)
		}
		return time.Time{}, fmt.Errorf("update seat status failed: %w", err)
	}
	return updated, nil
}

func (r *pgxTxRepository) HasConfirmedInSlot(ctx context.Context, userID, slotID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM public.bookings
			WHERE user_id = $1 AND slot_id = $2 AND status = 'confirmed'
		)
	`
	var exists bool
	if err := r.q.QueryRow(ctx, query, userID, slotID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing booking failed: %w", err)
	}
	return exists, nil
}

func (r *pgxTxRepository) Insert(ctx context.Context, b *Booking) error {
	query, args, err := psql.Insert("public.bookings").
		Columns("user_id", "seat_id", "slot_id", "status").
		Values(b.UserID, b.SeatID, b.SlotID, b.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := r.q.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		switch {
		case db.IsUniqueViolation(err, oneConfirmedPerSeatIndex):
			return ErrSeatUnavailable.WithErr(err)
		case db.IsUniqueViolation(err, oneConfirmedPerUserSlotIndex):
			return ErrDuplicateBooking.WithErr(err)
		}
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (r *pgxTxRepository) GetBooking(ctx context.Context, id string, forUpdate bool) (*Booking, error) {
	return getBooking(ctx, r.q, id, forUpdate)
}

func (r *pgxTxRepository) UpdateStatus(ctx context.Context, id string, status Status) (time.Time, error) {
	query, args, err := psql.Update("public.bookings").
		Set("status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build update booking query failed: %w", err)
	}

	var updated time.Time
	if err := r.q.QueryRow(ctx, query, args...).Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("update booking failed: %w", err)
	}
	return updated, nil
}
