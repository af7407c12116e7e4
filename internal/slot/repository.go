package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nekogravitycat/seat-booking-backend/internal/db"
)

type Repository interface {
	// CreateWithSeats inserts the slot and all of its seats atomically.
	CreateWithSeats(ctx context.Context, s *Slot, seats []*Seat) error
	GetByID(ctx context.Context, id string) (*Slot, error)
	ListAvailableSeats(ctx context.Context, slotID, seatType string) ([]*Seat, error)
	// ListWithSeats returns slots of the resource with start_time >= start and,
	// when end is set, end_time <= end. Slots are ordered by start_time, seats by seat_number.
	ListWithSeats(ctx context.Context, resourceID string, start time.Time, end *time.Time) ([]*SlotWithSeats, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
	psql squirrel.StatementBuilderType
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{
		pool: pool,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *pgxRepository) CreateWithSeats(ctx context.Context, s *Slot, seats []*Seat) error {
	return db.WithTx(ctx, r.pool, db.TxOptions{}, func(tx pgx.Tx) error {
		const insertSlot = `
			INSERT INTO public.slots (resource_id, start_time, end_time, capacity)
			VALUES ($1, $2, $3, $4)
			RETURNING id, version
		`
		if err := tx.QueryRow(ctx, insertSlot, s.ResourceID, s.StartTime, s.EndTime, s.Capacity).
			Scan(&s.ID, &s.Version); err != nil {
			return fmt.Errorf("create slot failed: %w", err)
		}

		if len(seats) == 0 {
			return nil
		}

		q := r.psql.Insert("public.seats").
			Columns("slot_id", "seat_number", "status", "seat_type")
		for _, seat := range seats {
			seat.SlotID = s.ID
			q = q.Values(seat.SlotID, seat.SeatNumber, seat.Status, seat.SeatType)
		}
		query, args, err := q.Suffix("RETURNING id, seat_number, created_at, updated_at").ToSql()
		if err != nil {
			return fmt.Errorf("build create seats query failed: %w", err)
		}

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("create seats failed: %w", err)
		}
		defer rows.Close()

		byNumber := make(map[string]*Seat, len(seats))
		for _, seat := range seats {
			byNumber[seat.SeatNumber] = seat
		}
		for rows.Next() {
			var (
				id, number string
				created    time.Time
				updated    time.Time
			)
			if err := rows.Scan(&id, &number, &created, &updated); err != nil {
				return fmt.Errorf("scan created seat failed: %w", err)
			}
			if seat, ok := byNumber[number]; ok {
				seat.ID, seat.CreatedAt, seat.UpdatedAt = id, created, updated
			}
		}
		return rows.Err()
	})
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Slot, error) {
	const query = `
		SELECT
			sl.id, sl.resource_id, sl.start_time, sl.end_time, sl.capacity, sl.version,
			count(se.id) FILTER (WHERE se.status = 'available') AS available_count
		FROM public.slots sl
		LEFT JOIN public.seats se ON se.slot_id = sl.id
		WHERE sl.id = $1
		GROUP BY sl.id
	`
	var s Slot
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ResourceID, &s.StartTime, &s.EndTime, &s.Capacity, &s.Version, &s.AvailableCount,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get slot failed: %w", err)
	}
	return &s, nil
}

func (r *pgxRepository) ListAvailableSeats(ctx context.Context, slotID, seatType string) ([]*Seat, error) {
	q := r.psql.Select("id", "slot_id", "seat_number", "status", "seat_type", "created_at", "updated_at").
		From("public.seats").
		Where(squirrel.Eq{"slot_id": slotID, "status": SeatAvailable})
	if seatType != "" {
		q = q.Where(squirrel.Eq{"seat_type": seatType})
	}

	query, args, err := q.OrderBy("seat_number").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list seats query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list available seats failed: %w", err)
	}
	defer rows.Close()

	var seats []*Seat
	for rows.Next() {
		var seat Seat
		if err := rows.Scan(
			&seat.ID, &seat.SlotID, &seat.SeatNumber, &seat.Status, &seat.SeatType, &seat.CreatedAt, &seat.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan seat failed: %w", err)
		}
		seats = append(seats, &seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seats failed: %w", err)
	}
	return seats, nil
}

func (r *pgxRepository) ListWithSeats(ctx context.Context, resourceID string, start time.Time, end *time.Time) ([]*SlotWithSeats, error) {
	q := r.psql.Select(
		"sl.id", "sl.resource_id", "sl.start_time", "sl.end_time", "sl.capacity", "sl.version",
		"se.id", "se.seat_number", "se.status", "se.seat_type", "se.created_at", "se.updated_at",
	).
		From("public.slots sl").
		LeftJoin("public.seats se ON se.slot_id = sl.id").
		Where(squirrel.Eq{"sl.resource_id": resourceID}).
		Where(squirrel.GtOrEq{"sl.start_time": start})
	if end != nil {
		q = q.Where(squirrel.LtOrEq{"sl.end_time": *end})
	}

	query, args, err := q.OrderBy("sl.start_time", "sl.id", "se.seat_number").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots with seats failed: %w", err)
	}
	defer rows.Close()

	var result []*SlotWithSeats
	var current *SlotWithSeats
	for rows.Next() {
		var (
			s                        Slot
			seatID, number, seatType *string
			status                   *SeatStatus
			seatCreated, seatUpdated *time.Time
		)
		if err := rows.Scan(
			&s.ID, &s.ResourceID, &s.StartTime, &s.EndTime, &s.Capacity, &s.Version,
			&seatID, &number, &status, &seatType, &seatCreated, &seatUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan slot row failed: %w", err)
		}

		if current == nil || current.ID != s.ID {
			current = &SlotWithSeats{Slot: s}
			result = append(result, current)
		}
		// LEFT JOIN yields one all-NULL seat row for a slot without seats.
		if seatID == nil {
			continue
		}
		current.Seats = append(current.Seats, &Seat{
			ID:         *seatID,
			SlotID:     s.ID,
			SeatNumber: *number,
			Status:     *status,
			SeatType:   *seatType,
			CreatedAt:  *seatCreated,
			UpdatedAt:  *seatUpdated,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots failed: %w", err)
	}
	return result, nil
}
