package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	ListTypes(ctx context.Context) ([]string, error)
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

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	const query = `
		INSERT INTO public.resources (name, type, metadata)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query, res.Name, res.Type, res.Metadata).
		Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	const query = `
		SELECT id, name, type, metadata, created_at
		FROM public.resources
		WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var res Resource
	if err := row.Scan(&res.ID, &res.Name, &res.Type, &res.Metadata, &res.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return &res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	q := r.psql.Select("id", "name", "type", "metadata", "created_at", "count(*) OVER() AS total_count").
		From("public.resources")

	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
	}

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query, args, err := q.OrderBy("created_at DESC", "id").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()

	var result []*Resource
	var total int

	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.Type, &res.Metadata, &res.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate resources failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) ListTypes(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT type
		FROM public.resources
		WHERE type <> ''
		ORDER BY type
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list resource types failed: %w", err)
	}

	types, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan resource types failed: %w", err)
	}
	return types, nil
}
