package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. *pgxpool.Pool implements it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxOptions tunes a single transaction.
type TxOptions struct {
	// LockTimeout bounds every lock wait inside the transaction (SET LOCAL lock_timeout).
	// Zero keeps the server default.
	LockTimeout time.Duration
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, so partial writes are never visible.
func WithTx(ctx context.Context, b Beginner, opts TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if opts.LockTimeout > 0 {
		// SET does not accept bind parameters; set_config(..., true) is the transaction-local equivalent.
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", lockTimeoutValue(opts.LockTimeout)); err != nil {
			return fmt.Errorf("set lock_timeout failed: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	committed = true
	return nil
}

func lockTimeoutValue(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}
