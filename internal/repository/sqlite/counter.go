package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Next increments the named counter and returns the new value inside one
// transaction. A missing counter row starts at 1. The error from a failed
// commit is returned as is; callers treat it as fatal.
func (r *SQLiteRepo) Next(ctx context.Context, name string) (int64, error) {
	var v int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		q := `INSERT INTO counters (name, value) VALUES (?, 1)
			ON CONFLICT(name) DO UPDATE SET value = value + 1
			RETURNING value`
		if err := tx.QueryRowContext(ctx, q, name).Scan(&v); err != nil {
			return fmt.Errorf("increment counter %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return v, nil
}

// AdvanceTo raises the named counter to value. It never lowers it.
func (r *SQLiteRepo) AdvanceTo(ctx context.Context, name string, value int64) error {
	q := `INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)`
	if _, err := r.conn.Exec(ctx, q, name, value); err != nil {
		return fmt.Errorf("advance counter %s: %w", name, err)
	}
	return nil
}

// Current returns the value of the named counter without changing it.
func (r *SQLiteRepo) Current(ctx context.Context, name string) (int64, error) {
	var v int64
	err := r.conn.QueryRow(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}
