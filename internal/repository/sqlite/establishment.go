package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
)

const establishmentColumns = `id, name, category, address, contact_info, rating, budget, currency, halal_status, remarks, created, updated`

func (r *SQLiteRepo) CreateEstablishment(ctx context.Context, e *models.Establishment) error {
	if e == nil {
		return fmt.Errorf("establishment is nil")
	}

	ts := now()
	if e.Created == 0 {
		e.Created = ts
	}
	e.Updated = ts

	q := `INSERT INTO establishments (` + establishmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.conn.Exec(ctx, q, e.ID, e.Name, e.Category, e.Address, e.ContactInfo, e.Rating, e.Budget, e.Currency, e.HalalStatus, e.Remarks, e.Created, e.Updated); err != nil {
		return writeErr("create establishment "+e.ID, err)
	}
	return nil
}

func (r *SQLiteRepo) GetEstablishment(ctx context.Context, id string) (*models.Establishment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+establishmentColumns+` FROM establishments WHERE id = ?`, id)
	e, err := scanEstablishment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteRepo) ListEstablishments(ctx context.Context) ([]models.Establishment, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+establishmentColumns+` FROM establishments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	defer rows.Close()

	out := []models.Establishment{}
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateEstablishment(ctx context.Context, e *models.Establishment) error {
	if e == nil {
		return fmt.Errorf("establishment is nil")
	}

	e.Updated = now()
	q := `UPDATE establishments SET name = ?, category = ?, address = ?, contact_info = ?, rating = ?, budget = ?, currency = ?, halal_status = ?, remarks = ?, updated = ? WHERE id = ?`
	res, err := r.conn.Exec(ctx, q, e.Name, e.Category, e.Address, e.ContactInfo, e.Rating, e.Budget, e.Currency, e.HalalStatus, e.Remarks, e.Updated, e.ID)
	if err != nil {
		return writeErr("update establishment "+e.ID, err)
	}
	return affected(res)
}

// DeleteEstablishment removes the establishment and its assignment together.
func (r *SQLiteRepo) DeleteEstablishment(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM establishments WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete establishment %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return repository.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE establishment_id = ?`, id); err != nil {
			return fmt.Errorf("delete assignments of %s: %w", id, err)
		}
		return nil
	})
}

func scanEstablishment(s scanner) (*models.Establishment, error) {
	var e models.Establishment
	if err := s.Scan(&e.ID, &e.Name, &e.Category, &e.Address, &e.ContactInfo, &e.Rating, &e.Budget, &e.Currency, &e.HalalStatus, &e.Remarks, &e.Created, &e.Updated); err != nil {
		return nil, err
	}
	return &e, nil
}
