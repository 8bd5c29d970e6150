package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/evalassign/pkg/models"
)

const evaluatorColumns = `id, name, email, phone, city, company, position, specialties, max_assignments, nda_status, created, updated`

func (r *SQLiteRepo) CreateEvaluator(ctx context.Context, e *models.Evaluator) error {
	if e == nil {
		return fmt.Errorf("evaluator is nil")
	}

	specialties, err := json.Marshal(models.NormalizeSpecialties(e.Specialties))
	if err != nil {
		return fmt.Errorf("encode specialties: %w", err)
	}
	if e.NDAStatus == "" {
		e.NDAStatus = models.NDANotSent
	}
	ts := now()
	if e.Created == 0 {
		e.Created = ts
	}
	e.Updated = ts

	q := `INSERT INTO evaluators (` + evaluatorColumns + `) VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.conn.Exec(ctx, q, e.ID, e.Name, e.Email, e.Phone, e.City, e.Company, e.Position, string(specialties), e.MaxAssignments, string(e.NDAStatus), e.Created, e.Updated); err != nil {
		return writeErr("create evaluator "+e.ID, err)
	}
	return nil
}

func (r *SQLiteRepo) GetEvaluator(ctx context.Context, id string) (*models.Evaluator, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+evaluatorColumns+` FROM evaluators WHERE id = ?`, id)
	e, err := scanEvaluator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteRepo) GetEvaluatorByEmail(ctx context.Context, email string) (*models.Evaluator, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+evaluatorColumns+` FROM evaluators WHERE email = ?`, email)
	e, err := scanEvaluator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteRepo) ListEvaluators(ctx context.Context) ([]models.Evaluator, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+evaluatorColumns+` FROM evaluators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list evaluators: %w", err)
	}
	defer rows.Close()

	out := []models.Evaluator{}
	for rows.Next() {
		e, err := scanEvaluator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateEvaluator(ctx context.Context, e *models.Evaluator) error {
	if e == nil {
		return fmt.Errorf("evaluator is nil")
	}

	specialties, err := json.Marshal(models.NormalizeSpecialties(e.Specialties))
	if err != nil {
		return fmt.Errorf("encode specialties: %w", err)
	}
	e.Updated = now()

	q := `UPDATE evaluators SET name = ?, email = NULLIF(?, ''), phone = ?, city = ?, company = ?, position = ?, specialties = ?, max_assignments = ?, nda_status = ?, updated = ? WHERE id = ?`
	res, err := r.conn.Exec(ctx, q, e.Name, e.Email, e.Phone, e.City, e.Company, e.Position, string(specialties), e.MaxAssignments, string(e.NDAStatus), e.Updated, e.ID)
	if err != nil {
		return writeErr("update evaluator "+e.ID, err)
	}
	return affected(res)
}

func (r *SQLiteRepo) DeleteEvaluator(ctx context.Context, id string) error {
	res, err := r.conn.Exec(ctx, `DELETE FROM evaluators WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete evaluator %s: %w", id, err)
	}
	return affected(res)
}

func scanEvaluator(s scanner) (*models.Evaluator, error) {
	var (
		e           models.Evaluator
		email       sql.NullString
		specialties string
		nda         string
	)
	if err := s.Scan(&e.ID, &e.Name, &email, &e.Phone, &e.City, &e.Company, &e.Position, &specialties, &e.MaxAssignments, &nda, &e.Created, &e.Updated); err != nil {
		return nil, err
	}
	e.Email = email.String
	e.NDAStatus = models.NDAStatus(nda)
	if err := json.Unmarshal([]byte(specialties), &e.Specialties); err != nil {
		return nil, fmt.Errorf("decode specialties for %s: %w", e.ID, err)
	}
	if e.Specialties == nil {
		e.Specialties = []string{}
	}
	return &e, nil
}
