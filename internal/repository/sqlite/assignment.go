package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/evalassign/pkg/models"
)

const assignmentColumns = `id, establishment_id,
	slot1_evaluator_id, slot1_status, slot1_unique_id, slot1_assigned_at, slot1_receipt, slot1_amount_spent,
	slot2_evaluator_id, slot2_status, slot2_unique_id, slot2_assigned_at, slot2_receipt, slot2_amount_spent,
	notes, completed_at, created, updated`

func (r *SQLiteRepo) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}

	ts := now()
	if a.Created == 0 {
		a.Created = ts
	}
	if a.Updated == 0 {
		a.Updated = ts
	}

	args := []any{a.ID, a.EstablishmentID}
	args = append(args, slotArgs(a.Slots[0])...)
	args = append(args, slotArgs(a.Slots[1])...)
	args = append(args, a.Notes, nullMillis(a.CompletedAt), a.Created, a.Updated)

	q := `INSERT INTO assignments (` + assignmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.conn.Exec(ctx, q, args...); err != nil {
		return writeErr("create assignment "+a.ID, err)
	}
	return nil
}

func (r *SQLiteRepo) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *SQLiteRepo) ListAssignments(ctx context.Context) ([]models.Assignment, error) {
	return r.listAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments ORDER BY id`)
}

func (r *SQLiteRepo) ListAssignmentsByEstablishment(ctx context.Context, establishmentID string) ([]models.Assignment, error) {
	return r.listAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE establishment_id = ? ORDER BY id`, establishmentID)
}

func (r *SQLiteRepo) ListAssignmentsByEvaluator(ctx context.Context, evaluatorID string) ([]models.Assignment, error) {
	if evaluatorID == "" {
		return []models.Assignment{}, nil
	}
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE slot1_evaluator_id = ? OR slot2_evaluator_id = ? ORDER BY id`
	return r.listAssignments(ctx, q, evaluatorID, evaluatorID)
}

func (r *SQLiteRepo) listAssignments(ctx context.Context, q string, args ...any) ([]models.Assignment, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := []models.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAssignment rewrites slots, notes and completion. The establishment
// of an assignment never changes.
func (r *SQLiteRepo) UpdateAssignment(ctx context.Context, a *models.Assignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}
	if a.Updated == 0 {
		a.Updated = now()
	}

	q := `UPDATE assignments SET
		slot1_evaluator_id = ?, slot1_status = ?, slot1_unique_id = ?, slot1_assigned_at = ?, slot1_receipt = ?, slot1_amount_spent = ?,
		slot2_evaluator_id = ?, slot2_status = ?, slot2_unique_id = ?, slot2_assigned_at = ?, slot2_receipt = ?, slot2_amount_spent = ?,
		notes = ?, completed_at = ?, updated = ?
		WHERE id = ?`
	args := slotArgs(a.Slots[0])
	args = append(args, slotArgs(a.Slots[1])...)
	args = append(args, a.Notes, nullMillis(a.CompletedAt), a.Updated, a.ID)

	res, err := r.conn.Exec(ctx, q, args...)
	if err != nil {
		return writeErr("update assignment "+a.ID, err)
	}
	return affected(res)
}

func (r *SQLiteRepo) DeleteAssignment(ctx context.Context, id string) error {
	res, err := r.conn.Exec(ctx, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment %s: %w", id, err)
	}
	return affected(res)
}

func slotArgs(s models.Slot) []any {
	var amount any
	if s.AmountSpent != nil {
		amount = *s.AmountSpent
	}
	return []any{s.EvaluatorID, string(s.Status), s.EvaluatorUniqueID, nullMillis(s.AssignedAt), s.Receipt, amount}
}

type slotColumns struct {
	evaluatorID string
	status      string
	uniqueID    string
	assignedAt  sql.NullInt64
	receipt     string
	amount      sql.NullFloat64
}

func (c *slotColumns) dest() []any {
	return []any{&c.evaluatorID, &c.status, &c.uniqueID, &c.assignedAt, &c.receipt, &c.amount}
}

func (c *slotColumns) slot() models.Slot {
	s := models.Slot{
		EvaluatorID:       c.evaluatorID,
		Status:            models.SlotStatus(c.status),
		EvaluatorUniqueID: c.uniqueID,
		AssignedAt:        fromMillis(c.assignedAt),
		Receipt:           c.receipt,
	}
	if c.amount.Valid {
		v := c.amount.Float64
		s.AmountSpent = &v
	}
	return s
}

func scanAssignment(s scanner) (*models.Assignment, error) {
	var (
		a         models.Assignment
		s1, s2    slotColumns
		completed sql.NullInt64
	)
	dest := []any{&a.ID, &a.EstablishmentID}
	dest = append(dest, s1.dest()...)
	dest = append(dest, s2.dest()...)
	dest = append(dest, &a.Notes, &completed, &a.Created, &a.Updated)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	a.Slots[0] = s1.slot()
	a.Slots[1] = s2.slot()
	a.CompletedAt = fromMillis(completed)
	return &a, nil
}
