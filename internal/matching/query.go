package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
)

// Filter narrows List. Empty fields match everything.
type Filter struct {
	ID              string
	EstablishmentID string
	EvaluatorID     string
	WithDetails     bool
}

func (e *Engine) List(ctx context.Context, f Filter) ([]models.Assignment, error) {
	var (
		out []models.Assignment
		err error
	)
	switch {
	case f.ID != "":
		a, gerr := e.assignments.GetAssignment(ctx, f.ID)
		if gerr != nil {
			return nil, fmt.Errorf("get assignment %s: %w", f.ID, gerr)
		}
		if a != nil {
			out = []models.Assignment{*a}
		}
	case f.EstablishmentID != "":
		out, err = e.assignments.ListAssignmentsByEstablishment(ctx, f.EstablishmentID)
	case f.EvaluatorID != "":
		out, err = e.assignments.ListAssignmentsByEvaluator(ctx, f.EvaluatorID)
	default:
		out, err = e.assignments.ListAssignments(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	// Remaining filters apply on top of whichever index was used.
	filtered := out[:0]
	for _, a := range out {
		if f.EstablishmentID != "" && a.EstablishmentID != f.EstablishmentID {
			continue
		}
		if f.EvaluatorID != "" && !a.HasEvaluator(f.EvaluatorID) {
			continue
		}
		filtered = append(filtered, a)
	}
	if filtered == nil {
		filtered = []models.Assignment{}
	}

	if f.WithDetails {
		if err := e.attachDetails(ctx, filtered); err != nil {
			return nil, err
		}
	}
	return filtered, nil
}

func (e *Engine) Get(ctx context.Context, id string, withDetails bool) (*models.Assignment, error) {
	id = strings.TrimSpace(id)
	a, err := e.assignments.GetAssignment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	if a == nil {
		return nil, notFoundErr("assignment", id)
	}
	if withDetails {
		one := []models.Assignment{*a}
		if err := e.attachDetails(ctx, one); err != nil {
			return nil, err
		}
		a = &one[0]
	}
	return a, nil
}

// attachDetails joins establishment and evaluator records onto each
// assignment. A dangling reference is left nil rather than failing the read.
func (e *Engine) attachDetails(ctx context.Context, list []models.Assignment) error {
	if len(list) == 0 {
		return nil
	}
	evaluators, err := e.evaluators.ListEvaluators(ctx)
	if err != nil {
		return fmt.Errorf("list evaluators: %w", err)
	}
	establishments, err := e.establishments.ListEstablishments(ctx)
	if err != nil {
		return fmt.Errorf("list establishments: %w", err)
	}
	estByID := make(map[string]*models.Establishment, len(establishments))
	for i := range establishments {
		estByID[establishments[i].ID] = &establishments[i]
	}
	evByID := indexEvaluators(evaluators)

	for i := range list {
		list[i].Details = buildDetails(&list[i], estByID[list[i].EstablishmentID], evByID)
	}
	return nil
}

func buildDetails(a *models.Assignment, est *models.Establishment, evByID map[string]*models.Evaluator) *models.AssignmentDetails {
	d := &models.AssignmentDetails{Establishment: est}
	for i, s := range a.Slots {
		if s.Occupied() {
			d.Evaluators[i] = evByID[s.EvaluatorID]
		}
	}
	return d
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationErr("assignment", "", "id is required")
	}
	if err := e.assignments.DeleteAssignment(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundErr("assignment", id)
		}
		return fmt.Errorf("delete assignment %s: %w", id, err)
	}
	e.logger.Info("assignment deleted", slog.String("id", id))
	return nil
}

// DeleteEvaluator removes an evaluator that occupies no slot. A referenced
// evaluator is rejected so slots never point at a missing record.
func (e *Engine) DeleteEvaluator(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationErr("evaluator", "", "id is required")
	}
	ev, err := e.evaluators.GetEvaluator(ctx, id)
	if err != nil {
		return fmt.Errorf("get evaluator %s: %w", id, err)
	}
	if ev == nil {
		return notFoundErr("evaluator", id)
	}

	refs, err := e.assignments.ListAssignmentsByEvaluator(ctx, id)
	if err != nil {
		return fmt.Errorf("list assignments for evaluator %s: %w", id, err)
	}
	if len(refs) > 0 {
		ids := make([]string, 0, len(refs))
		for _, a := range refs {
			ids = append(ids, a.ID)
		}
		return conflictErr("evaluator", id, "referenced by assignments %s; reassign or remove them first", strings.Join(ids, ", "))
	}

	if err := e.evaluators.DeleteEvaluator(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundErr("evaluator", id)
		}
		return fmt.Errorf("delete evaluator %s: %w", id, err)
	}
	e.logger.Info("evaluator deleted", slog.String("id", id))
	return nil
}
