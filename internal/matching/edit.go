package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
)

// Outcome of an Update call.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeCreated Outcome = "created"
	OutcomeRemoved Outcome = "removed"
)

// SlotUpdate changes one slot. Nil fields are left alone; an EvaluatorID
// pointing at "" clears the slot.
type SlotUpdate struct {
	EvaluatorID *string
	Status      *models.SlotStatus
	Receipt     *string
	AmountSpent *float64
}

func (u SlotUpdate) touchesFields() bool {
	return u.Status != nil || u.Receipt != nil || u.AmountSpent != nil
}

// UpdateRequest edits an assignment found by ID or, failing that, by
// establishment. When neither resolves and an evaluator is supplied, a new
// assignment is created for EstablishmentID.
type UpdateRequest struct {
	ID              string
	EstablishmentID string
	Slots           [models.SlotCount]SlotUpdate
	Notes           *string
}

type UpdateResult struct {
	Outcome    Outcome            `json:"outcome"`
	Assignment *models.Assignment `json:"assignment,omitempty"`
}

func (e *Engine) Update(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.EstablishmentID = strings.TrimSpace(req.EstablishmentID)
	for i := range req.Slots {
		if p := req.Slots[i].EvaluatorID; p != nil {
			id := strings.TrimSpace(*p)
			req.Slots[i].EvaluatorID = &id
		}
		if st := req.Slots[i].Status; st != nil && !st.Valid() {
			return nil, validationErr("assignment", req.ID, "slot %d: unknown status %q", i+1, *st)
		}
		if amt := req.Slots[i].AmountSpent; amt != nil && *amt < 0 {
			return nil, validationErr("assignment", req.ID, "slot %d: amountSpent must not be negative", i+1)
		}
	}

	res, err := e.update(ctx, req)
	if err != nil {
		e.metrics.MatchFailed(Kind(err))
		e.logger.Warn("assignment update failed",
			slog.String("id", req.ID),
			slog.String("establishment_id", req.EstablishmentID),
			slog.Any("err", err),
		)
		return nil, err
	}

	e.metrics.AssignmentEdited(string(res.Outcome))
	attrs := []any{slog.String("outcome", string(res.Outcome))}
	if res.Assignment != nil {
		attrs = append(attrs, slog.String("id", res.Assignment.ID), slog.String("establishment_id", res.Assignment.EstablishmentID))
	}
	e.logger.Info("assignment edited", attrs...)
	return res, nil
}

func (e *Engine) update(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if req.ID == "" && req.EstablishmentID == "" {
		return nil, validationErr("assignment", "", "id or establishmentId is required")
	}

	current, err := e.resolve(ctx, req.ID, req.EstablishmentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		if req.EstablishmentID == "" {
			return nil, notFoundErr("assignment", req.ID)
		}
		return e.upsert(ctx, req)
	}
	if req.EstablishmentID != "" && req.EstablishmentID != current.EstablishmentID {
		return nil, validationErr("assignment", current.ID, "establishmentId is immutable; delete and recreate to move it")
	}

	est, err := e.establishments.GetEstablishment(ctx, current.EstablishmentID)
	if err != nil {
		return nil, fmt.Errorf("get establishment %s: %w", current.EstablishmentID, err)
	}
	if est == nil {
		return nil, notFoundErr("establishment", current.EstablishmentID)
	}

	// Resulting occupants after the requested evaluator changes.
	var occupants [models.SlotCount]string
	var changed [models.SlotCount]bool
	for i, s := range current.Slots {
		occupants[i] = s.EvaluatorID
		if p := req.Slots[i].EvaluatorID; p != nil && *p != s.EvaluatorID {
			occupants[i] = *p
			changed[i] = true
		}
	}

	if err := e.validateOccupants(ctx, est, req, occupants, changed); err != nil {
		return nil, err
	}

	if occupants[0] == "" && occupants[1] == "" {
		if err := e.assignments.DeleteAssignment(ctx, current.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("delete assignment %s: %w", current.ID, err)
		}
		return &UpdateResult{Outcome: OutcomeRemoved, Assignment: &models.Assignment{ID: current.ID, EstablishmentID: current.EstablishmentID}}, nil
	}

	next := *current
	now := e.now()
	for i := range next.Slots {
		if !changed[i] {
			continue
		}
		if occupants[i] == "" {
			next.Slots[i] = models.Slot{}
			continue
		}
		next.Slots[i] = e.occupy(occupants[i], now)
	}

	completedSet, err := applySlotFields(&next, req)
	if err != nil {
		return nil, err
	}
	e.settleCompletion(&next, completedSet, changed[0] || changed[1], now)
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	next.Updated = now.UnixMilli()
	next.Details = nil

	if err := e.assignments.UpdateAssignment(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr("assignment", next.ID)
		}
		return nil, fmt.Errorf("update assignment %s: %w", next.ID, err)
	}

	return &UpdateResult{Outcome: OutcomeUpdated, Assignment: &next}, nil
}

// resolve finds the assignment by ID first, then by establishment.
func (e *Engine) resolve(ctx context.Context, id, establishmentID string) (*models.Assignment, error) {
	if id != "" {
		a, err := e.assignments.GetAssignment(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get assignment %s: %w", id, err)
		}
		if a != nil {
			return a, nil
		}
	}
	if establishmentID == "" {
		return nil, nil
	}
	list, err := e.assignments.ListAssignmentsByEstablishment(ctx, establishmentID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for %s: %w", establishmentID, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// validateOccupants re-checks every non-empty supplied evaluator against the
// establishment's category. Any failure rejects the whole edit.
func (e *Engine) validateOccupants(
	ctx context.Context,
	est *models.Establishment,
	req UpdateRequest,
	occupants [models.SlotCount]string,
	changed [models.SlotCount]bool,
) error {
	if occupants[0] != "" && occupants[0] == occupants[1] {
		return conflictErr("evaluator", occupants[0], "cannot occupy both slots of one assignment")
	}

	supplied := false
	for _, u := range req.Slots {
		if u.EvaluatorID != nil && *u.EvaluatorID != "" {
			supplied = true
		}
	}
	if !supplied {
		return nil
	}

	evaluators, err := e.evaluators.ListEvaluators(ctx)
	if err != nil {
		return fmt.Errorf("list evaluators: %w", err)
	}
	all, err := e.assignments.ListAssignments(ctx)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	// The assignment being edited does not count against its own occupants.
	l := computeLoads(all, est.ID)
	byID := indexEvaluators(evaluators)

	for i, u := range req.Slots {
		if u.EvaluatorID == nil || *u.EvaluatorID == "" {
			continue
		}
		if _, err := e.checkEvaluator(byID, *u.EvaluatorID, est, l, changed[i]); err != nil {
			return err
		}
	}
	return nil
}

// applySlotFields applies status, receipt and amount changes. It reports
// whether any slot was set to completed.
func applySlotFields(a *models.Assignment, req UpdateRequest) (bool, error) {
	completedSet := false
	for i, u := range req.Slots {
		if !u.touchesFields() {
			continue
		}
		slot := &a.Slots[i]
		if !slot.Occupied() {
			return false, validationErr("assignment", a.ID, "slot %d is empty", i+1)
		}
		if u.Status != nil {
			slot.Status = *u.Status
			if *u.Status == models.StatusCompleted {
				completedSet = true
			}
		}
		if u.Receipt != nil {
			slot.Receipt = *u.Receipt
		}
		if u.AmountSpent != nil {
			amt := *u.AmountSpent
			slot.AmountSpent = &amt
		}
	}
	return completedSet, nil
}

// settleCompletion stamps completedAt when a slot was just completed and
// every occupied slot is completed. A reassignment that leaves the
// assignment incomplete clears it.
func (e *Engine) settleCompletion(a *models.Assignment, completedSet, reassigned bool, now time.Time) {
	done := a.AllOccupiedCompleted()
	switch {
	case completedSet && done:
		if a.CompletedAt == nil {
			t := now
			a.CompletedAt = &t
		}
	case reassigned && !done:
		a.CompletedAt = nil
	}
}

// upsert creates an assignment from an edit that targets an establishment
// without one. Only the supplied evaluators are placed; nothing is picked
// automatically.
func (e *Engine) upsert(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	var occupants [models.SlotCount]string
	var changed [models.SlotCount]bool
	for i, u := range req.Slots {
		if u.EvaluatorID != nil && *u.EvaluatorID != "" {
			occupants[i] = *u.EvaluatorID
			changed[i] = true
		}
	}
	if occupants[0] == "" && occupants[1] == "" {
		return nil, notFoundErr("assignment", req.EstablishmentID)
	}

	est, err := e.establishments.GetEstablishment(ctx, req.EstablishmentID)
	if err != nil {
		return nil, fmt.Errorf("get establishment %s: %w", req.EstablishmentID, err)
	}
	if est == nil {
		return nil, notFoundErr("establishment", req.EstablishmentID)
	}

	if err := e.validateOccupants(ctx, est, req, occupants, changed); err != nil {
		return nil, err
	}

	id, err := e.mintAssignmentID(ctx)
	if err != nil {
		return nil, err
	}

	a, err := e.insert(ctx, id, est.ID, occupants, func(a *models.Assignment) error {
		completedSet, err := applySlotFields(a, req)
		if err != nil {
			return err
		}
		e.settleCompletion(a, completedSet, false, e.now())
		if req.Notes != nil {
			a.Notes = *req.Notes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.AssignmentCreated(ModeUpsert)
	return &UpdateResult{Outcome: OutcomeCreated, Assignment: a}, nil
}
