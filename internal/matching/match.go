package matching

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
)

// Match modes, used as metrics labels and in logs.
const (
	ModeAuto   = "auto"
	ModeSlot1  = "slot1"
	ModeManual = "manual"
	ModeUpsert = "upsert"
)

// CreateRequest pairs evaluators with one establishment. Leaving both
// evaluator IDs empty selects both slots automatically; supplying only the
// first picks the second automatically.
type CreateRequest struct {
	EstablishmentID string
	Evaluator1ID    string
	Evaluator2ID    string
	ForceReassign   bool
}

// loads maps evaluator ID to the number of slots it occupies.
type loads map[string]int

func computeLoads(assignments []models.Assignment, skipEstablishment string) loads {
	l := loads{}
	for _, a := range assignments {
		if skipEstablishment != "" && a.EstablishmentID == skipEstablishment {
			continue
		}
		for _, s := range a.Slots {
			if s.Occupied() {
				l[s.EvaluatorID]++
			}
		}
	}
	return l
}

// candidate is a compatible evaluator with its current load.
type candidate struct {
	evaluator *models.Evaluator
	load      int
}

// compatiblePool returns evaluators whose specialties cover category, least
// loaded first. Equal loads are ordered by evaluator ID so selection does not
// depend on store iteration order.
func (e *Engine) compatiblePool(evaluators []models.Evaluator, category string, l loads) []candidate {
	pool := make([]candidate, 0, len(evaluators))
	for i := range evaluators {
		ev := &evaluators[i]
		if !ev.HasSpecialty(category) {
			continue
		}
		if e.atCapacity(ev, l) {
			continue
		}
		pool = append(pool, candidate{evaluator: ev, load: l[ev.ID]})
	}
	slices.SortStableFunc(pool, func(a, b candidate) int {
		if c := cmp.Compare(a.load, b.load); c != 0 {
			return c
		}
		return strings.Compare(a.evaluator.ID, b.evaluator.ID)
	})
	return pool
}

func (e *Engine) atCapacity(ev *models.Evaluator, l loads) bool {
	return e.cfg.EnforceMaxAssignments && ev.MaxAssignments > 0 && l[ev.ID] >= ev.MaxAssignments
}

// checkEvaluator resolves a supplied evaluator and verifies it may take a
// slot on est. Capacity is only checked for newly placed evaluators.
func (e *Engine) checkEvaluator(byID map[string]*models.Evaluator, id string, est *models.Establishment, l loads, placing bool) (*models.Evaluator, error) {
	ev, ok := byID[id]
	if !ok {
		return nil, notFoundErr("evaluator", id)
	}
	if !ev.HasSpecialty(est.Category) {
		return nil, validationErr("evaluator", id, "specialty mismatch: %q is not among specialties %v", est.Category, ev.Specialties)
	}
	if placing && e.atCapacity(ev, l) {
		return nil, validationErr("evaluator", id, "at capacity: %d of %d assignments", l[id], ev.MaxAssignments)
	}
	return ev, nil
}

// selectSlots applies the matching rules and returns the evaluator IDs for
// slot 1 and slot 2 ("" for an empty slot) and the mode that was used.
func (e *Engine) selectSlots(est *models.Establishment, evaluators []models.Evaluator, l loads, ev1, ev2 string) ([models.SlotCount]string, string, error) {
	var out [models.SlotCount]string
	byID := indexEvaluators(evaluators)

	switch {
	case ev1 == "":
		pool := e.compatiblePool(evaluators, est.Category, l)
		if len(pool) == 0 {
			return out, ModeAuto, validationErr("establishment", est.ID, "no compatible evaluators for category %q", est.Category)
		}
		out[0] = pool[0].evaluator.ID
		if len(pool) > 1 {
			out[1] = pool[1].evaluator.ID
		}
		return out, ModeAuto, nil

	case ev2 == "":
		if _, err := e.checkEvaluator(byID, ev1, est, l, true); err != nil {
			return out, ModeSlot1, err
		}
		out[0] = ev1
		for _, c := range e.compatiblePool(evaluators, est.Category, l) {
			if c.evaluator.ID != ev1 {
				out[1] = c.evaluator.ID
				break
			}
		}
		return out, ModeSlot1, nil

	default:
		if ev1 == ev2 {
			return out, ModeManual, conflictErr("evaluator", ev1, "cannot occupy both slots of one assignment")
		}
		for _, id := range []string{ev1, ev2} {
			if _, err := e.checkEvaluator(byID, id, est, l, true); err != nil {
				return out, ModeManual, err
			}
		}
		out[0], out[1] = ev1, ev2
		return out, ModeManual, nil
	}
}

func indexEvaluators(evaluators []models.Evaluator) map[string]*models.Evaluator {
	byID := make(map[string]*models.Evaluator, len(evaluators))
	for i := range evaluators {
		byID[evaluators[i].ID] = &evaluators[i]
	}
	return byID
}

// Create matches evaluators to one establishment and stores the new
// assignment. All checks run before the first write.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*models.Assignment, error) {
	req.EstablishmentID = strings.TrimSpace(req.EstablishmentID)
	req.Evaluator1ID = strings.TrimSpace(req.Evaluator1ID)
	req.Evaluator2ID = strings.TrimSpace(req.Evaluator2ID)
	if req.Evaluator1ID == "" && req.Evaluator2ID != "" {
		req.Evaluator1ID, req.Evaluator2ID = req.Evaluator2ID, ""
	}

	a, mode, err := e.create(ctx, req)
	if err != nil {
		e.metrics.MatchFailed(Kind(err))
		e.logger.Warn("assignment match failed",
			slog.String("establishment_id", req.EstablishmentID),
			slog.String("mode", mode),
			slog.Any("err", err),
		)
		return nil, err
	}

	e.metrics.AssignmentCreated(mode)
	e.logger.Info("assignment created",
		slog.String("id", a.ID),
		slog.String("establishment_id", a.EstablishmentID),
		slog.String("mode", mode),
		slog.Int("occupied_slots", a.OccupiedSlots()),
	)
	return a, nil
}

func (e *Engine) create(ctx context.Context, req CreateRequest) (*models.Assignment, string, error) {
	mode := ModeAuto
	if req.EstablishmentID == "" {
		return nil, mode, validationErr("assignment", "", "establishmentId is required")
	}

	est, err := e.establishments.GetEstablishment(ctx, req.EstablishmentID)
	if err != nil {
		return nil, mode, fmt.Errorf("get establishment %s: %w", req.EstablishmentID, err)
	}
	if est == nil {
		return nil, mode, notFoundErr("establishment", req.EstablishmentID)
	}

	existing, err := e.assignments.ListAssignmentsByEstablishment(ctx, est.ID)
	if err != nil {
		return nil, mode, fmt.Errorf("list assignments for %s: %w", est.ID, err)
	}
	if len(existing) > 0 && !req.ForceReassign {
		return nil, mode, conflictErr("establishment", est.ID, "already assigned as %s", existing[0].ID)
	}

	evaluators, err := e.evaluators.ListEvaluators(ctx)
	if err != nil {
		return nil, mode, fmt.Errorf("list evaluators: %w", err)
	}
	all, err := e.assignments.ListAssignments(ctx)
	if err != nil {
		return nil, mode, fmt.Errorf("list assignments: %w", err)
	}

	// Slots about to be removed by a forced reassignment do not count as load.
	skip := ""
	if req.ForceReassign {
		skip = est.ID
	}
	l := computeLoads(all, skip)

	picked, mode, err := e.selectSlots(est, evaluators, l, req.Evaluator1ID, req.Evaluator2ID)
	if err != nil {
		return nil, mode, err
	}

	// Mint before any delete so a counter abort leaves storage untouched.
	id, err := e.mintAssignmentID(ctx)
	if err != nil {
		return nil, mode, err
	}

	if req.ForceReassign {
		for _, old := range existing {
			if err := e.assignments.DeleteAssignment(ctx, old.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, mode, fmt.Errorf("delete assignment %s: %w", old.ID, err)
			}
			e.logger.Info("assignment removed for reassignment", slog.String("id", old.ID), slog.String("establishment_id", est.ID))
		}
	}

	a, err := e.insert(ctx, id, est.ID, picked, nil)
	if err != nil {
		return nil, mode, err
	}

	a.Details = buildDetails(a, est, indexEvaluators(evaluators))
	return a, mode, nil
}

// insert writes a fresh assignment under a minted id with the given
// occupants. prepare, when set, adjusts the record before the single write
// and may reject it; the minted ID is then simply skipped.
func (e *Engine) insert(ctx context.Context, id, establishmentID string, occupants [models.SlotCount]string, prepare func(*models.Assignment) error) (*models.Assignment, error) {
	now := e.now()
	a := &models.Assignment{
		ID:              id,
		EstablishmentID: establishmentID,
		Created:         now.UnixMilli(),
		Updated:         now.UnixMilli(),
	}
	for i, evID := range occupants {
		if evID != "" {
			a.Slots[i] = e.occupy(evID, now)
		}
	}
	if prepare != nil {
		if err := prepare(a); err != nil {
			return nil, err
		}
	}

	if err := e.assignments.CreateAssignment(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictErr("establishment", establishmentID, "already assigned")
		}
		return nil, fmt.Errorf("create assignment %s: %w", id, err)
	}

	return a, nil
}
