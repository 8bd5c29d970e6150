package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/garnizeh/evalassign/pkg/models"
)

// CheckEvaluatorChange rejects an evaluator edit that would drop a specialty
// still needed by an assignment the evaluator sits on.
func (e *Engine) CheckEvaluatorChange(ctx context.Context, ev *models.Evaluator) error {
	refs, err := e.assignments.ListAssignmentsByEvaluator(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("list assignments for evaluator %s: %w", ev.ID, err)
	}

	var broken []string
	for _, a := range refs {
		est, err := e.establishments.GetEstablishment(ctx, a.EstablishmentID)
		if err != nil {
			return fmt.Errorf("get establishment %s: %w", a.EstablishmentID, err)
		}
		if est != nil && !ev.HasSpecialty(est.Category) {
			broken = append(broken, a.ID)
		}
	}
	if len(broken) > 0 {
		return conflictErr("evaluator", ev.ID, "specialties no longer cover assignments %s", strings.Join(broken, ", "))
	}
	return nil
}

// CheckCategoryChange rejects a new category for est when an evaluator
// already assigned to it does not cover that category.
func (e *Engine) CheckCategoryChange(ctx context.Context, est *models.Establishment) error {
	refs, err := e.assignments.ListAssignmentsByEstablishment(ctx, est.ID)
	if err != nil {
		return fmt.Errorf("list assignments for establishment %s: %w", est.ID, err)
	}

	for _, a := range refs {
		for _, id := range a.EvaluatorIDs() {
			ev, err := e.evaluators.GetEvaluator(ctx, id)
			if err != nil {
				return fmt.Errorf("get evaluator %s: %w", id, err)
			}
			if ev != nil && !ev.HasSpecialty(est.Category) {
				return conflictErr("establishment", est.ID, "assigned evaluator %s does not cover category %q", id, est.Category)
			}
		}
	}
	return nil
}
