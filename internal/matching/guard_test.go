package matching_test

import (
	"context"
	"testing"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestCheckEvaluatorChange(t *testing.T) {
	f, _ := matched(t)
	ctx := context.Background()

	ev, err := f.store.GetEvaluator(ctx, "V1")
	require.NoError(t, err)

	ev.Specialties = []string{"Bakery", "Sushi"}
	require.NoError(t, f.engine.CheckEvaluatorChange(ctx, ev))

	ev.Specialties = []string{"Sushi"}
	err = f.engine.CheckEvaluatorChange(ctx, ev)
	require.ErrorIs(t, err, matching.ErrConflict)

	// V4 sits on nothing, so any specialty set is fine.
	free, err := f.store.GetEvaluator(ctx, "V4")
	require.NoError(t, err)
	free.Specialties = nil
	require.NoError(t, f.engine.CheckEvaluatorChange(ctx, free))
}

func TestCheckCategoryChange(t *testing.T) {
	f, _ := matched(t)
	ctx := context.Background()

	est := &models.Establishment{ID: "E1", Category: "Italian"}
	require.ErrorIs(t, f.engine.CheckCategoryChange(ctx, est), matching.ErrConflict)

	est.Category = "Bakery"
	require.NoError(t, f.engine.CheckCategoryChange(ctx, est))

	f.establishment(t, "E2", "Peruvian")
	require.NoError(t, f.engine.CheckCategoryChange(ctx, &models.Establishment{ID: "E2", Category: "Thai"}))
}
