package matching_test

import (
	"context"
	"testing"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/stretchr/testify/require"
)

func TestList_Filters(t *testing.T) {
	f, a := matched(t)
	ctx := context.Background()
	f.establishment(t, "E2", "Italian")
	b, err := f.engine.Create(ctx, matching.CreateRequest{EstablishmentID: "E2"})
	require.NoError(t, err)

	all, err := f.engine.List(ctx, matching.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	byEst, err := f.engine.List(ctx, matching.Filter{EstablishmentID: "E2"})
	require.NoError(t, err)
	require.Len(t, byEst, 1)
	require.Equal(t, b.ID, byEst[0].ID)

	// V3 is the only evaluator covering both categories.
	byEval, err := f.engine.List(ctx, matching.Filter{EvaluatorID: "V3"})
	require.NoError(t, err)
	require.Len(t, byEval, 1)
	require.Equal(t, b.ID, byEval[0].ID)

	byID, err := f.engine.List(ctx, matching.Filter{ID: a.ID, EvaluatorID: "V3"})
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Empty(t, byID)

	none, err := f.engine.List(ctx, matching.Filter{EstablishmentID: "E9"})
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestList_WithDetails(t *testing.T) {
	f, a := matched(t)

	list, err := f.engine.List(context.Background(), matching.Filter{WithDetails: true})

	require.NoError(t, err)
	require.Len(t, list, 1)
	d := list[0].Details
	require.NotNil(t, d)
	require.Equal(t, a.EstablishmentID, d.Establishment.ID)
	require.Equal(t, "V1", d.Evaluators[0].ID)
	require.Equal(t, "V2", d.Evaluators[1].ID)
}

func TestGet(t *testing.T) {
	f, a := matched(t)
	ctx := context.Background()

	got, err := f.engine.Get(ctx, a.ID, false)
	require.NoError(t, err)
	require.Nil(t, got.Details)
	require.Equal(t, a.Slots, got.Slots)

	got, err = f.engine.Get(ctx, a.ID, true)
	require.NoError(t, err)
	require.NotNil(t, got.Details)

	_, err = f.engine.Get(ctx, "ASSIGN42", false)
	require.ErrorIs(t, err, matching.ErrNotFound)
}

func TestGet_DanglingReferenceLeavesDetailNil(t *testing.T) {
	f, a := matched(t)
	ctx := context.Background()
	require.NoError(t, f.store.DeleteEvaluator(ctx, "V2"))

	got, err := f.engine.Get(ctx, a.ID, true)

	require.NoError(t, err)
	require.NotNil(t, got.Details.Evaluators[0])
	require.Nil(t, got.Details.Evaluators[1])
}

func TestDelete(t *testing.T) {
	f, a := matched(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Delete(ctx, a.ID))
	require.ErrorIs(t, f.engine.Delete(ctx, a.ID), matching.ErrNotFound)
	require.ErrorIs(t, f.engine.Delete(ctx, " "), matching.ErrValidation)
}

func TestDeleteEvaluator(t *testing.T) {
	f, a := matched(t)
	ctx := context.Background()

	err := f.engine.DeleteEvaluator(ctx, "V1")
	require.ErrorIs(t, err, matching.ErrConflict)
	require.Contains(t, err.Error(), a.ID)

	require.NoError(t, f.engine.DeleteEvaluator(ctx, "V4"))
	require.ErrorIs(t, f.engine.DeleteEvaluator(ctx, "V4"), matching.ErrNotFound)
}
