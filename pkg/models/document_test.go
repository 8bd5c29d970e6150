package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestDecodeAssignmentDocument(t *testing.T) {
	t.Run("nested evaluators shape", func(t *testing.T) {
		raw := `{
			"establishmentId": "EST01",
			"evaluators": {
				"evaluator1": {"evaluatorId": "EVAL01", "status": "completed", "evaluatorUniqueID": "tok-1", "assignedAt": "2024-03-01T10:00:00Z", "receipt": "r.jpg", "amountSpent": 42.5},
				"evaluator2": {"evaluatorId": "EVAL02", "status": "pending"}
			},
			"notes": "lunch only"
		}`

		a, err := models.DecodeAssignmentDocument("ASSIGN03", []byte(raw))

		require.NoError(t, err)
		require.Equal(t, "ASSIGN03", a.ID)
		require.Equal(t, "EST01", a.EstablishmentID)
		require.Equal(t, "EVAL01", a.Slots[0].EvaluatorID)
		require.Equal(t, models.StatusCompleted, a.Slots[0].Status)
		require.Equal(t, "tok-1", a.Slots[0].EvaluatorUniqueID)
		require.NotNil(t, a.Slots[0].AmountSpent)
		require.InDelta(t, 42.5, *a.Slots[0].AmountSpent, 0.001)
		require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *a.Slots[0].AssignedAt)
		require.Equal(t, "EVAL02", a.Slots[1].EvaluatorID)
		require.Equal(t, "lunch only", a.Notes)
	})

	t.Run("legacy flat shape", func(t *testing.T) {
		raw := `{"establishmentId": "EST02", "evaluator1Id": "EVAL05", "evaluator1Status": "Submitted", "assignedAt": 1700000000000}`

		a, err := models.DecodeAssignmentDocument("ASSIGN04", []byte(raw))

		require.NoError(t, err)
		require.Equal(t, "EVAL05", a.Slots[0].EvaluatorID)
		require.Equal(t, models.StatusSubmitted, a.Slots[0].Status)
		require.NotNil(t, a.Slots[0].AssignedAt)
		require.Equal(t, int64(1700000000000), a.Slots[0].AssignedAt.UnixMilli())
		require.False(t, a.Slots[1].Occupied())
	})

	t.Run("missing establishment", func(t *testing.T) {
		_, err := models.DecodeAssignmentDocument("ASSIGN05", []byte(`{"evaluator1Id": "EVAL01"}`))
		require.Error(t, err)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := models.DecodeAssignmentDocument("ASSIGN06", []byte(`{"establishmentId": "EST01", "evaluator1Id": "EVAL01", "evaluator1Status": "lost"}`))
		require.Error(t, err)
	})
}

func TestAssignmentJSON_EmptySlotIsNull(t *testing.T) {
	a := models.Assignment{ID: "ASSIGN01", EstablishmentID: "EST01"}
	a.Slots[0] = models.Slot{EvaluatorID: "EVAL01", Status: models.StatusPending}

	b, err := json.Marshal(a)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Nil(t, m["slot2"])
	slot1, ok := m["slot1"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "EVAL01", slot1["evaluatorId"])

	var back models.Assignment
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, a.Slots, back.Slots)
}

func TestSlotTokenKeyMatchesDocuments(t *testing.T) {
	doc := `{"establishmentId": "EST01", "evaluators": {"evaluator1": {"evaluatorId": "EVAL01", "evaluatorUniqueID": "tok-1"}}}`

	a, err := models.DecodeAssignmentDocument("ASSIGN01", []byte(doc))
	require.NoError(t, err)
	require.Equal(t, "tok-1", a.Slots[0].EvaluatorUniqueID)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	slot1, ok := m["slot1"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "tok-1", slot1["evaluatorUniqueID"])
}

func TestAllOccupiedCompleted(t *testing.T) {
	var a models.Assignment
	require.False(t, a.AllOccupiedCompleted())

	a.Slots[0] = models.Slot{EvaluatorID: "EVAL01", Status: models.StatusCompleted}
	require.True(t, a.AllOccupiedCompleted())

	a.Slots[1] = models.Slot{EvaluatorID: "EVAL02", Status: models.StatusPending}
	require.False(t, a.AllOccupiedCompleted())
}

func TestNormalizeSpecialties(t *testing.T) {
	got := models.NormalizeSpecialties([]string{" Italian", "Bakery", "", "Italian "})
	require.Equal(t, []string{"Bakery", "Italian"}, got)
}
