package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type assignmentJSON struct {
	ID              string             `json:"id"`
	EstablishmentID string             `json:"establishmentId"`
	Slot1           *Slot              `json:"slot1"`
	Slot2           *Slot              `json:"slot2"`
	Notes           string             `json:"notes,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	Created         int64              `json:"created"`
	Updated         int64              `json:"updated"`
	Details         *AssignmentDetails `json:"details,omitempty"`
}

// MarshalJSON renders the two slots as "slot1"/"slot2"; an empty slot is null.
func (a Assignment) MarshalJSON() ([]byte, error) {
	out := assignmentJSON{
		ID:              a.ID,
		EstablishmentID: a.EstablishmentID,
		Notes:           a.Notes,
		CompletedAt:     a.CompletedAt,
		Created:         a.Created,
		Updated:         a.Updated,
		Details:         a.Details,
	}
	if a.Slots[0].Occupied() {
		s := a.Slots[0]
		out.Slot1 = &s
	}
	if a.Slots[1].Occupied() {
		s := a.Slots[1]
		out.Slot2 = &s
	}
	return json.Marshal(out)
}

func (a *Assignment) UnmarshalJSON(b []byte) error {
	var in assignmentJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*a = Assignment{
		ID:              in.ID,
		EstablishmentID: in.EstablishmentID,
		Notes:           in.Notes,
		CompletedAt:     in.CompletedAt,
		Created:         in.Created,
		Updated:         in.Updated,
		Details:         in.Details,
	}
	if in.Slot1 != nil {
		a.Slots[0] = *in.Slot1
	}
	if in.Slot2 != nil {
		a.Slots[1] = *in.Slot2
	}
	return nil
}

type detailsJSON struct {
	Establishment *Establishment `json:"establishment,omitempty"`
	Evaluator1    *Evaluator     `json:"evaluator1,omitempty"`
	Evaluator2    *Evaluator     `json:"evaluator2,omitempty"`
}

func (d AssignmentDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(detailsJSON{
		Establishment: d.Establishment,
		Evaluator1:    d.Evaluators[0],
		Evaluator2:    d.Evaluators[1],
	})
}

func (d *AssignmentDetails) UnmarshalJSON(b []byte) error {
	var in detailsJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d.Establishment = in.Establishment
	d.Evaluators = [SlotCount]*Evaluator{in.Evaluator1, in.Evaluator2}
	return nil
}

// Assignment documents exported from the old document store come in two
// shapes: a nested "evaluators" object keyed evaluator1/evaluator2, and the
// older flat evaluator1Id/evaluator2Id fields. Both are folded into the
// two-slot record here so nothing past the import boundary has to care.
type slotDocument struct {
	EvaluatorID       string          `json:"evaluatorId"`
	Status            string          `json:"status"`
	EvaluatorUniqueID string          `json:"evaluatorUniqueID"`
	AssignedAt        json.RawMessage `json:"assignedAt"`
	Receipt           string          `json:"receipt"`
	AmountSpent       *float64        `json:"amountSpent"`
}

type assignmentDocument struct {
	EstablishmentID string                  `json:"establishmentId"`
	Evaluators      map[string]slotDocument `json:"evaluators"`
	Notes           string                  `json:"notes"`
	CompletedAt     json.RawMessage         `json:"completedAt"`
	AssignedAt      json.RawMessage         `json:"assignedAt"`

	Evaluator1ID          string          `json:"evaluator1Id"`
	Evaluator2ID          string          `json:"evaluator2Id"`
	Evaluator1Status      string          `json:"evaluator1Status"`
	Evaluator2Status      string          `json:"evaluator2Status"`
	Evaluator1UniqueID    string          `json:"evaluator1UniqueID"`
	Evaluator2UniqueID    string          `json:"evaluator2UniqueID"`
	Evaluator1AssignedAt  json.RawMessage `json:"evaluator1AssignedAt"`
	Evaluator2AssignedAt  json.RawMessage `json:"evaluator2AssignedAt"`
	Evaluator1Receipt     string          `json:"evaluator1Receipt"`
	Evaluator2Receipt     string          `json:"evaluator2Receipt"`
	Evaluator1AmountSpent *float64        `json:"evaluator1AmountSpent"`
	Evaluator2AmountSpent *float64        `json:"evaluator2AmountSpent"`
}

var slotKeys = [SlotCount]string{"evaluator1", "evaluator2"}

// DecodeAssignmentDocument converts an exported assignment document into the
// two-slot Assignment record.
func DecodeAssignmentDocument(id string, raw []byte) (*Assignment, error) {
	var doc assignmentDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode assignment %s: %w", id, err)
	}
	if strings.TrimSpace(doc.EstablishmentID) == "" {
		return nil, fmt.Errorf("decode assignment %s: missing establishmentId", id)
	}

	a := &Assignment{ID: id, EstablishmentID: doc.EstablishmentID, Notes: doc.Notes}
	fallback, err := parseTimestamp(doc.AssignedAt)
	if err != nil {
		return nil, fmt.Errorf("decode assignment %s: assignedAt: %w", id, err)
	}

	var slots [SlotCount]slotDocument
	if len(doc.Evaluators) > 0 {
		for i, key := range slotKeys {
			slots[i] = doc.Evaluators[key]
		}
	} else {
		slots[0] = slotDocument{
			EvaluatorID:       doc.Evaluator1ID,
			Status:            doc.Evaluator1Status,
			EvaluatorUniqueID: doc.Evaluator1UniqueID,
			AssignedAt:        doc.Evaluator1AssignedAt,
			Receipt:           doc.Evaluator1Receipt,
			AmountSpent:       doc.Evaluator1AmountSpent,
		}
		slots[1] = slotDocument{
			EvaluatorID:       doc.Evaluator2ID,
			Status:            doc.Evaluator2Status,
			EvaluatorUniqueID: doc.Evaluator2UniqueID,
			AssignedAt:        doc.Evaluator2AssignedAt,
			Receipt:           doc.Evaluator2Receipt,
			AmountSpent:       doc.Evaluator2AmountSpent,
		}
	}

	for i, sd := range slots {
		if strings.TrimSpace(sd.EvaluatorID) == "" {
			continue
		}
		status := SlotStatus(strings.ToLower(strings.TrimSpace(sd.Status)))
		if status == "" {
			status = StatusPending
		}
		if !status.Valid() {
			return nil, fmt.Errorf("decode assignment %s: slot %d: unknown status %q", id, i+1, sd.Status)
		}
		assignedAt, err := parseTimestamp(sd.AssignedAt)
		if err != nil {
			return nil, fmt.Errorf("decode assignment %s: slot %d assignedAt: %w", id, i+1, err)
		}
		if assignedAt == nil {
			assignedAt = fallback
		}
		a.Slots[i] = Slot{
			EvaluatorID:       strings.TrimSpace(sd.EvaluatorID),
			Status:            status,
			EvaluatorUniqueID: sd.EvaluatorUniqueID,
			AssignedAt:        assignedAt,
			Receipt:           sd.Receipt,
			AmountSpent:       sd.AmountSpent,
		}
	}

	completedAt, err := parseTimestamp(doc.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("decode assignment %s: completedAt: %w", id, err)
	}
	a.CompletedAt = completedAt

	return a, nil
}

// parseTimestamp accepts RFC 3339 strings and unix milliseconds.
func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		t = t.UTC()
		return &t, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, fmt.Errorf("unsupported timestamp %s", string(raw))
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
