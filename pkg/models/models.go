package models

import (
	"slices"
	"strings"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

type NDAStatus string

const (
	NDANotSent NDAStatus = "Not Sent"
	NDAPending NDAStatus = "Pending"
	NDASigned  NDAStatus = "Signed"
)

func (s NDAStatus) Valid() bool {
	switch s {
	case NDANotSent, NDAPending, NDASigned:
		return true
	}
	return false
}

type Evaluator struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	City           string    `json:"city,omitempty"`
	Company        string    `json:"company,omitempty"`
	Position       string    `json:"position,omitempty"`
	Specialties    []string  `json:"specialties"`
	MaxAssignments int       `json:"maxAssignments,omitempty"`
	NDAStatus      NDAStatus `json:"ndaStatus"`
	Created        int64     `json:"created"`
	Updated        int64     `json:"updated"`
}

// HasSpecialty reports whether category is one of the evaluator's specialties.
func (e *Evaluator) HasSpecialty(category string) bool {
	category = strings.TrimSpace(category)
	if category == "" {
		return false
	}
	return slices.Contains(e.Specialties, category)
}

// NormalizeSpecialties trims, de-duplicates and sorts a specialty set.
func NormalizeSpecialties(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

type Establishment struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Address     string  `json:"address,omitempty"`
	ContactInfo string  `json:"contactInfo,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Budget      float64 `json:"budget,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	HalalStatus string  `json:"halalStatus,omitempty"`
	Remarks     string  `json:"remarks,omitempty"`
	Created     int64   `json:"created"`
	Updated     int64   `json:"updated"`
}

type SlotStatus string

const (
	StatusPending    SlotStatus = "pending"
	StatusSubmitted  SlotStatus = "submitted"
	StatusCompleted  SlotStatus = "completed"
	StatusReported   SlotStatus = "reported"
	StatusReassigned SlotStatus = "reassigned"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusCompleted, StatusReported, StatusReassigned:
		return true
	}
	return false
}

// Slot is one evaluator position on an assignment. A slot with an empty
// EvaluatorID is unoccupied and carries no other state.
type Slot struct {
	EvaluatorID       string     `json:"evaluatorId"`
	Status            SlotStatus `json:"status,omitempty"`
	EvaluatorUniqueID string     `json:"evaluatorUniqueID,omitempty"`
	AssignedAt        *time.Time `json:"assignedAt,omitempty"`
	Receipt           string     `json:"receipt,omitempty"`
	AmountSpent       *float64   `json:"amountSpent,omitempty"`
}

func (s Slot) Occupied() bool { return s.EvaluatorID != "" }

// SlotCount is the number of evaluator slots on every assignment.
const SlotCount = 2

type Assignment struct {
	ID              string             `json:"id"`
	EstablishmentID string             `json:"establishmentId"`
	Slots           [SlotCount]Slot    `json:"-"`
	Notes           string             `json:"notes,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	Created         int64              `json:"created"`
	Updated         int64              `json:"updated"`
	Details         *AssignmentDetails `json:"details,omitempty"`
}

// EvaluatorIDs returns the occupied slot evaluator IDs in slot order.
func (a *Assignment) EvaluatorIDs() []string {
	ids := make([]string, 0, SlotCount)
	for _, s := range a.Slots {
		if s.Occupied() {
			ids = append(ids, s.EvaluatorID)
		}
	}
	return ids
}

// OccupiedSlots counts slots holding an evaluator.
func (a *Assignment) OccupiedSlots() int {
	return len(a.EvaluatorIDs())
}

// HasEvaluator reports whether evaluatorID sits in either slot.
func (a *Assignment) HasEvaluator(evaluatorID string) bool {
	if evaluatorID == "" {
		return false
	}
	for _, s := range a.Slots {
		if s.EvaluatorID == evaluatorID {
			return true
		}
	}
	return false
}

// AllOccupiedCompleted reports whether every occupied slot is completed.
// Empty slots do not block completion; an assignment with no occupied slot
// is never complete.
func (a *Assignment) AllOccupiedCompleted() bool {
	occupied := 0
	for _, s := range a.Slots {
		if !s.Occupied() {
			continue
		}
		occupied++
		if s.Status != StatusCompleted {
			return false
		}
	}
	return occupied > 0
}

// AssignmentDetails is the denormalised read-side view of an assignment.
type AssignmentDetails struct {
	Establishment *Establishment        `json:"establishment,omitempty"`
	Evaluators    [SlotCount]*Evaluator `json:"-"`
}

type Admin struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Created      int64  `json:"created"`
}
