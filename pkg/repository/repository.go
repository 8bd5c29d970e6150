package repository

import (
	"context"
	"errors"

	"github.com/garnizeh/evalassign/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Get methods return (nil, nil) when the record does not exist.

var (
	// ErrNotFound is returned by update and delete calls that match no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint
	// (evaluator email, one assignment per establishment).
	ErrDuplicate = errors.New("duplicate record")
)

type EvaluatorRepo interface {
	CreateEvaluator(ctx context.Context, e *models.Evaluator) error
	GetEvaluator(ctx context.Context, id string) (*models.Evaluator, error)
	GetEvaluatorByEmail(ctx context.Context, email string) (*models.Evaluator, error)
	ListEvaluators(ctx context.Context) ([]models.Evaluator, error)
	UpdateEvaluator(ctx context.Context, e *models.Evaluator) error
	DeleteEvaluator(ctx context.Context, id string) error
}

type EstablishmentRepo interface {
	CreateEstablishment(ctx context.Context, e *models.Establishment) error
	GetEstablishment(ctx context.Context, id string) (*models.Establishment, error)
	ListEstablishments(ctx context.Context) ([]models.Establishment, error)
	UpdateEstablishment(ctx context.Context, e *models.Establishment) error
	DeleteEstablishment(ctx context.Context, id string) error
}

type AssignmentRepo interface {
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	ListAssignments(ctx context.Context) ([]models.Assignment, error)
	ListAssignmentsByEstablishment(ctx context.Context, establishmentID string) ([]models.Assignment, error)
	ListAssignmentsByEvaluator(ctx context.Context, evaluatorID string) ([]models.Assignment, error)
	UpdateAssignment(ctx context.Context, a *models.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
}

type AdminRepo interface {
	CreateAdmin(ctx context.Context, a *models.Admin) (int64, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// Counter hands out monotonically increasing values per counter name. Next
// must be an atomic increment-and-fetch: two concurrent callers never
// observe the same value, and values are never reused.
type Counter interface {
	Next(ctx context.Context, name string) (int64, error)
}

// CounterSetter lets tools move a counter forward, e.g. after importing
// records that already carry sequential IDs. Values never move backwards.
type CounterSetter interface {
	AdvanceTo(ctx context.Context, name string, value int64) error
}
