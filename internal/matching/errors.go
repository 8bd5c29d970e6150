package matching

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine for a caller-visible
// condition wraps exactly one of these, so callers can use errors.Is.
var (
	// ErrValidation marks missing or malformed input, including an evaluator
	// whose specialties do not cover the establishment's category.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a referenced establishment, evaluator or assignment
	// that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a request that clashes with current state: the
	// establishment is already assigned, the evaluator is still referenced,
	// or the same evaluator was supplied for both slots.
	ErrConflict = errors.New("conflict")

	// ErrCounterAborted is returned when the sequential ID counter fails to
	// commit. It is fatal for the create call and is not retried.
	ErrCounterAborted = errors.New("id counter transaction aborted")
)

// Error carries the resource and reason behind a validation, not-found or
// conflict failure.
type Error struct {
	Kind     error
	Resource string
	ID       string
	Reason   string
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Resource, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Resource, e.Reason)
}

func (e *Error) Unwrap() error { return e.Kind }

func validationErr(resource, id, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Resource: resource, ID: id, Reason: fmt.Sprintf(format, args...)}
}

func notFoundErr(resource, id string) error {
	return &Error{Kind: ErrNotFound, Resource: resource, ID: id, Reason: "does not exist"}
}

func conflictErr(resource, id, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Resource: resource, ID: id, Reason: fmt.Sprintf(format, args...)}
}

// Kind names the category of err for responses and metrics labels:
// "validation", "not_found", "conflict" or "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
