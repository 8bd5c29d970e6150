package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
)

// Store is an in-memory implementation of every repository contract plus
// the counter. It copies records on the way in and out so callers cannot
// mutate stored state through pointers.
type Store struct {
	mu             sync.Mutex
	evaluators     map[string]models.Evaluator
	establishments map[string]models.Establishment
	assignments    map[string]models.Assignment
	admins         map[string]models.Admin
	counters       map[string]int64

	// CounterErr, when set, is returned by Next without incrementing.
	CounterErr error
	// CreateAssignmentErr, when set, is returned by CreateAssignment.
	CreateAssignmentErr error
	// Writes counts assignment writes (create, update, delete).
	Writes int
}

var (
	_ repository.EvaluatorRepo     = (*Store)(nil)
	_ repository.EstablishmentRepo = (*Store)(nil)
	_ repository.AssignmentRepo    = (*Store)(nil)
	_ repository.AdminRepo         = (*Store)(nil)
	_ repository.Counter           = (*Store)(nil)
	_ repository.CounterSetter     = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		evaluators:     map[string]models.Evaluator{},
		establishments: map[string]models.Establishment{},
		assignments:    map[string]models.Assignment{},
		admins:         map[string]models.Admin{},
		counters:       map[string]int64{},
	}
}

// Evaluators

func (s *Store) CreateEvaluator(ctx context.Context, e *models.Evaluator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluators[e.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, other := range s.evaluators {
		if e.Email != "" && strings.EqualFold(other.Email, e.Email) {
			return repository.ErrDuplicate
		}
	}
	s.evaluators[e.ID] = cloneEvaluator(*e)
	return nil
}

func (s *Store) GetEvaluator(ctx context.Context, id string) (*models.Evaluator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evaluators[id]
	if !ok {
		return nil, nil
	}
	out := cloneEvaluator(e)
	return &out, nil
}

func (s *Store) GetEvaluatorByEmail(ctx context.Context, email string) (*models.Evaluator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.evaluators {
		if strings.EqualFold(e.Email, email) {
			out := cloneEvaluator(e)
			return &out, nil
		}
	}
	return nil, nil
}

// ListEvaluators returns evaluators ordered by ID, like the sqlite repo.
func (s *Store) ListEvaluators(ctx context.Context) ([]models.Evaluator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Evaluator, 0, len(s.evaluators))
	for _, e := range s.evaluators {
		out = append(out, cloneEvaluator(e))
	}
	slices.SortFunc(out, func(a, b models.Evaluator) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) UpdateEvaluator(ctx context.Context, e *models.Evaluator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluators[e.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, other := range s.evaluators {
		if id != e.ID && e.Email != "" && strings.EqualFold(other.Email, e.Email) {
			return repository.ErrDuplicate
		}
	}
	s.evaluators[e.ID] = cloneEvaluator(*e)
	return nil
}

func (s *Store) DeleteEvaluator(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluators[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.evaluators, id)
	return nil
}

// Establishments

func (s *Store) CreateEstablishment(ctx context.Context, e *models.Establishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.establishments[e.ID]; ok {
		return repository.ErrDuplicate
	}
	s.establishments[e.ID] = *e
	return nil
}

func (s *Store) GetEstablishment(ctx context.Context, id string) (*models.Establishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.establishments[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) ListEstablishments(ctx context.Context) ([]models.Establishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Establishment, 0, len(s.establishments))
	for _, e := range s.establishments {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Establishment) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) UpdateEstablishment(ctx context.Context, e *models.Establishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.establishments[e.ID]; !ok {
		return repository.ErrNotFound
	}
	s.establishments[e.ID] = *e
	return nil
}

func (s *Store) DeleteEstablishment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.establishments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.establishments, id)
	for aid, a := range s.assignments {
		if a.EstablishmentID == id {
			delete(s.assignments, aid)
		}
	}
	return nil
}

// Assignments

func (s *Store) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateAssignmentErr != nil {
		return s.CreateAssignmentErr
	}
	if _, ok := s.assignments[a.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, other := range s.assignments {
		if other.EstablishmentID == a.EstablishmentID {
			return repository.ErrDuplicate
		}
	}
	stored := *a
	stored.Details = nil
	s.assignments[a.ID] = stored
	s.Writes++
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) ListAssignments(ctx context.Context) ([]models.Assignment, error) {
	return s.filterAssignments(func(models.Assignment) bool { return true }), nil
}

func (s *Store) ListAssignmentsByEstablishment(ctx context.Context, establishmentID string) ([]models.Assignment, error) {
	return s.filterAssignments(func(a models.Assignment) bool { return a.EstablishmentID == establishmentID }), nil
}

func (s *Store) ListAssignmentsByEvaluator(ctx context.Context, evaluatorID string) ([]models.Assignment, error) {
	return s.filterAssignments(func(a models.Assignment) bool { return a.HasEvaluator(evaluatorID) }), nil
}

func (s *Store) filterAssignments(keep func(models.Assignment) bool) []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b models.Assignment) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) UpdateAssignment(ctx context.Context, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; !ok {
		return repository.ErrNotFound
	}
	stored := *a
	stored.Details = nil
	s.assignments[a.ID] = stored
	s.Writes++
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.assignments, id)
	s.Writes++
	return nil
}

// Admins

func (s *Store) CreateAdmin(ctx context.Context, a *models.Admin) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[a.Email]; ok {
		return 0, repository.ErrDuplicate
	}
	stored := *a
	stored.ID = int64(len(s.admins) + 1)
	s.admins[a.Email] = stored
	return stored.ID, nil
}

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[email]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Counter

func (s *Store) Next(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CounterErr != nil {
		return 0, s.CounterErr
	}
	s.counters[name]++
	return s.counters[name], nil
}

func (s *Store) AdvanceTo(ctx context.Context, name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value > s.counters[name] {
		s.counters[name] = value
	}
	return nil
}

// CounterValue returns the current value of a counter without changing it.
func (s *Store) CounterValue(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

func cloneEvaluator(e models.Evaluator) models.Evaluator {
	e.Specialties = slices.Clone(e.Specialties)
	return e
}
