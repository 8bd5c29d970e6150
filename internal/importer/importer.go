// Package importer loads a JSON export of the old document store: three
// top-level objects (evaluators, establishments, assignments) keyed by
// record ID.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"unicode"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
)

type export struct {
	Evaluators     map[string]json.RawMessage `json:"evaluators"`
	Establishments map[string]json.RawMessage `json:"establishments"`
	Assignments    map[string]json.RawMessage `json:"assignments"`
}

// Store is everything an import writes to.
type Store interface {
	repository.EvaluatorRepo
	repository.EstablishmentRepo
	repository.AssignmentRepo
	repository.CounterSetter
}

// Summary counts what an import did per record kind.
type Summary struct {
	Imported map[string]int
	Skipped  map[string]int
	Errors   []error
}

func newSummary() *Summary {
	return &Summary{Imported: map[string]int{}, Skipped: map[string]int{}}
}

type Importer struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger}
}

// Import reads one export. Records whose ID already exists are skipped.
// A record that cannot be decoded or stored is reported in Summary.Errors
// and does not stop the run. Counters are advanced past the highest
// numeric suffix seen so new IDs never collide with imported ones.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Summary, error) {
	var ex export
	if err := json.NewDecoder(r).Decode(&ex); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	sum := newSummary()
	highest := map[string]int64{}
	note := func(counter, id string) {
		if n, ok := trailingNumber(id); ok && n > highest[counter] {
			highest[counter] = n
		}
	}

	for _, id := range sortedKeys(ex.Evaluators) {
		var e models.Evaluator
		if err := json.Unmarshal(ex.Evaluators[id], &e); err != nil {
			sum.Errors = append(sum.Errors, fmt.Errorf("evaluator %s: %w", id, err))
			continue
		}
		e.ID = id
		e.Specialties = models.NormalizeSpecialties(e.Specialties)
		if e.NDAStatus != "" && !e.NDAStatus.Valid() {
			sum.Errors = append(sum.Errors, fmt.Errorf("evaluator %s: unknown ndaStatus %q", id, e.NDAStatus))
			continue
		}
		note(matching.CounterEvaluators, id)
		im.record(sum, "evaluators", id, im.store.CreateEvaluator(ctx, &e))
	}

	for _, id := range sortedKeys(ex.Establishments) {
		var e models.Establishment
		if err := json.Unmarshal(ex.Establishments[id], &e); err != nil {
			sum.Errors = append(sum.Errors, fmt.Errorf("establishment %s: %w", id, err))
			continue
		}
		e.ID = id
		note(matching.CounterEstablishments, id)
		im.record(sum, "establishments", id, im.store.CreateEstablishment(ctx, &e))
	}

	for _, id := range sortedKeys(ex.Assignments) {
		a, err := models.DecodeAssignmentDocument(id, ex.Assignments[id])
		if err != nil {
			sum.Errors = append(sum.Errors, err)
			continue
		}
		note(matching.CounterAssignments, id)
		im.record(sum, "assignments", id, im.store.CreateAssignment(ctx, a))
	}

	for _, name := range []string{matching.CounterEvaluators, matching.CounterEstablishments, matching.CounterAssignments} {
		if v := highest[name]; v > 0 {
			if err := im.store.AdvanceTo(ctx, name, v); err != nil {
				return sum, fmt.Errorf("advance counter %s: %w", name, err)
			}
		}
	}

	im.logger.Info("import finished",
		slog.Any("imported", sum.Imported),
		slog.Any("skipped", sum.Skipped),
		slog.Int("errors", len(sum.Errors)),
	)
	return sum, nil
}

func (im *Importer) record(sum *Summary, kind, id string, err error) {
	switch {
	case err == nil:
		sum.Imported[kind]++
	case errors.Is(err, repository.ErrDuplicate):
		sum.Skipped[kind]++
		im.logger.Debug("record exists, skipped", slog.String("kind", kind), slog.String("id", id))
	default:
		sum.Errors = append(sum.Errors, fmt.Errorf("%s %s: %w", kind, id, err))
	}
}

// trailingNumber extracts the decimal suffix of id, e.g. 7 from ASSIGN07.
func trailingNumber(id string) (int64, bool) {
	i := len(id)
	for i > 0 && unicode.IsDigit(rune(id[i-1])) {
		i--
	}
	if i == len(id) {
		return 0, false
	}
	n, err := strconv.ParseInt(id[i:], 10, 64)
	return n, err == nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
