package matching

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// AutoMatchFailure records why one establishment could not be matched.
type AutoMatchFailure struct {
	EstablishmentID string `json:"establishmentId"`
	Kind            string `json:"kind"`
	Error           string `json:"error"`
}

type AutoMatchResult struct {
	// NoOp is set when no establishment was waiting for an assignment.
	NoOp      bool               `json:"noop"`
	Attempted int                `json:"attempted"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Created   []string           `json:"created"`
	Failures  []AutoMatchFailure `json:"failures"`
}

// AutoMatch runs the automatic match for every establishment that has no
// assignment. Attempts run concurrently and independently: one failure never
// undoes or blocks another establishment's match. The returned error is only
// set when the candidate set itself cannot be read. Each attempt reads
// evaluator loads when it starts, so attempts running at the same time can
// pick the same least-loaded evaluators; a concurrency of 1 balances exactly.
func (e *Engine) AutoMatch(ctx context.Context) (*AutoMatchResult, error) {
	start := e.now()

	establishments, err := e.establishments.ListEstablishments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	assignments, err := e.assignments.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	assigned := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		assigned[a.EstablishmentID] = struct{}{}
	}
	var pending []string
	for _, est := range establishments {
		if _, ok := assigned[est.ID]; !ok {
			pending = append(pending, est.ID)
		}
	}

	res := &AutoMatchResult{Created: []string{}, Failures: []AutoMatchFailure{}}
	if len(pending) == 0 {
		res.NoOp = true
		e.logger.Info("auto-match: no unassigned establishments")
		return res, nil
	}
	res.Attempted = len(pending)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.cfg.AutoMatchConcurrency)
	)
	for _, id := range pending {
		wg.Add(1)
		go func(establishmentID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			a, err := e.Create(ctx, CreateRequest{EstablishmentID: establishmentID})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Failures = append(res.Failures, AutoMatchFailure{
					EstablishmentID: establishmentID,
					Kind:            Kind(err),
					Error:           err.Error(),
				})
				return
			}
			res.Succeeded++
			res.Created = append(res.Created, a.ID)
		}(id)
	}
	wg.Wait()

	slices.Sort(res.Created)
	slices.SortFunc(res.Failures, func(a, b AutoMatchFailure) int {
		return strings.Compare(a.EstablishmentID, b.EstablishmentID)
	})

	elapsed := e.now().Sub(start)
	e.metrics.AutoMatchCompleted(res.Succeeded, res.Failed, elapsed)
	e.logger.Info("auto-match finished",
		slog.Int("attempted", res.Attempted),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Duration("elapsed", elapsed),
	)

	return res, nil
}
