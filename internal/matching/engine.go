// Package matching implements the assignment engine: pairing evaluators with
// establishments, editing and reassigning slots, and minting sequential
// assignment IDs.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
	"github.com/google/uuid"
)

// Counter names used for sequential identifiers.
const (
	CounterAssignments    = "assignments"
	CounterEvaluators     = "evaluators"
	CounterEstablishments = "establishments"
)

// Config tunes ID minting and matching rules.
type Config struct {
	// IDPrefix and IDWidth shape assignment IDs, e.g. ASSIGN07.
	IDPrefix string
	IDWidth  int
	// EnforceMaxAssignments keeps evaluators at their maxAssignments cap out
	// of automatic selection and rejects them when supplied explicitly.
	EnforceMaxAssignments bool
	// AutoMatchConcurrency bounds concurrent match attempts in AutoMatch.
	AutoMatchConcurrency int
}

// DefaultConfig issues ASSIGN01-style IDs with the capacity cap enforced.
func DefaultConfig() Config {
	return Config{
		IDPrefix:              "ASSIGN",
		IDWidth:               2,
		EnforceMaxAssignments: true,
		AutoMatchConcurrency:  4,
	}
}

// Engine is stateless between calls; all state lives behind the repositories.
type Engine struct {
	evaluators     repository.EvaluatorRepo
	establishments repository.EstablishmentRepo
	assignments    repository.AssignmentRepo
	counter        repository.Counter

	cfg      Config
	logger   *slog.Logger
	metrics  Recorder
	now      func() time.Time
	newToken func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger; nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTokenSource replaces the per-slot token generator (uuid by default).
func WithTokenSource(f func() string) Option {
	return func(e *Engine) {
		if f != nil {
			e.newToken = f
		}
	}
}

// NewEngine builds an Engine over the given stores. Zero cfg fields take
// their DefaultConfig values.
func NewEngine(
	er repository.EvaluatorRepo,
	sr repository.EstablishmentRepo,
	ar repository.AssignmentRepo,
	counter repository.Counter,
	cfg Config,
	opts ...Option,
) (*Engine, error) {
	if er == nil || sr == nil || ar == nil {
		return nil, errors.New("evaluator, establishment and assignment repos are required")
	}
	if counter == nil {
		return nil, errors.New("counter is required")
	}

	def := DefaultConfig()
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if cfg.IDWidth <= 0 {
		cfg.IDWidth = def.IDWidth
	}
	if cfg.AutoMatchConcurrency <= 0 {
		cfg.AutoMatchConcurrency = def.AutoMatchConcurrency
	}

	e := &Engine{
		evaluators:     er,
		establishments: sr,
		assignments:    ar,
		counter:        counter,
		cfg:            cfg,
		logger:         slog.Default(),
		metrics:        NopRecorder{},
		now:            func() time.Time { return time.Now().UTC() },
		newToken:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// FormatID renders a sequential identifier: prefix plus n zero padded to width.
func FormatID(prefix string, width int, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// mintAssignmentID takes the next value from the shared counter. A counter
// failure aborts the create; there is no retry.
func (e *Engine) mintAssignmentID(ctx context.Context) (string, error) {
	n, err := e.counter.Next(ctx, CounterAssignments)
	if err != nil {
		e.metrics.CounterAborted()
		return "", fmt.Errorf("mint assignment id: %w: %w", ErrCounterAborted, err)
	}
	return FormatID(e.cfg.IDPrefix, e.cfg.IDWidth, n), nil
}

// occupy fills a slot for a newly placed evaluator: pending status, fresh
// token and assignment time.
func (e *Engine) occupy(evaluatorID string, at time.Time) models.Slot {
	t := at
	return models.Slot{
		EvaluatorID:       evaluatorID,
		Status:            models.StatusPending,
		EvaluatorUniqueID: e.newToken(),
		AssignedAt:        &t,
	}
}
