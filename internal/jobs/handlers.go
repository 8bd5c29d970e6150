package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/webhook"
)

// Job types.
const (
	TypeAutoMatch = "assignments.auto_match"
	TypeNotify    = "assignments.notify"
)

// AutoMatcher runs the bulk match and reads back what it created.
type AutoMatcher interface {
	AutoMatch(ctx context.Context) (*matching.AutoMatchResult, error)
	Get(ctx context.Context, id string, withDetails bool) (*models.Assignment, error)
}

// NotifyPayload identifies an assignment whose evaluators should be told
// about it.
type NotifyPayload struct {
	AssignmentID    string   `json:"assignmentId"`
	EstablishmentID string   `json:"establishmentId"`
	EvaluatorIDs    []string `json:"evaluatorIds"`
}

// NewNotifyPayload describes a freshly created assignment.
func NewNotifyPayload(a *models.Assignment) NotifyPayload {
	return NotifyPayload{
		AssignmentID:    a.ID,
		EstablishmentID: a.EstablishmentID,
		EvaluatorIDs:    a.EvaluatorIDs(),
	}
}

// Notifier delivers a notification event. *webhook.Client satisfies it.
type Notifier interface {
	Post(ctx context.Context, event string, payload any) error
}

// EventAssignmentCreated is the event name sent to the notifier.
const EventAssignmentCreated = "assignment.created"

// Handlers returns the handler map for the worker pool. Auto-match jobs
// enqueue one notify job per created assignment. A nil notifier only logs
// the notification.
func Handlers(m AutoMatcher, store Store, n Notifier, logger *slog.Logger) map[string]Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return map[string]Handler{
		TypeAutoMatch: autoMatchHandler(m, store, logger),
		TypeNotify:    notifyHandler(n, logger),
	}
}

func autoMatchHandler(m AutoMatcher, store Store, logger *slog.Logger) Handler {
	return func(ctx context.Context, j *Job) error {
		res, err := m.AutoMatch(ctx)
		if err != nil {
			return fmt.Errorf("auto-match: %w", err)
		}
		logger.Info("auto-match job finished",
			slog.Int64("job_id", j.ID),
			slog.Bool("noop", res.NoOp),
			slog.Int("succeeded", res.Succeeded),
			slog.Int("failed", res.Failed),
		)
		for _, id := range res.Created {
			p := NotifyPayload{AssignmentID: id}
			if a, err := m.Get(ctx, id, false); err != nil {
				logger.Warn("read created assignment", slog.String("assignment_id", id), slog.Any("err", err))
			} else {
				p = NewNotifyPayload(a)
			}
			b, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if _, err := store.Enqueue(ctx, &Job{Type: TypeNotify, Payload: b, Priority: 200}); err != nil {
				logger.Error("enqueue notify", slog.String("assignment_id", id), slog.Any("err", err))
			}
		}
		return nil
	}
}

// notifyHandler hands the notification to the external notifier. Transient
// failures are retried by the pool; a rejected payload is not.
func notifyHandler(n Notifier, logger *slog.Logger) Handler {
	return func(ctx context.Context, j *Job) error {
		var p NotifyPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("%w: decode notify payload: %v", ErrPermanent, err)
		}
		if p.AssignmentID == "" {
			return fmt.Errorf("%w: notify payload has no assignmentId", ErrPermanent)
		}
		logger.Info("assignment notification",
			slog.Int64("job_id", j.ID),
			slog.String("assignment_id", p.AssignmentID),
			slog.String("establishment_id", p.EstablishmentID),
			slog.Any("evaluator_ids", p.EvaluatorIDs),
		)
		if n == nil {
			return nil
		}
		if err := n.Post(ctx, EventAssignmentCreated, p); err != nil {
			if errors.Is(err, webhook.ErrRejected) {
				return fmt.Errorf("%w: %v", ErrPermanent, err)
			}
			return fmt.Errorf("deliver notification for %s: %w", p.AssignmentID, err)
		}
		return nil
	}
}
