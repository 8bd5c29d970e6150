package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/evalassign/internal/jobs"
	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/gorilla/mux"
)

// Enqueuer schedules background jobs. *jobs.WorkerPool satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

type AssignmentsHandler struct {
	engine      *matching.Engine
	queue       Enqueuer
	maxAttempts int
}

// NewAssignmentsHandler wires the assignment routes. queue may be nil, in
// which case notifications are skipped and async auto-match is unavailable.
func NewAssignmentsHandler(engine *matching.Engine, queue Enqueuer, maxAttempts int) *AssignmentsHandler {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &AssignmentsHandler{engine: engine, queue: queue, maxAttempts: maxAttempts}
}

type createAssignmentRequest struct {
	EstablishmentID string `json:"establishmentId"`
	Evaluator1ID    string `json:"evaluator1Id"`
	Evaluator2ID    string `json:"evaluator2Id"`
	ForceReassign   bool   `json:"forceReassign"`
}

type slotPatch struct {
	EvaluatorID *string            `json:"evaluatorId"`
	Status      *models.SlotStatus `json:"status"`
	Receipt     *string            `json:"receipt"`
	AmountSpent *float64           `json:"amountSpent"`
}

func (p *slotPatch) toUpdate() matching.SlotUpdate {
	if p == nil {
		return matching.SlotUpdate{}
	}
	return matching.SlotUpdate{
		EvaluatorID: p.EvaluatorID,
		Status:      p.Status,
		Receipt:     p.Receipt,
		AmountSpent: p.AmountSpent,
	}
}

type updateAssignmentRequest struct {
	EstablishmentID string     `json:"establishmentId"`
	Notes           *string    `json:"notes"`
	Slot1           *slotPatch `json:"slot1"`
	Slot2           *slotPatch `json:"slot2"`
}

func wantDetails(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("details"))
	return v
}

func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if !decodeBody(w, r, createAssignmentSchema, &req) {
		return
	}

	a, err := h.engine.Create(r.Context(), matching.CreateRequest{
		EstablishmentID: req.EstablishmentID,
		Evaluator1ID:    req.Evaluator1ID,
		Evaluator2ID:    req.Evaluator2ID,
		ForceReassign:   req.ForceReassign,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.notify(r.Context(), a)

	// the response always carries the joined view
	if full, err := h.engine.Get(r.Context(), a.ID, true); err == nil {
		a = full
	}
	writeJSON(w, a, http.StatusCreated)
}

// notify queues the evaluator notification. Failing to queue never fails the
// request that created the assignment.
func (h *AssignmentsHandler) notify(ctx context.Context, a *models.Assignment) {
	if h.queue == nil {
		return
	}
	if _, err := h.queue.Enqueue(ctx, jobs.TypeNotify, jobs.NewNotifyPayload(a), 200, h.maxAttempts); err != nil {
		logger.Warn("enqueue notify", slog.String("assignment_id", a.ID), slog.Any("err", err))
	}
}

func (h *AssignmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.engine.List(r.Context(), matching.Filter{
		ID:              q.Get("id"),
		EstablishmentID: q.Get("establishmentId"),
		EvaluatorID:     q.Get("evaluatorId"),
		WithDetails:     wantDetails(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Assignment{}
	}

	writeJSON(w, map[string]any{"total": len(list), "items": list}, http.StatusOK)
}

func (h *AssignmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Get(r.Context(), mux.Vars(r)["id"], wantDetails(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, a, http.StatusOK)
}

// Update edits the assignment named in the path. When it does not exist and
// the body names an establishment plus at least one evaluator, an assignment
// is created instead.
func (h *AssignmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAssignmentRequest
	if !decodeBody(w, r, updateAssignmentSchema, &req) {
		return
	}

	res, err := h.engine.Update(r.Context(), matching.UpdateRequest{
		ID:              mux.Vars(r)["id"],
		EstablishmentID: req.EstablishmentID,
		Slots:           [models.SlotCount]matching.SlotUpdate{req.Slot1.toUpdate(), req.Slot2.toUpdate()},
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == matching.OutcomeCreated {
		status = http.StatusCreated
		h.notify(r.Context(), res.Assignment)
	}
	writeJSON(w, res, status)
}

func (h *AssignmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AutoMatch runs the bulk match inline, or queues it when async=true.
func (h *AssignmentsHandler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if h.queue == nil {
			writeJSON(w, map[string]errorBody{"error": {Kind: "internal", Message: "job queue unavailable"}}, http.StatusServiceUnavailable)
			return
		}
		id, err := h.queue.Enqueue(r.Context(), jobs.TypeAutoMatch, struct{}{}, 100, 1)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"jobId": id, "status": jobs.StatusQueued}, http.StatusAccepted)
		return
	}

	res, err := h.engine.AutoMatch(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, id := range res.Created {
		if a, err := h.engine.Get(r.Context(), id, false); err == nil {
			h.notify(r.Context(), a)
		}
	}

	writeJSON(w, res, http.StatusOK)
}
