package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
	"github.com/gorilla/mux"
)

// Prefixes and width of the sequential evaluator and establishment IDs.
const (
	evaluatorIDPrefix     = "EVAL"
	establishmentIDPrefix = "EST"
	recordIDWidth         = 3
)

// mintID draws the next value of counter name and formats it.
func mintID(ctx context.Context, c repository.Counter, name, prefix string) (string, error) {
	n, err := c.Next(ctx, name)
	if err != nil {
		return "", fmt.Errorf("next %s id: %w", name, err)
	}
	return matching.FormatID(prefix, recordIDWidth, n), nil
}

type EvaluatorsHandler struct {
	repo    repository.EvaluatorRepo
	counter repository.Counter
	engine  *matching.Engine
}

func NewEvaluatorsHandler(repo repository.EvaluatorRepo, counter repository.Counter, engine *matching.Engine) *EvaluatorsHandler {
	return &EvaluatorsHandler{repo: repo, counter: counter, engine: engine}
}

type evaluatorRequest struct {
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	City           string           `json:"city"`
	Company        string           `json:"company"`
	Position       string           `json:"position"`
	Specialties    []string         `json:"specialties"`
	MaxAssignments int              `json:"maxAssignments"`
	NDAStatus      models.NDAStatus `json:"ndaStatus"`
}

func (req *evaluatorRequest) apply(e *models.Evaluator) {
	e.Name = strings.TrimSpace(req.Name)
	e.Email = strings.ToLower(strings.TrimSpace(req.Email))
	e.Phone = req.Phone
	e.City = req.City
	e.Company = req.Company
	e.Position = req.Position
	e.Specialties = models.NormalizeSpecialties(req.Specialties)
	e.MaxAssignments = req.MaxAssignments
	if req.NDAStatus != "" {
		e.NDAStatus = req.NDAStatus
	}
	if e.NDAStatus == "" {
		e.NDAStatus = models.NDANotSent
	}
}

func (h *EvaluatorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req evaluatorRequest
	if !decodeBody(w, r, evaluatorSchema, &req) {
		return
	}
	var e models.Evaluator
	req.apply(&e)
	if e.Name == "" || !strings.Contains(e.Email, "@") {
		badRequest(w, "name and a valid email are required")
		return
	}

	id, err := mintID(r.Context(), h.counter, matching.CounterEvaluators, evaluatorIDPrefix)
	if err != nil {
		writeError(w, err)
		return
	}
	e.ID = id
	if err := h.repo.CreateEvaluator(r.Context(), &e); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, e, http.StatusCreated)
}

func (h *EvaluatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListEvaluators(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Evaluator{}
	}

	// optional ?specialty= narrows to evaluators covering one category
	if cat := strings.TrimSpace(r.URL.Query().Get("specialty")); cat != "" {
		filtered := make([]models.Evaluator, 0, len(list))
		for i := range list {
			if list[i].HasSpecialty(cat) {
				filtered = append(filtered, list[i])
			}
		}
		list = filtered
	}

	writeJSON(w, map[string]any{"total": len(list), "items": list}, http.StatusOK)
}

func (h *EvaluatorsHandler) load(w http.ResponseWriter, r *http.Request) (*models.Evaluator, bool) {
	id := mux.Vars(r)["id"]
	e, err := h.repo.GetEvaluator(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if e == nil {
		notFound(w, "evaluator", id)
		return nil, false
	}
	return e, true
}

func (h *EvaluatorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}

	writeJSON(w, e, http.StatusOK)
}

// Update replaces an evaluator's profile. Dropping a specialty an existing
// assignment depends on is refused.
func (h *EvaluatorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}
	var req evaluatorRequest
	if !decodeBody(w, r, evaluatorSchema, &req) {
		return
	}
	req.apply(e)
	if e.Name == "" || !strings.Contains(e.Email, "@") {
		badRequest(w, "name and a valid email are required")
		return
	}

	if err := h.engine.CheckEvaluatorChange(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.UpdateEvaluator(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, e, http.StatusOK)
}

type ndaRequest struct {
	NDAStatus models.NDAStatus `json:"ndaStatus"`
}

func (h *EvaluatorsHandler) SetNDA(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}
	var req ndaRequest
	if !decodeBody(w, r, ndaSchema, &req) {
		return
	}

	e.NDAStatus = req.NDAStatus
	if err := h.repo.UpdateEvaluator(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, e, http.StatusOK)
}

func (h *EvaluatorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteEvaluator(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
