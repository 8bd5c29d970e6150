package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
	"github.com/gorilla/mux"
)

type EstablishmentsHandler struct {
	repo    repository.EstablishmentRepo
	counter repository.Counter
	engine  *matching.Engine
}

func NewEstablishmentsHandler(repo repository.EstablishmentRepo, counter repository.Counter, engine *matching.Engine) *EstablishmentsHandler {
	return &EstablishmentsHandler{repo: repo, counter: counter, engine: engine}
}

type establishmentRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Address     string  `json:"address"`
	ContactInfo string  `json:"contactInfo"`
	Rating      float64 `json:"rating"`
	Budget      float64 `json:"budget"`
	Currency    string  `json:"currency"`
	HalalStatus string  `json:"halalStatus"`
	Remarks     string  `json:"remarks"`
}

func (req *establishmentRequest) apply(e *models.Establishment) {
	e.Name = strings.TrimSpace(req.Name)
	e.Category = strings.TrimSpace(req.Category)
	e.Address = req.Address
	e.ContactInfo = req.ContactInfo
	e.Rating = req.Rating
	e.Budget = req.Budget
	e.Currency = req.Currency
	e.HalalStatus = req.HalalStatus
	e.Remarks = req.Remarks
}

func (h *EstablishmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req establishmentRequest
	if !decodeBody(w, r, establishmentSchema, &req) {
		return
	}
	var e models.Establishment
	req.apply(&e)
	if e.Name == "" || e.Category == "" {
		badRequest(w, "name and category are required")
		return
	}

	id, err := mintID(r.Context(), h.counter, matching.CounterEstablishments, establishmentIDPrefix)
	if err != nil {
		writeError(w, err)
		return
	}
	e.ID = id
	if err := h.repo.CreateEstablishment(r.Context(), &e); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, e, http.StatusCreated)
}

func (h *EstablishmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListEstablishments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.Establishment{}
	}

	if cat := strings.TrimSpace(r.URL.Query().Get("category")); cat != "" {
		filtered := make([]models.Establishment, 0, len(list))
		for _, e := range list {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		list = filtered
	}

	writeJSON(w, map[string]any{"total": len(list), "items": list}, http.StatusOK)
}

func (h *EstablishmentsHandler) load(w http.ResponseWriter, r *http.Request) (*models.Establishment, bool) {
	id := mux.Vars(r)["id"]
	e, err := h.repo.GetEstablishment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if e == nil {
		notFound(w, "establishment", id)
		return nil, false
	}
	return e, true
}

func (h *EstablishmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}

	writeJSON(w, e, http.StatusOK)
}

func (h *EstablishmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	e, ok := h.load(w, r)
	if !ok {
		return
	}
	var req establishmentRequest
	if !decodeBody(w, r, establishmentSchema, &req) {
		return
	}
	before := e.Category
	req.apply(e)
	if e.Name == "" || e.Category == "" {
		badRequest(w, "name and category are required")
		return
	}

	if e.Category != before {
		if err := h.engine.CheckCategoryChange(r.Context(), e); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.repo.UpdateEstablishment(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, e, http.StatusOK)
}

// Delete removes the establishment together with its assignment.
func (h *EstablishmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.repo.DeleteEstablishment(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
