package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/evalassign/api"
	"github.com/garnizeh/evalassign/internal/jobs"
	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/internal/metrics"
	"github.com/garnizeh/evalassign/pkg/repository/mock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

const routeSecret = "route-secret"

type enqueued struct {
	typ     string
	payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, typ string, payload any, _ int, _ int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	q.jobs = append(q.jobs, enqueued{typ, payload})
	return int64(len(q.jobs)), nil
}

func (q *fakeQueue) ofType(typ string) []enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []enqueued
	for _, j := range q.jobs {
		if j.typ == typ {
			out = append(out, j)
		}
	}
	return out
}

type server struct {
	handler http.Handler
	store   *mock.Store
	queue   *fakeQueue
	token   string
}

func newServer(t *testing.T) *server {
	t.Helper()
	api.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	reg := prometheus.NewRegistry()
	col := metrics.NewPrometheus(reg, "")

	store := mock.NewStore()
	eng, err := matching.NewEngine(store, store, store, store, matching.DefaultConfig(),
		matching.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		matching.WithMetrics(col),
	)
	require.NoError(t, err)

	q := &fakeQueue{}
	r := api.SetupRoutes(api.Deps{
		Engine:         eng,
		Evaluators:     store,
		Establishments: store,
		Admins:         store,
		Counter:        store,
		Queue:          q,
		Metrics:        col,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		JWTSecret:      routeSecret,
		TokenDuration:  time.Hour,
		Version:        "test",
	})

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "admin@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(routeSecret))
	require.NoError(t, err)

	return &server{handler: r, store: store, queue: q, token: tok}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type apiError struct {
	Error struct {
		Kind     string `json:"kind"`
		Resource string `json:"resource"`
		ID       string `json:"id"`
		Message  string `json:"message"`
	} `json:"error"`
}

type slotView struct {
	EvaluatorID       string `json:"evaluatorId"`
	Status            string `json:"status"`
	EvaluatorUniqueID string `json:"evaluatorUniqueID"`
}

type assignmentView struct {
	ID              string    `json:"id"`
	EstablishmentID string    `json:"establishmentId"`
	Slot1           *slotView `json:"slot1"`
	Slot2           *slotView `json:"slot2"`
	CompletedAt     *string   `json:"completedAt"`
	Details         *struct {
		Establishment *struct {
			ID string `json:"id"`
		} `json:"establishment"`
		Evaluator1 *struct {
			ID string `json:"id"`
		} `json:"evaluator1"`
	} `json:"details"`
}

// seed creates two Bakery evaluators, one Italian evaluator and a Bakery
// and an Italian establishment through the API.
func (s *server) seed(t *testing.T) {
	t.Helper()
	for _, ev := range []map[string]any{
		{"name": "Ana", "email": "ana@example.com", "specialties": []string{"Bakery"}},
		{"name": "Ben", "email": "ben@example.com", "specialties": []string{"Bakery", "Italian"}},
		{"name": "Caro", "email": "caro@example.com", "specialties": []string{"Italian"}},
	} {
		w := s.do(t, http.MethodPost, "/v1/evaluators", ev)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	for _, est := range []map[string]any{
		{"name": "Crumb", "category": "Bakery"},
		{"name": "Nonna", "category": "Italian"},
	} {
		w := s.do(t, http.MethodPost, "/v1/establishments", est)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestRoutes_RequireToken(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/assignments", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// open routes need no token
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEvaluatorRoutes(t *testing.T) {
	s := newServer(t)
	s.seed(t)

	w := s.do(t, http.MethodGet, "/v1/evaluators/EVAL001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ev := decode[map[string]any](t, w)
	require.Equal(t, "ana@example.com", ev["email"])
	require.Equal(t, "Not Sent", ev["ndaStatus"])

	t.Run("duplicate email", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/evaluators", map[string]any{"name": "Ana 2", "email": "ANA@example.com", "specialties": []string{}})
		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		require.Equal(t, "conflict", decode[apiError](t, w).Error.Kind)
	})

	t.Run("schema rejects body", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/evaluators", map[string]any{"name": "X", "email": "x@example.com"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "validation", decode[apiError](t, w).Error.Kind)

		w = s.do(t, http.MethodPost, "/v1/evaluators", "{not json")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("filter by specialty", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/evaluators?specialty=Italian", nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[struct {
			Total int `json:"total"`
		}](t, w)
		require.Equal(t, 2, list.Total)
	})

	t.Run("nda", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/v1/evaluators/EVAL002/nda", map[string]any{"ndaStatus": "Signed"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "Signed", decode[map[string]any](t, w)["ndaStatus"])

		w = s.do(t, http.MethodPatch, "/v1/evaluators/EVAL002/nda", map[string]any{"ndaStatus": "Lost"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, http.MethodPatch, "/v1/evaluators/EVAL404/nda", map[string]any{"ndaStatus": "Signed"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/evaluators/EVAL404", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		e := decode[apiError](t, w)
		require.Equal(t, "evaluator", e.Error.Resource)
		require.Equal(t, "EVAL404", e.Error.ID)
	})
}

func TestAssignmentRoutes_CreateGetList(t *testing.T) {
	s := newServer(t)
	s.seed(t)

	w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decode[assignmentView](t, w)
	require.Equal(t, "ASSIGN01", a.ID)
	require.Equal(t, "EVAL001", a.Slot1.EvaluatorID)
	require.Equal(t, "EVAL002", a.Slot2.EvaluatorID)
	require.Equal(t, "pending", a.Slot1.Status)
	require.NotEmpty(t, a.Slot1.EvaluatorUniqueID)
	require.NotNil(t, a.Details)
	require.Equal(t, "EST001", a.Details.Establishment.ID)

	notes := s.queue.ofType(jobs.TypeNotify)
	require.Len(t, notes, 1)
	p := notes[0].payload.(jobs.NotifyPayload)
	require.Equal(t, "ASSIGN01", p.AssignmentID)
	require.Equal(t, []string{"EVAL001", "EVAL002"}, p.EvaluatorIDs)

	t.Run("conflict", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST001"})
		require.Equal(t, http.StatusConflict, w.Code)
		require.Equal(t, "conflict", decode[apiError](t, w).Error.Kind)
	})

	t.Run("unknown establishment", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST999"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("incompatible evaluator", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST002", "evaluator1Id": "EVAL001"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "validation", decode[apiError](t, w).Error.Kind)
	})

	t.Run("schema", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST002", "priority": 1})
		require.Equal(t, http.StatusBadRequest, w.Code)
		w = s.do(t, http.MethodPost, "/v1/assignments", map[string]any{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = s.do(t, http.MethodGet, "/v1/assignments/ASSIGN01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, decode[assignmentView](t, w).Details)

	w = s.do(t, http.MethodGet, "/v1/assignments/ASSIGN01?details=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "EVAL001", decode[assignmentView](t, w).Details.Evaluator1.ID)

	w = s.do(t, http.MethodGet, "/v1/assignments/ASSIGN77", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/assignments?evaluatorId=EVAL003", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Total int              `json:"total"`
		Items []assignmentView `json:"items"`
	}](t, w)
	require.Zero(t, list.Total)
	require.NotNil(t, list.Items)
}

func TestAssignmentRoutes_UpdateAndDelete(t *testing.T) {
	s := newServer(t)
	s.seed(t)
	w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST001"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPatch, "/v1/assignments/ASSIGN01", map[string]any{
		"slot1": map[string]any{"status": "completed", "receipt": "r-1.jpg", "amountSpent": 42.5},
		"slot2": map[string]any{"status": "completed"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Outcome    string         `json:"outcome"`
		Assignment assignmentView `json:"assignment"`
	}](t, w)
	require.Equal(t, "updated", res.Outcome)
	require.NotNil(t, res.Assignment.CompletedAt)

	t.Run("incompatible reassignment", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/v1/assignments/ASSIGN01", map[string]any{"slot2": map[string]any{"evaluatorId": "EVAL003"}})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad status", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/v1/assignments/ASSIGN01", map[string]any{"slot1": map[string]any{"status": "lost"}})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upsert", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/v1/assignments/new", map[string]any{
			"establishmentId": "EST002",
			"slot1":           map[string]any{"evaluatorId": "EVAL003"},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Equal(t, "created", decode[map[string]any](t, w)["outcome"])
		require.Len(t, s.queue.ofType(jobs.TypeNotify), 2)
	})

	t.Run("clearing both slots removes", func(t *testing.T) {
		w := s.do(t, http.MethodPatch, "/v1/assignments/ASSIGN01", map[string]any{
			"slot1": map[string]any{"evaluatorId": ""},
			"slot2": map[string]any{"evaluatorId": ""},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "removed", decode[map[string]any](t, w)["outcome"])
	})

	w = s.do(t, http.MethodDelete, "/v1/assignments/ASSIGN02", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/v1/assignments/ASSIGN02", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignmentRoutes_AutoMatch(t *testing.T) {
	s := newServer(t)
	s.seed(t)

	w := s.do(t, http.MethodPost, "/v1/assignments/auto-match", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[matching.AutoMatchResult](t, w)
	require.Equal(t, 2, res.Succeeded)
	require.Len(t, s.queue.ofType(jobs.TypeNotify), 2)

	w = s.do(t, http.MethodPost, "/v1/assignments/auto-match", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[matching.AutoMatchResult](t, w).NoOp)

	w = s.do(t, http.MethodPost, "/v1/assignments/auto-match?async=true", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "queued", decode[map[string]any](t, w)["status"])
	require.Len(t, s.queue.ofType(jobs.TypeAutoMatch), 1)

	s.queue.err = errors.New("queue full")
	w = s.do(t, http.MethodPost, "/v1/assignments/auto-match?async=true", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal", decode[apiError](t, w).Error.Kind)
}

func TestReferentialGuards(t *testing.T) {
	s := newServer(t)
	s.seed(t)
	w := s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST001"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodDelete, "/v1/evaluators/EVAL001", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, decode[apiError](t, w).Error.Message, "ASSIGN01")

	w = s.do(t, http.MethodPut, "/v1/evaluators/EVAL002", map[string]any{"name": "Ben", "email": "ben@example.com", "specialties": []string{"Italian"}})
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/v1/evaluators/EVAL002", map[string]any{"name": "Benedict", "email": "ben@example.com", "specialties": []string{"Bakery", "Thai"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, "/v1/establishments/EST001", map[string]any{"name": "Crumb", "category": "Italian"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/v1/establishments/EST002", map[string]any{"name": "Nonna", "category": "Trattoria"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/v1/evaluators/EVAL003", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// deleting the establishment takes its assignment along
	w = s.do(t, http.MethodDelete, "/v1/establishments/EST001", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/v1/assignments/ASSIGN01", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, "/v1/establishments/EST001", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.seed(t)
	s.do(t, http.MethodPost, "/v1/assignments", map[string]any{"establishmentId": "EST001"})

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `evalassign_matching_assignments_created_total{mode="auto"} 1`)
	require.Contains(t, body, `route="/v1/assignments"`)
}
