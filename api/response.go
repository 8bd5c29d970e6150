package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/evalassign/internal/matching"
	"github.com/garnizeh/evalassign/pkg/repository"
)

type errorBody struct {
	Kind     string `json:"kind"`
	Resource string `json:"resource,omitempty"`
	ID       string `json:"id,omitempty"`
	Message  string `json:"message"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeError maps engine and repository errors onto status codes.
// Anything unrecognised is logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Kind: matching.Kind(err), Message: err.Error()}

	var me *matching.Error
	if errors.As(err, &me) {
		body.Resource, body.ID, body.Message = me.Resource, me.ID, me.Reason
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		body.Kind = "conflict"
		status = http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		body.Kind = "not_found"
		status = http.StatusNotFound
	case body.Kind == "validation":
		status = http.StatusBadRequest
	case body.Kind == "not_found":
		status = http.StatusNotFound
	case body.Kind == "conflict":
		status = http.StatusConflict
	default:
		logger.Error("request failed", slog.Any("err", err))
		body.Message = "internal error"
	}

	writeJSON(w, map[string]errorBody{"error": body}, status)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, map[string]errorBody{"error": {Kind: "validation", Message: msg}}, http.StatusBadRequest)
}

func notFound(w http.ResponseWriter, resource, id string) {
	writeJSON(w, map[string]errorBody{"error": {Kind: "not_found", Resource: resource, ID: id, Message: "does not exist"}}, http.StatusNotFound)
}
