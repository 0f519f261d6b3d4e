package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/skilltree/internal/engine"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps engine and skill errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, engine.ErrUnknownTree),
		errors.Is(err, skill.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, skill.ErrInvalidAttribute),
		errors.Is(err, skill.ErrDuplicateID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
