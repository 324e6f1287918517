package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"levelup-sidequest/internal/domain"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps core errors to status codes. Unexpected errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var fields domain.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: fields})
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Game user not authenticated"})
	case errors.Is(err, domain.ErrQuestNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "quest not found"})
	case errors.Is(err, domain.ErrRegistrantNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "registrant not found"})
	case errors.Is(err, domain.ErrInvalidQuest):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}
