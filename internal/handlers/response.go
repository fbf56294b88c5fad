package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/museum-guide/pkg/hunt"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeDomainError maps core errors onto HTTP statuses. Lookup failures are
// not-found conditions, never server errors.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, hunt.ErrHuntNotFound):
		writeError(w, logger, http.StatusNotFound, "Hunt not found")
	case errors.Is(err, hunt.ErrClueNotFound):
		writeError(w, logger, http.StatusNotFound, "Clue not found")
	case errors.Is(err, hunt.ErrStepLocked):
		writeError(w, logger, http.StatusConflict, "Step is not unlocked yet")
	case errors.Is(err, progress.ErrRegression):
		writeError(w, logger, http.StatusConflict, "Progress cannot move backwards")
	case errors.Is(err, progress.ErrUnknownVisitKind):
		writeError(w, logger, http.StatusBadRequest, "Unknown visit kind. Supported kinds: exhibit, route")
	case errors.Is(err, progress.ErrStoreClosed):
		writeError(w, logger, http.StatusServiceUnavailable, "Progress store is shutting down")
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}
