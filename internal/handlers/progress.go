package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/internal/logger"
	"github.com/jwebster45206/museum-guide/pkg/hunt"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

// Stores resolves the progress store for a profile
type Stores interface {
	Get(ctx context.Context, profileID uuid.UUID) (*progress.Store, error)
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type VisitRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type VisitResponse struct {
	Kind    progress.VisitKind `json:"kind"`
	Visited []string           `json:"visited"`
}

// AdvanceResponse reports the hunt status after an advance. Persisted is
// true only when the caller asked to wait and the write succeeded.
type AdvanceResponse struct {
	Status    hunt.Status `json:"status"`
	Persisted bool        `json:"persisted"`
}

// ProgressHandler drives the hunt state machine and visited lists for a profile
type ProgressHandler struct {
	catalog Catalog
	stores  Stores
	logger  *slog.Logger
}

func NewProgressHandler(catalog Catalog, stores Stores, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		catalog: catalog,
		stores:  stores,
		logger:  logger,
	}
}

// Register adds the progress routes to mux
// GET    /v1/profiles/{profileID}/progress                                - Full snapshot
// DELETE /v1/profiles/{profileID}/progress                                - Reset all progress
// POST   /v1/profiles/{profileID}/visits                                  - Mark exhibit/route visited
// GET    /v1/profiles/{profileID}/hunts/{huntID}/progress                 - Hunt status
// GET    /v1/profiles/{profileID}/hunts/{huntID}/clues/{step}             - Clue at step
// POST   /v1/profiles/{profileID}/hunts/{huntID}/steps/{step}/answer      - Check an answer
// POST   /v1/profiles/{profileID}/hunts/{huntID}/steps/{step}/advance     - Move past a step
func (h *ProgressHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/profiles/{profileID}/progress", h.handleSnapshot)
	mux.HandleFunc("DELETE /v1/profiles/{profileID}/progress", h.handleReset)
	mux.HandleFunc("POST /v1/profiles/{profileID}/visits", h.handleVisit)
	mux.HandleFunc("GET /v1/profiles/{profileID}/hunts/{huntID}/progress", h.handleStatus)
	mux.HandleFunc("GET /v1/profiles/{profileID}/hunts/{huntID}/clues/{step}", h.handleClue)
	mux.HandleFunc("POST /v1/profiles/{profileID}/hunts/{huntID}/steps/{step}/answer", h.handleAnswer)
	mux.HandleFunc("POST /v1/profiles/{profileID}/hunts/{huntID}/steps/{step}/advance", h.handleAdvance)
}

// store resolves the profile store, writing the error response itself on failure
func (h *ProgressHandler) store(w http.ResponseWriter, r *http.Request) (*progress.Store, bool) {
	idStr := r.PathValue("profileID")
	profileID, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid profile ID", "id", idStr, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid profile ID format")
		return nil, false
	}
	s, err := h.stores.Get(r.Context(), profileID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return nil, false
	}
	return s, true
}

func (h *ProgressHandler) controller(s *progress.Store) *hunt.Controller {
	return hunt.NewController(h.catalog, s, logger.WithProfile(h.logger, s.ProfileID().String()))
}

func (h *ProgressHandler) step(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Step must be a number")
		return 0, false
	}
	return step, true
}

// awaitFlush waits for the write when the request asks for ?wait=true
func (h *ProgressHandler) awaitFlush(w http.ResponseWriter, r *http.Request, flush *progress.Flush) (persisted bool, ok bool) {
	if flush == nil || !strings.EqualFold(r.URL.Query().Get("wait"), "true") {
		return false, true
	}
	if err := flush.Wait(r.Context()); err != nil {
		h.logger.Error("Progress write failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to persist progress")
		return false, false
	}
	return true, true
}

func (h *ProgressHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

func (h *ProgressHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	flush, err := s.Reset()
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if _, ok := h.awaitFlush(w, r, flush); !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s.Snapshot())
}

func (h *ProgressHandler) handleVisit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req VisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'kind' and 'id' fields.")
		return
	}
	kind, err := progress.ParseVisitKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	id := strings.TrimSpace(req.ID)
	if !h.catalog.HasEntity(kind, id) {
		writeError(w, h.logger, http.StatusNotFound, "Unknown "+string(kind))
		return
	}

	flush, err := s.MarkVisited(kind, id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if _, ok := h.awaitFlush(w, r, flush); !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, VisitResponse{Kind: kind, Visited: s.Visited(kind)})
}

func (h *ProgressHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	status, err := h.controller(s).Status(r.PathValue("huntID"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, status)
}

func (h *ProgressHandler) handleClue(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	step, ok := h.step(w, r)
	if !ok {
		return
	}
	clue, err := h.controller(s).Clue(r.PathValue("huntID"), step)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, viewClue(step, clue))
}

func (h *ProgressHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	step, ok := h.step(w, r)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'answer' field.")
		return
	}

	result, err := h.controller(s).SubmitAnswer(r.PathValue("huntID"), step, req.Answer)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *ProgressHandler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	step, ok := h.step(w, r)
	if !ok {
		return
	}

	huntID := r.PathValue("huntID")
	ctrl := h.controller(s)
	_, flush, err := ctrl.Advance(huntID, step)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	persisted, ok := h.awaitFlush(w, r, flush)
	if !ok {
		return
	}

	status, err := ctrl.Status(huntID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, AdvanceResponse{Status: status, Persisted: persisted})
}
