package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/museum-guide/pkg/hunt"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

// Catalog is the static content the handlers read from
type Catalog interface {
	hunt.HuntSource
	ListHunts() []*hunt.TreasureHunt
	HasEntity(kind progress.VisitKind, id string) bool
}

// HuntSummary is a hunt without its clues
type HuntSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Points      int    `json:"points"`
	TotalSteps  int    `json:"total_steps"`
}

// ClueView is a clue as shown to visitors. It never carries the answer.
type ClueView struct {
	Step      int    `json:"step"`
	ID        string `json:"id"`
	Question  string `json:"question"`
	Hint      string `json:"hint,omitempty"`
	ExhibitID string `json:"exhibit_id,omitempty"`
	Image     string `json:"image,omitempty"`
}

type HuntDetail struct {
	HuntSummary
	Clues []ClueView `json:"clues"`
}

func summarize(h *hunt.TreasureHunt) HuntSummary {
	return HuntSummary{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		Difficulty:  h.Difficulty,
		Duration:    h.Duration,
		Points:      h.Points,
		TotalSteps:  h.TotalSteps(),
	}
}

func viewClue(step int, c hunt.Clue) ClueView {
	return ClueView{
		Step:      step,
		ID:        c.ID,
		Question:  c.Question,
		Hint:      c.Hint,
		ExhibitID: c.ExhibitID,
		Image:     c.Image,
	}
}

// HuntsHandler serves read-only hunt content
type HuntsHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewHuntsHandler(catalog Catalog, logger *slog.Logger) *HuntsHandler {
	return &HuntsHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// Register adds the hunt routes to mux
// GET /v1/hunts           - List hunts
// GET /v1/hunts/{huntID}  - Hunt detail with clues (no answers)
func (h *HuntsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/hunts", h.handleList)
	mux.HandleFunc("GET /v1/hunts/{huntID}", h.handleGet)
}

func (h *HuntsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	hunts := h.catalog.ListHunts()
	out := make([]HuntSummary, 0, len(hunts))
	for _, ht := range hunts {
		out = append(out, summarize(ht))
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *HuntsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	huntID := r.PathValue("huntID")
	ht, ok := h.catalog.GetHunt(huntID)
	if !ok {
		h.logger.Debug("Hunt not found", "hunt_id", huntID)
		writeError(w, h.logger, http.StatusNotFound, "Hunt not found")
		return
	}

	detail := HuntDetail{
		HuntSummary: summarize(ht),
		Clues:       make([]ClueView, 0, len(ht.Clues)),
	}
	for i, c := range ht.Clues {
		detail.Clues = append(detail.Clues, viewClue(i+1, c))
	}
	writeJSON(w, h.logger, http.StatusOK, detail)
}
