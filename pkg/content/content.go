// Package content loads the museum's static content: treasure hunts,
// exhibits and routes. Content is read once and never modified at runtime.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jwebster45206/museum-guide/pkg/hunt"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

var ErrInvalidHunt = errors.New("invalid hunt")

// Exhibit is a display record for a museum piece.
type Exhibit struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Room        string `json:"room,omitempty"`
	Period      string `json:"period,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Route is a guided tour through a sequence of exhibits.
type Route struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	ExhibitIDs  []string `json:"exhibit_ids,omitempty"`
}

// Catalog holds all static content, keyed by id.
type Catalog struct {
	hunts    map[string]*hunt.TreasureHunt
	exhibits map[string]Exhibit
	routes   map[string]Route
}

// Ensure Catalog can back the hunt controller
var _ hunt.HuntSource = (*Catalog)(nil)

// NewCatalog builds a catalog from in-memory content. Hunts are validated.
func NewCatalog(hunts []hunt.TreasureHunt, exhibits []Exhibit, routes []Route) (*Catalog, error) {
	c := &Catalog{
		hunts:    make(map[string]*hunt.TreasureHunt, len(hunts)),
		exhibits: make(map[string]Exhibit, len(exhibits)),
		routes:   make(map[string]Route, len(routes)),
	}
	for i := range hunts {
		h := hunts[i]
		if err := ValidateHunt(&h); err != nil {
			return nil, err
		}
		if _, dup := c.hunts[h.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate hunt id %q", ErrInvalidHunt, h.ID)
		}
		c.hunts[h.ID] = &h
	}
	for _, e := range exhibits {
		c.exhibits[e.ID] = e
	}
	for _, r := range routes {
		c.routes[r.ID] = r
	}
	return c, nil
}

// LoadDir reads dataDir/hunts/*.json, dataDir/exhibits.json and
// dataDir/routes.json. Unreadable or invalid hunt files are skipped with a
// warning; missing exhibit or route files yield empty lists.
func LoadDir(dataDir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		hunts:    make(map[string]*hunt.TreasureHunt),
		exhibits: make(map[string]Exhibit),
		routes:   make(map[string]Route),
	}

	huntsDir := filepath.Join(dataDir, "hunts")
	err := filepath.WalkDir(huntsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		h, err := ReadHuntFile(path, false)
		if err != nil {
			logger.Warn("Skipping hunt file", "path", path, "error", err)
			return nil
		}
		if _, dup := c.hunts[h.ID]; dup {
			logger.Warn("Skipping duplicate hunt", "path", path, "hunt_id", h.ID)
			return nil
		}
		c.hunts[h.ID] = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list hunts: %w", err)
	}

	var exhibits []Exhibit
	if err := readJSONList(filepath.Join(dataDir, "exhibits.json"), &exhibits); err != nil {
		return nil, err
	}
	for _, e := range exhibits {
		c.exhibits[e.ID] = e
	}

	var routes []Route
	if err := readJSONList(filepath.Join(dataDir, "routes.json"), &routes); err != nil {
		return nil, err
	}
	for _, r := range routes {
		c.routes[r.ID] = r
	}

	logger.Info("Content loaded",
		"data_dir", dataDir,
		"hunts", len(c.hunts),
		"exhibits", len(c.exhibits),
		"routes", len(c.routes))
	return c, nil
}

// ReadHuntFile decodes and validates one hunt file. strict rejects unknown
// JSON fields.
func ReadHuntFile(path string, strict bool) (*hunt.TreasureHunt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hunt file: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	if strict {
		dec.DisallowUnknownFields()
	}
	var h hunt.TreasureHunt
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hunt: %w", err)
	}
	if err := ValidateHunt(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

func readJSONList(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ValidateHunt checks the structural rules every hunt must satisfy.
func ValidateHunt(h *hunt.TreasureHunt) error {
	if strings.TrimSpace(h.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidHunt)
	}
	if len(h.Clues) == 0 {
		return fmt.Errorf("%w: hunt %s has no clues", ErrInvalidHunt, h.ID)
	}
	seen := make(map[string]bool, len(h.Clues))
	for i, clue := range h.Clues {
		if strings.TrimSpace(clue.ID) == "" {
			return fmt.Errorf("%w: hunt %s clue %d has no id", ErrInvalidHunt, h.ID, i+1)
		}
		if seen[clue.ID] {
			return fmt.Errorf("%w: hunt %s has duplicate clue id %q", ErrInvalidHunt, h.ID, clue.ID)
		}
		seen[clue.ID] = true
		if hunt.NormalizeAnswer(clue.Answer) == "" {
			return fmt.Errorf("%w: hunt %s clue %s has no answer", ErrInvalidHunt, h.ID, clue.ID)
		}
	}
	return nil
}

// GetHunt returns a hunt by id.
func (c *Catalog) GetHunt(id string) (*hunt.TreasureHunt, bool) {
	h, ok := c.hunts[id]
	return h, ok
}

// ListHunts returns all hunts sorted by id.
func (c *Catalog) ListHunts() []*hunt.TreasureHunt {
	out := make([]*hunt.TreasureHunt, 0, len(c.hunts))
	for _, h := range c.hunts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) GetExhibit(id string) (Exhibit, bool) {
	e, ok := c.exhibits[id]
	return e, ok
}

func (c *Catalog) GetRoute(id string) (Route, bool) {
	r, ok := c.routes[id]
	return r, ok
}

// HasEntity reports whether an exhibit or route with id exists.
func (c *Catalog) HasEntity(kind progress.VisitKind, id string) bool {
	switch kind {
	case progress.VisitExhibit:
		_, ok := c.exhibits[id]
		return ok
	case progress.VisitRoute:
		_, ok := c.routes[id]
		return ok
	default:
		return false
	}
}
