package hunt

import "errors"

var (
	ErrHuntNotFound = errors.New("hunt not found")
	ErrClueNotFound = errors.New("clue not found")
	ErrStepLocked   = errors.New("step is not unlocked yet")
)

// Clue is one question/answer step of a hunt.
type Clue struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Hint      string `json:"hint,omitempty"`
	ExhibitID string `json:"exhibit_id,omitempty"` // informational only
	Answer    string `json:"answer"`
	Image     string `json:"image,omitempty"`
}

// TreasureHunt is static content. Clues are completed strictly in order.
type TreasureHunt struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Clues       []Clue `json:"clues"`
	Difficulty  string `json:"difficulty,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Points      int    `json:"points,omitempty"`
}

// TotalSteps is the number of clues.
func (h *TreasureHunt) TotalSteps() int {
	return len(h.Clues)
}

// ClueAt returns the clue for a 1-based step. Steps outside the hunt are
// reported as ErrClueNotFound.
func (h *TreasureHunt) ClueAt(step int) (Clue, error) {
	if step < 1 || step > len(h.Clues) {
		return Clue{}, ErrClueNotFound
	}
	return h.Clues[step-1], nil
}

// HuntSource supplies static hunt definitions.
type HuntSource interface {
	GetHunt(id string) (*TreasureHunt, bool)
}
