package hunt

import "github.com/jwebster45206/museum-guide/pkg/progress"

// Stage is the coarse state of a hunt for one user.
type Stage string

const (
	StageNotStarted Stage = "not_started"
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
)

// StageOf derives the stage from a progress record. A hunt without clues has
// nothing to solve and is reported as completed.
func StageOf(p progress.HuntProgress, totalSteps int) Stage {
	switch {
	case p.Completed || totalSteps == 0:
		return StageCompleted
	case p.CurrentStep == 0:
		return StageNotStarted
	default:
		return StageInProgress
	}
}

// ActiveStep is the 1-based step the user is attempting. Before the first
// advance that is step 1.
func ActiveStep(p progress.HuntProgress) int {
	if p.CurrentStep < 1 {
		return 1
	}
	return p.CurrentStep
}

// Status summarises a hunt's progress for display.
type Status struct {
	HuntID         string                `json:"hunt_id"`
	Stage          Stage                 `json:"stage"`
	ActiveStep     int                   `json:"active_step"`
	TotalSteps     int                   `json:"total_steps"`
	CompletedSteps int                   `json:"completed_steps"`
	Percent        int                   `json:"percent"`
	Progress       progress.HuntProgress `json:"progress"`
}

func newStatus(h *TreasureHunt, p progress.HuntProgress) Status {
	total := h.TotalSteps()
	st := Status{
		HuntID:     h.ID,
		Stage:      StageOf(p, total),
		ActiveStep: min(ActiveStep(p), max(total, 1)),
		TotalSteps: total,
		Progress:   p,
	}
	switch st.Stage {
	case StageCompleted:
		st.CompletedSteps = total
		st.Percent = 100
	case StageInProgress:
		st.CompletedSteps = min(p.CurrentStep-1, total)
		st.Percent = st.CompletedSteps * 100 / total
	}
	return st
}
