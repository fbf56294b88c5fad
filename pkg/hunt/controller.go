package hunt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/museum-guide/pkg/progress"
)

// ProgressStore is the slice of progress.Store the controller needs.
type ProgressStore interface {
	GetProgress(huntID string) progress.HuntProgress
	SetProgress(huntID string, rec progress.HuntProgress) (*progress.Flush, error)
	MarkCompleted(huntID string, minStep int) (*progress.Flush, error)
}

// AnswerResult is returned by SubmitAnswer. A wrong or blank answer is a
// verdict, not an error.
type AnswerResult struct {
	HuntID   string                `json:"hunt_id"`
	Step     int                   `json:"step"`
	Verdict  Verdict               `json:"verdict"`
	Last     bool                  `json:"last"`
	Progress progress.HuntProgress `json:"progress"`
}

// Controller validates answers and advances progress for one profile.
type Controller struct {
	hunts  HuntSource
	store  ProgressStore
	logger *slog.Logger
	now    func() time.Time
}

// NewController wires a controller to its content and progress store.
func NewController(hunts HuntSource, store ProgressStore, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		hunts:  hunts,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (c *Controller) hunt(huntID string) (*TreasureHunt, error) {
	h, ok := c.hunts.GetHunt(huntID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHuntNotFound, huntID)
	}
	return h, nil
}

// Clue returns the clue at a 1-based step.
func (c *Controller) Clue(huntID string, step int) (Clue, error) {
	h, err := c.hunt(huntID)
	if err != nil {
		return Clue{}, err
	}
	clue, err := h.ClueAt(step)
	if err != nil {
		return Clue{}, fmt.Errorf("%w: hunt %s step %d", err, huntID, step)
	}
	return clue, nil
}

// Status reports the stage and completion of a hunt.
func (c *Controller) Status(huntID string) (Status, error) {
	h, err := c.hunt(huntID)
	if err != nil {
		return Status{}, err
	}
	return newStatus(h, c.store.GetProgress(huntID)), nil
}

// SubmitAnswer checks answer against the clue at step. It never changes
// progress; a correct answer is followed by an explicit Advance.
func (c *Controller) SubmitAnswer(huntID string, step int, answer string) (AnswerResult, error) {
	h, err := c.hunt(huntID)
	if err != nil {
		return AnswerResult{}, err
	}
	clue, err := h.ClueAt(step)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("%w: hunt %s step %d", err, huntID, step)
	}

	verdict := CheckAnswer(clue.Answer, answer)
	c.logger.Debug("Answer checked", "hunt_id", huntID, "step", step, "verdict", verdict)

	return AnswerResult{
		HuntID:   huntID,
		Step:     step,
		Verdict:  verdict,
		Last:     step == h.TotalSteps(),
		Progress: c.store.GetProgress(huntID),
	}, nil
}

// Advance moves past step. Below the last step CurrentStep becomes step+1;
// at the last step the hunt is completed. Steps already passed, or any step
// of a completed hunt, leave progress untouched. Steps beyond the active one
// are rejected with ErrStepLocked.
func (c *Controller) Advance(huntID string, step int) (progress.HuntProgress, *progress.Flush, error) {
	h, err := c.hunt(huntID)
	if err != nil {
		return progress.HuntProgress{}, nil, err
	}
	if _, err := h.ClueAt(step); err != nil {
		return progress.HuntProgress{}, nil, fmt.Errorf("%w: hunt %s step %d", err, huntID, step)
	}

	cur := c.store.GetProgress(huntID)
	active := ActiveStep(cur)
	switch {
	case cur.Completed || step < active:
		return cur, nil, nil
	case step > active:
		return cur, nil, fmt.Errorf("%w: hunt %s step %d (active step %d)", ErrStepLocked, huntID, step, active)
	}

	total := h.TotalSteps()
	if step == total {
		flush, err := c.store.MarkCompleted(huntID, total)
		if err != nil {
			return cur, nil, fmt.Errorf("failed to complete hunt %s: %w", huntID, err)
		}
		c.logger.Info("Hunt completed", "hunt_id", huntID, "points", h.Points)
		return c.store.GetProgress(huntID), flush, nil
	}

	next := cur
	if next.StartedAt == nil {
		started := c.now().UTC()
		next.StartedAt = &started
	}
	next.CurrentStep = step + 1

	flush, err := c.store.SetProgress(huntID, next)
	if err != nil {
		return cur, nil, fmt.Errorf("failed to advance hunt %s: %w", huntID, err)
	}
	c.logger.Debug("Hunt advanced", "hunt_id", huntID, "current_step", next.CurrentStep)
	return next, flush, nil
}
