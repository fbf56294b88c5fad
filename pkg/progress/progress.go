package progress

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// SnapshotVersion is the current persisted layout version.
const SnapshotVersion = 1

var (
	ErrStoreClosed      = errors.New("progress store is closed")
	ErrUnknownVisitKind = errors.New("unknown visit kind")
	ErrRegression       = errors.New("progress cannot move backwards")
)

// HuntProgress is one user's progress through one treasure hunt.
// CurrentStep counts from 0 ("no steps completed") and never decreases.
type HuntProgress struct {
	CurrentStep int        `json:"currentStep"`
	Completed   bool       `json:"completed"`
	StartedAt   *time.Time `json:"startedAt"`
}

// Started reports whether the record has moved past its default.
func (p HuntProgress) Started() bool {
	return p.CurrentStep > 0 || p.Completed
}

func (p HuntProgress) clone() HuntProgress {
	if p.StartedAt != nil {
		t := *p.StartedAt
		p.StartedAt = &t
	}
	return p
}

// VisitKind selects which visited list an entity belongs to.
type VisitKind string

const (
	VisitExhibit VisitKind = "exhibit"
	VisitRoute   VisitKind = "route"
)

// ParseVisitKind validates a kind received from a caller.
func ParseVisitKind(s string) (VisitKind, error) {
	switch VisitKind(s) {
	case VisitExhibit, VisitRoute:
		return VisitKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVisitKind, s)
	}
}

// Visits holds the visited-entity lists. Each list has set semantics.
type Visits struct {
	VisitedExhibits []string `json:"visitedExhibits"`
	VisitedRoutes   []string `json:"visitedRoutes"`
}

func (v *Visits) list(kind VisitKind) *[]string {
	switch kind {
	case VisitExhibit:
		return &v.VisitedExhibits
	case VisitRoute:
		return &v.VisitedRoutes
	default:
		return nil
	}
}

// Snapshot is the whole persisted blob for a single profile.
type Snapshot struct {
	Version              int                     `json:"version"`
	TreasureHuntProgress map[string]HuntProgress `json:"treasureHuntProgress"`
	Progress             Visits                  `json:"progress"`
	UpdatedAt            time.Time               `json:"updatedAt,omitzero"`
}

// NewSnapshot returns an empty snapshot at the current version.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version:              SnapshotVersion,
		TreasureHuntProgress: make(map[string]HuntProgress),
		Progress: Visits{
			VisitedExhibits: []string{},
			VisitedRoutes:   []string{},
		},
	}
}

// Migrate upgrades a decoded snapshot in place to SnapshotVersion.
// Snapshots written before versioning existed decode with Version 0.
func (s *Snapshot) Migrate() error {
	if s.Version > SnapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, SnapshotVersion)
	}
	if s.TreasureHuntProgress == nil {
		s.TreasureHuntProgress = make(map[string]HuntProgress)
	}
	if s.Progress.VisitedExhibits == nil {
		s.Progress.VisitedExhibits = []string{}
	}
	if s.Progress.VisitedRoutes == nil {
		s.Progress.VisitedRoutes = []string{}
	}
	s.Progress.VisitedExhibits = dedupe(s.Progress.VisitedExhibits)
	s.Progress.VisitedRoutes = dedupe(s.Progress.VisitedRoutes)
	s.Version = SnapshotVersion
	return nil
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Version:              s.Version,
		TreasureHuntProgress: make(map[string]HuntProgress, len(s.TreasureHuntProgress)),
		Progress: Visits{
			VisitedExhibits: slices.Clone(s.Progress.VisitedExhibits),
			VisitedRoutes:   slices.Clone(s.Progress.VisitedRoutes),
		},
		UpdatedAt: s.UpdatedAt,
	}
	for id, p := range s.TreasureHuntProgress {
		out.TreasureHuntProgress[id] = p.clone()
	}
	if out.Progress.VisitedExhibits == nil {
		out.Progress.VisitedExhibits = []string{}
	}
	if out.Progress.VisitedRoutes == nil {
		out.Progress.VisitedRoutes = []string{}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
