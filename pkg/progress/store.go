package progress

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Backend is the durable blob store behind a Store. LoadSnapshot returns
// nil, nil when the profile has never been saved.
type Backend interface {
	LoadSnapshot(ctx context.Context, profileID uuid.UUID) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, profileID uuid.UUID, snap *Snapshot) error
	DeleteSnapshot(ctx context.Context, profileID uuid.UUID) error
}

// ChangeType identifies which mutation produced a Change.
type ChangeType string

const (
	ChangeProgress ChangeType = "progress.updated"
	ChangeVisited  ChangeType = "progress.visited"
	ChangeReset    ChangeType = "progress.reset"
)

// Change is delivered to observers after every mutation.
type Change struct {
	Type      ChangeType   `json:"type"`
	ProfileID uuid.UUID    `json:"profile_id"`
	HuntID    string       `json:"hunt_id,omitempty"`
	Progress  HuntProgress `json:"progress"`
	Kind      VisitKind    `json:"kind,omitempty"`
	EntityID  string       `json:"entity_id,omitempty"`
}

// Observer receives changes. It runs on the mutating goroutine, outside the
// store lock, so it may read from the store.
type Observer func(Change)

const defaultWriteTimeout = 5 * time.Second

// Store is the in-memory progress cache for one profile. It is hydrated once
// from the Backend and writes the full snapshot back after mutations.
// A single writer goroutine saves the latest snapshot; mutations made while
// a save is in flight are coalesced into the next one.
type Store struct {
	profileID    uuid.UUID
	backend      Backend
	logger       *slog.Logger
	writeTimeout time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	snap      *Snapshot
	closed    bool
	observers map[int]Observer
	nextObs   int

	pending  []*Flush
	deleting bool
	wake     chan struct{}
	done     chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithWriteTimeout bounds each durable write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithClock overrides time.Now, used for startedAt and updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithObserver subscribes an observer before the store accepts mutations.
func WithObserver(obs Observer) Option {
	return func(s *Store) {
		s.observers[s.nextObs] = obs
		s.nextObs++
	}
}

// Open hydrates the store for profileID and starts its writer.
func Open(ctx context.Context, profileID uuid.UUID, backend Backend, logger *slog.Logger, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("progress backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	snap, err := backend.LoadSnapshot(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress snapshot: %w", err)
	}
	if snap == nil {
		snap = NewSnapshot()
	} else if err := snap.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate progress snapshot: %w", err)
	}

	s := &Store{
		profileID:    profileID,
		backend:      backend,
		logger:       logger.With("profile_id", profileID.String()),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
		snap:         snap,
		observers:    make(map[int]Observer),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.runWriter()

	s.logger.Debug("Progress store hydrated",
		"hunts", len(snap.TreasureHuntProgress),
		"visited_exhibits", len(snap.Progress.VisitedExhibits),
		"visited_routes", len(snap.Progress.VisitedRoutes))
	return s, nil
}

// ProfileID returns the profile this store belongs to.
func (s *Store) ProfileID() uuid.UUID {
	return s.profileID
}

// GetProgress returns the record for huntID, or the zero record
// {CurrentStep: 0, Completed: false} when the hunt was never touched.
func (s *Store) GetProgress(huntID string) HuntProgress {
	p, _ := s.Lookup(huntID)
	return p
}

// Lookup is GetProgress with an explicit presence flag.
func (s *Store) Lookup(huntID string) (HuntProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.snap.TreasureHuntProgress[huntID]
	return p.clone(), ok
}

// SetProgress replaces the record for huntID. A record that lowers
// CurrentStep or clears Completed is rejected with ErrRegression.
func (s *Store) SetProgress(huntID string, rec HuntProgress) (*Flush, error) {
	if huntID == "" {
		return nil, fmt.Errorf("hunt id is required")
	}
	if rec.CurrentStep < 0 {
		return nil, fmt.Errorf("current step must not be negative")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	cur := s.snap.TreasureHuntProgress[huntID]
	if rec.CurrentStep < cur.CurrentStep || (cur.Completed && !rec.Completed) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: hunt %s at step %d", ErrRegression, huntID, cur.CurrentStep)
	}
	rec = rec.clone()
	if rec.StartedAt == nil && cur.StartedAt != nil {
		rec.StartedAt = cur.StartedAt
	}
	s.snap.TreasureHuntProgress[huntID] = rec
	flush := s.enqueueLocked()
	s.mu.Unlock()

	s.notify(Change{Type: ChangeProgress, ProfileID: s.profileID, HuntID: huntID, Progress: rec.clone()})
	return flush, nil
}

// MarkCompleted sets Completed and raises CurrentStep to at least minStep,
// the hunt's clue count, so a completed record never points inside the hunt.
// StartedAt is stamped if the hunt had not been started.
func (s *Store) MarkCompleted(huntID string, minStep int) (*Flush, error) {
	if huntID == "" {
		return nil, fmt.Errorf("hunt id is required")
	}
	if minStep < 0 {
		return nil, fmt.Errorf("minimum step must not be negative")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	rec := s.snap.TreasureHuntProgress[huntID].clone()
	rec.CurrentStep = max(rec.CurrentStep, minStep)
	rec.Completed = true
	if rec.StartedAt == nil {
		started := s.now().UTC()
		rec.StartedAt = &started
	}
	s.snap.TreasureHuntProgress[huntID] = rec
	flush := s.enqueueLocked()
	s.mu.Unlock()

	s.notify(Change{Type: ChangeProgress, ProfileID: s.profileID, HuntID: huntID, Progress: rec.clone()})
	return flush, nil
}

// MarkVisited adds entityID to the visited list for kind. Visiting an entity
// twice is a no-op and does not schedule a write.
func (s *Store) MarkVisited(kind VisitKind, entityID string) (*Flush, error) {
	if _, err := ParseVisitKind(string(kind)); err != nil {
		return nil, err
	}
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	list := s.snap.Progress.list(kind)
	if slices.Contains(*list, entityID) {
		s.mu.Unlock()
		return resolvedFlush(nil), nil
	}
	*list = append(*list, entityID)
	flush := s.enqueueLocked()
	s.mu.Unlock()

	s.notify(Change{Type: ChangeVisited, ProfileID: s.profileID, Kind: kind, EntityID: entityID})
	return flush, nil
}

// Visited returns a copy of the visited list for kind.
func (s *Store) Visited(kind VisitKind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.snap.Progress.list(kind)
	if list == nil {
		return nil
	}
	return slices.Clone(*list)
}

// Snapshot returns a deep copy of the current in-memory state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Reset clears every progress record and visited list and deletes the
// durable snapshot.
func (s *Store) Reset() (*Flush, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.snap = NewSnapshot()
	flush := s.enqueueLocked()
	s.deleting = true
	s.mu.Unlock()

	s.logger.Info("Progress reset")
	s.notify(Change{Type: ChangeReset, ProfileID: s.profileID})
	return flush, nil
}

// Subscribe registers obs and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Close stops accepting mutations and waits for queued writes to finish.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.wake)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out draining progress writes: %w", ctx.Err())
	}
}

// enqueueLocked stamps the snapshot, records a pending Flush and wakes the
// writer without blocking. Must be called with s.mu held for writing on an
// open store.
func (s *Store) enqueueLocked() *Flush {
	s.snap.UpdatedAt = s.now().UTC()
	s.deleting = false
	f := newFlush()
	s.pending = append(s.pending, f)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return f
}

func (s *Store) runWriter() {
	defer close(s.done)
	for range s.wake {
		s.writePending()
	}
	s.writePending()
}

// writePending saves the current snapshot and resolves every Flush queued
// since the previous write.
func (s *Store) writePending() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	flushes := s.pending
	s.pending = nil
	deleting := s.deleting
	s.deleting = false
	snap := s.snap.Clone()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	var err error
	if deleting {
		err = s.backend.DeleteSnapshot(ctx, s.profileID)
	} else {
		err = s.backend.SaveSnapshot(ctx, s.profileID, snap)
	}
	cancel()
	if err != nil {
		// No retry: the next mutation writes the full snapshot again.
		s.logger.Error("Failed to persist progress", "error", err, "coalesced", len(flushes))
		err = fmt.Errorf("failed to persist progress: %w", err)
	}
	for _, f := range flushes {
		f.resolve(err)
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.RUnlock()

	for _, obs := range observers {
		obs(c)
	}
}
