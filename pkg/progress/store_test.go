package progress_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/progress"
	"github.com/jwebster45206/museum-guide/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func openStore(t *testing.T, backend *storage.MockStorage, id uuid.UUID, opts ...progress.Option) *progress.Store {
	t.Helper()
	s, err := progress.Open(context.Background(), id, backend, testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func wait(t *testing.T, f *progress.Flush) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestStore_DefaultProgress(t *testing.T) {
	s := openStore(t, storage.NewMockStorage(), uuid.New())

	p := s.GetProgress("never-seen")
	assert.Equal(t, 0, p.CurrentStep)
	assert.False(t, p.Completed)
	assert.Nil(t, p.StartedAt)
	assert.False(t, p.Started())

	_, ok := s.Lookup("never-seen")
	assert.False(t, ok)
}

func TestStore_SetProgressPersists(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	s := openStore(t, backend, id)

	flush, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2})
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))

	saved, err := backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, progress.SnapshotVersion, saved.Version)
	assert.Equal(t, 2, saved.TreasureHuntProgress["hunt1"].CurrentStep)
	assert.False(t, saved.UpdatedAt.IsZero())
}

func TestStore_SetProgressRejectsRegression(t *testing.T) {
	s := openStore(t, storage.NewMockStorage(), uuid.New())

	_, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 3})
	require.NoError(t, err)

	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2})
	assert.ErrorIs(t, err, progress.ErrRegression)

	_, err = s.MarkCompleted("hunt1", 3)
	require.NoError(t, err)
	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 3})
	assert.ErrorIs(t, err, progress.ErrRegression)

	p := s.GetProgress("hunt1")
	assert.Equal(t, 3, p.CurrentStep)
	assert.True(t, p.Completed)

	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: -1})
	assert.Error(t, err)
	_, err = s.SetProgress("", progress.HuntProgress{})
	assert.Error(t, err)
}

func TestStore_SetProgressKeepsStartedAt(t *testing.T) {
	s := openStore(t, storage.NewMockStorage(), uuid.New())

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2, StartedAt: &started})
	require.NoError(t, err)
	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 3})
	require.NoError(t, err)

	p := s.GetProgress("hunt1")
	require.NotNil(t, p.StartedAt)
	assert.True(t, started.Equal(*p.StartedAt))

	// Returned records are copies
	*p.StartedAt = time.Time{}
	assert.True(t, started.Equal(*s.GetProgress("hunt1").StartedAt))
}

func TestStore_MarkCompletedKeepsStep(t *testing.T) {
	s := openStore(t, storage.NewMockStorage(), uuid.New())

	_, err := s.SetProgress("hunt2", progress.HuntProgress{CurrentStep: 3})
	require.NoError(t, err)
	flush, err := s.MarkCompleted("hunt2", 3)
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))

	p := s.GetProgress("hunt2")
	assert.Equal(t, 3, p.CurrentStep)
	assert.True(t, p.Completed)
}

func TestStore_MarkCompletedRaisesStep(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s := openStore(t, storage.NewMockStorage(), uuid.New(), progress.WithClock(func() time.Time { return fixed }))

	_, err := s.MarkCompleted("hunt1", 4)
	require.NoError(t, err)

	p := s.GetProgress("hunt1")
	assert.True(t, p.Completed)
	assert.Equal(t, 4, p.CurrentStep)
	require.NotNil(t, p.StartedAt)
	assert.True(t, fixed.Equal(*p.StartedAt))

	// A higher step is kept
	_, err = s.SetProgress("hunt2", progress.HuntProgress{CurrentStep: 5})
	require.NoError(t, err)
	_, err = s.MarkCompleted("hunt2", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, s.GetProgress("hunt2").CurrentStep)

	_, err = s.MarkCompleted("hunt3", -1)
	assert.Error(t, err)
	_, err = s.MarkCompleted("", 1)
	assert.Error(t, err)
}

func TestStore_MarkVisitedIsIdempotent(t *testing.T) {
	backend := storage.NewMockStorage()
	s := openStore(t, backend, uuid.New())

	flush, err := s.MarkVisited(progress.VisitExhibit, "ex1")
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))
	assert.Equal(t, 1, backend.SaveCalls())

	flush, err = s.MarkVisited(progress.VisitExhibit, "ex1")
	require.NoError(t, err)
	select {
	case <-flush.Done():
	default:
		t.Fatal("expected an already resolved flush for a repeat visit")
	}
	assert.NoError(t, flush.Err())
	assert.Equal(t, 1, backend.SaveCalls())
	assert.Equal(t, []string{"ex1"}, s.Visited(progress.VisitExhibit))

	flush, err = s.MarkVisited(progress.VisitRoute, "ex1")
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))
	assert.Equal(t, []string{"ex1"}, s.Visited(progress.VisitRoute))
}

func TestStore_MarkVisitedUnknownKind(t *testing.T) {
	s := openStore(t, storage.NewMockStorage(), uuid.New())

	_, err := s.MarkVisited(progress.VisitKind("gift_shop"), "x")
	assert.ErrorIs(t, err, progress.ErrUnknownVisitKind)

	_, err = s.MarkVisited(progress.VisitExhibit, "")
	assert.Error(t, err)
}

func TestStore_HydratesOnce(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()

	snap := progress.NewSnapshot()
	snap.TreasureHuntProgress["hunt1"] = progress.HuntProgress{CurrentStep: 2}
	snap.Progress.VisitedExhibits = []string{"ex1"}
	backend.PutSnapshot(id, snap)

	s := openStore(t, backend, id)
	assert.Equal(t, 2, s.GetProgress("hunt1").CurrentStep)
	assert.Equal(t, []string{"ex1"}, s.Visited(progress.VisitExhibit))

	// Later backend changes are not re-read
	other := progress.NewSnapshot()
	backend.PutSnapshot(id, other)
	assert.Equal(t, 2, s.GetProgress("hunt1").CurrentStep)
}

func TestStore_MigratesLegacySnapshot(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	backend.PutSnapshot(id, &progress.Snapshot{
		Progress: progress.Visits{VisitedExhibits: []string{"ex1", "ex1", "ex2"}},
	})

	s := openStore(t, backend, id)
	snap := s.Snapshot()
	assert.Equal(t, progress.SnapshotVersion, snap.Version)
	assert.NotNil(t, snap.TreasureHuntProgress)
	assert.Equal(t, []string{"ex1", "ex2"}, snap.Progress.VisitedExhibits)
	assert.Equal(t, []string{}, snap.Progress.VisitedRoutes)
}

func TestStore_RejectsNewerSnapshot(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	snap := progress.NewSnapshot()
	snap.Version = progress.SnapshotVersion + 1
	backend.PutSnapshot(id, snap)

	_, err := progress.Open(context.Background(), id, backend, testLogger())
	assert.Error(t, err)
}

func TestStore_SaveErrorReportedOnFlush(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	s := openStore(t, backend, id)

	saveErr := errors.New("disk full")
	backend.SetSaveError(saveErr)

	flush, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2})
	require.NoError(t, err, "mutation succeeds in memory even if the write fails")
	err = wait(t, flush)
	assert.ErrorIs(t, err, saveErr)
	assert.ErrorIs(t, flush.Err(), saveErr)
	assert.Equal(t, 2, s.GetProgress("hunt1").CurrentStep)

	// The next successful write carries the whole state
	backend.SetSaveError(nil)
	flush, err = s.MarkVisited(progress.VisitExhibit, "ex3")
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))

	saved, err := backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.TreasureHuntProgress["hunt1"].CurrentStep)
	assert.Equal(t, []string{"ex3"}, saved.Progress.VisitedExhibits)
}

func TestStore_CoalescesWritesToLatestState(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	s := openStore(t, backend, id)

	var last *progress.Flush
	for step := 1; step <= 20; step++ {
		f, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: step})
		require.NoError(t, err)
		last = f
	}
	require.NoError(t, wait(t, last))

	saved, err := backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 20, saved.TreasureHuntProgress["hunt1"].CurrentStep)
	assert.GreaterOrEqual(t, backend.SaveCalls(), 1)
	assert.LessOrEqual(t, backend.SaveCalls(), 20)
}

// stallingBackend blocks every save until release is closed.
type stallingBackend struct {
	*storage.MockStorage
	release chan struct{}
}

func (b *stallingBackend) SaveSnapshot(ctx context.Context, profileID uuid.UUID, snap *progress.Snapshot) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.MockStorage.SaveSnapshot(ctx, profileID, snap)
}

func TestStore_StalledBackendDoesNotBlockReads(t *testing.T) {
	backend := &stallingBackend{MockStorage: storage.NewMockStorage(), release: make(chan struct{})}
	id := uuid.New()
	s, err := progress.Open(context.Background(), id, backend, testLogger(), progress.WithWriteTimeout(time.Minute))
	require.NoError(t, err)

	mutated := make(chan *progress.Flush)
	go func() {
		var last *progress.Flush
		for i := 0; i < 200; i++ {
			f, err := s.MarkVisited(progress.VisitExhibit, fmt.Sprintf("ex%d", i))
			if err != nil {
				t.Error(err)
				break
			}
			last = f
		}
		mutated <- last
	}()

	var last *progress.Flush
	select {
	case last = <-mutated:
	case <-time.After(time.Second):
		t.Fatal("mutations blocked while durable writes are stalled")
	}

	read := make(chan progress.HuntProgress, 1)
	go func() { read <- s.GetProgress("hunt1") }()
	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatal("GetProgress blocked while durable writes are stalled")
	}
	assert.Len(t, s.Visited(progress.VisitExhibit), 200)

	close(backend.release)
	require.NotNil(t, last)
	require.NoError(t, wait(t, last))
	require.NoError(t, s.Close(context.Background()))

	saved, err := backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, saved.Progress.VisitedExhibits, 200)
	assert.Less(t, backend.SaveCalls(), 200, "stalled writes are coalesced")
}

func TestStore_Observers(t *testing.T) {
	var mu sync.Mutex
	var changes []progress.Change
	record := func(c progress.Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	}

	id := uuid.New()
	s := openStore(t, storage.NewMockStorage(), id, progress.WithObserver(record))

	_, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2})
	require.NoError(t, err)
	_, err = s.MarkVisited(progress.VisitRoute, "route1")
	require.NoError(t, err)
	_, err = s.MarkVisited(progress.VisitRoute, "route1")
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, changes, 2)
	assert.Equal(t, progress.ChangeProgress, changes[0].Type)
	assert.Equal(t, id, changes[0].ProfileID)
	assert.Equal(t, "hunt1", changes[0].HuntID)
	assert.Equal(t, 2, changes[0].Progress.CurrentStep)
	assert.Equal(t, progress.ChangeVisited, changes[1].Type)
	assert.Equal(t, progress.VisitRoute, changes[1].Kind)
	assert.Equal(t, "route1", changes[1].EntityID)
	mu.Unlock()
}

func TestStore_ObserverCanReadStore(t *testing.T) {
	s := openStore(t, storage.NewMockStorage(), uuid.New())

	var seen int
	cancel := s.Subscribe(func(c progress.Change) {
		seen = s.GetProgress(c.HuntID).CurrentStep
	})

	_, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, seen)

	cancel()
	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 5})
	require.NoError(t, err)
	assert.Equal(t, 4, seen)
}

func TestStore_Reset(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	s := openStore(t, backend, id)

	_, err := s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2})
	require.NoError(t, err)
	_, err = s.MarkVisited(progress.VisitExhibit, "ex1")
	require.NoError(t, err)

	flush, err := s.Reset()
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))

	assert.Equal(t, progress.HuntProgress{}, s.GetProgress("hunt1"))
	assert.Empty(t, s.Visited(progress.VisitExhibit))

	saved, err := backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, saved, "reset deletes the durable snapshot")
	assert.GreaterOrEqual(t, backend.DeleteCalls(), 1)

	// A later mutation writes a fresh snapshot
	flush, err = s.MarkVisited(progress.VisitRoute, "route1")
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))
	saved, err = backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Empty(t, saved.TreasureHuntProgress)
	assert.Equal(t, []string{"route1"}, saved.Progress.VisitedRoutes)
}

func TestStore_ClosedRejectsMutations(t *testing.T) {
	backend := storage.NewMockStorage()
	s, err := progress.Open(context.Background(), uuid.New(), backend, testLogger())
	require.NoError(t, err)

	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 1})
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, backend.SaveCalls(), "close drains pending writes")

	_, err = s.SetProgress("hunt1", progress.HuntProgress{CurrentStep: 2})
	assert.ErrorIs(t, err, progress.ErrStoreClosed)
	_, err = s.MarkCompleted("hunt1", 1)
	assert.ErrorIs(t, err, progress.ErrStoreClosed)
	_, err = s.MarkVisited(progress.VisitExhibit, "ex1")
	assert.ErrorIs(t, err, progress.ErrStoreClosed)
	_, err = s.Reset()
	assert.ErrorIs(t, err, progress.ErrStoreClosed)

	// Reads still work and Close is repeatable
	assert.Equal(t, 1, s.GetProgress("hunt1").CurrentStep)
	assert.NoError(t, s.Close(context.Background()))
}

func TestStore_ClockStampsUpdatedAt(t *testing.T) {
	backend := storage.NewMockStorage()
	id := uuid.New()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := openStore(t, backend, id, progress.WithClock(func() time.Time { return fixed }))

	flush, err := s.MarkVisited(progress.VisitExhibit, "ex1")
	require.NoError(t, err)
	require.NoError(t, wait(t, flush))

	saved, err := backend.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(saved.UpdatedAt))
}
