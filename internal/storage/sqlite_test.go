package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/progress"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStorage {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := OpenSQLite(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("Failed to open sqlite storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_SaveAndLoad(t *testing.T) {
	store := openTestSQLite(t, filepath.Join(t.TempDir(), "progress.db"))
	ctx := context.Background()
	profileID := uuid.New()

	snap := progress.NewSnapshot()
	snap.TreasureHuntProgress["hunt3"] = progress.HuntProgress{CurrentStep: 3, Completed: true}
	snap.Progress.VisitedExhibits = []string{"ex5"}

	if err := store.SaveSnapshot(ctx, profileID, snap); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	// Upsert replaces the row
	snap.Progress.VisitedRoutes = []string{"route2"}
	if err := store.SaveSnapshot(ctx, profileID, snap); err != nil {
		t.Fatalf("Failed to overwrite snapshot: %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx, profileID)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected non-nil snapshot")
	}
	if p := loaded.TreasureHuntProgress["hunt3"]; !p.Completed || p.CurrentStep != 3 {
		t.Errorf("Unexpected hunt3 progress: %+v", p)
	}
	if len(loaded.Progress.VisitedRoutes) != 1 || loaded.Progress.VisitedRoutes[0] != "route2" {
		t.Errorf("Expected [route2], got %v", loaded.Progress.VisitedRoutes)
	}

	var rows int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM progress_snapshots`).Scan(&rows); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 row, got %d", rows)
	}
}

func TestSQLiteStorage_LoadMissingAndDelete(t *testing.T) {
	store := openTestSQLite(t, filepath.Join(t.TempDir(), "progress.db"))
	ctx := context.Background()
	profileID := uuid.New()

	snap, err := store.LoadSnapshot(ctx, profileID)
	if err != nil {
		t.Fatalf("Expected no error for missing snapshot, got %v", err)
	}
	if snap != nil {
		t.Fatalf("Expected nil snapshot, got %+v", snap)
	}

	if err := store.SaveSnapshot(ctx, profileID, progress.NewSnapshot()); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if err := store.DeleteSnapshot(ctx, profileID); err != nil {
		t.Fatalf("Failed to delete snapshot: %v", err)
	}
	snap, err = store.LoadSnapshot(ctx, profileID)
	if err != nil || snap != nil {
		t.Errorf("Expected deleted snapshot to be gone, got %+v, %v", snap, err)
	}

	if err := store.SaveSnapshot(ctx, profileID, nil); err == nil {
		t.Error("Expected error for nil snapshot")
	}
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	ctx := context.Background()
	profileID := uuid.New()

	first := openTestSQLite(t, path)
	snap := progress.NewSnapshot()
	snap.TreasureHuntProgress["hunt1"] = progress.HuntProgress{CurrentStep: 2}
	if err := first.SaveSnapshot(ctx, profileID, snap); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// Migrations are applied once; reopening must not fail
	second := openTestSQLite(t, path)
	loaded, err := second.LoadSnapshot(ctx, profileID)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if loaded == nil || loaded.TreasureHuntProgress["hunt1"].CurrentStep != 2 {
		t.Errorf("Expected hunt1 at step 2, got %+v", loaded)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := OpenSQLite(context.Background(), "  ", logger); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	up := extractUpMigration(content)
	if up != "\nCREATE TABLE a (id INTEGER);\n" {
		t.Errorf("Unexpected up section: %q", up)
	}

	plain := "CREATE TABLE b (id INTEGER);"
	if got := extractUpMigration(plain); got != plain {
		t.Errorf("Expected whole file without markers, got %q", got)
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	store := openTestSQLite(t, filepath.Join(t.TempDir(), "progress.db"))
	ctx := context.Background()

	extra := fstest.MapFS{
		"002_extra.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE extra (id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE extra;\n")},
		"README.md":     {Data: []byte("not a migration")},
	}
	for range 2 {
		if err := applyMigrations(ctx, store.db, extra); err != nil {
			t.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	var applied int
	if err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE name = '002_extra.sql'`,
	).Scan(&applied); err != nil {
		t.Fatalf("Failed to query migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("Expected migration recorded once, got %d", applied)
	}
}
