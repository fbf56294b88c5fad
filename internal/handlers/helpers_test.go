package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/jwebster45206/museum-guide/pkg/content"
	"github.com/jwebster45206/museum-guide/pkg/hunt"
	"github.com/jwebster45206/museum-guide/pkg/progress"
	"github.com/jwebster45206/museum-guide/pkg/storage"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func testCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	hunts := []hunt.TreasureHunt{
		{
			ID:         "hunt1",
			Name:       "Secrets of the Pharaohs",
			Difficulty: "easy",
			Points:     100,
			Clues: []hunt.Clue{
				{ID: "h1c1", Question: "Jackal-headed god?", Hint: "Starts with A", ExhibitID: "ex1", Answer: "anubis"},
				{ID: "h1c2", Question: "Golden face?", ExhibitID: "ex2", Answer: "mask"},
			},
		},
		{
			ID:     "hunt3",
			Name:   "Symbols and Numbers",
			Points: 150,
			Clues: []hunt.Clue{
				{ID: "h3c1", Question: "How many?", Answer: "3"},
				{ID: "h3c2", Question: "Symbol of life?", Answer: "ankh"},
				{ID: "h3c3", Question: "Ba spirit?", Answer: "bird"},
			},
		},
	}
	exhibits := []content.Exhibit{{ID: "ex1", Name: "Painted coffin"}, {ID: "ex2", Name: "Funerary mask"}}
	routes := []content.Route{{ID: "route1", Name: "Highlights"}}

	c, err := content.NewCatalog(hunts, exhibits, routes)
	require.NoError(t, err)
	return c
}

type progressFixture struct {
	mux      *http.ServeMux
	backend  *storage.MockStorage
	registry *progress.Registry
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	backend := storage.NewMockStorage()
	registry := progress.NewRegistry(backend, testLogger())
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	catalog := testCatalog(t)
	mux := http.NewServeMux()
	NewHuntsHandler(catalog, testLogger()).Register(mux)
	NewProgressHandler(catalog, registry, testLogger()).Register(mux)

	return &progressFixture{mux: mux, backend: backend, registry: registry}
}
