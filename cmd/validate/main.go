package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/museum-guide/pkg/content"
	"github.com/jwebster45206/museum-guide/pkg/hunt"
)

var snakeCaseID = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <hunt.json> [hunt.json...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		if err := validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

func validateFile(filename string) error {
	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("hunt file must have .json extension: %s", baseName)
	}

	h, err := content.ReadHuntFile(filename, true)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	if errs := validateIDs(h); len(errs) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(errs, "\n"))
	}
	return nil
}

// validateIDs enforces lowercase snake_case ids on the hunt and its clues
func validateIDs(h *hunt.TreasureHunt) []string {
	var errs []string
	if !snakeCaseID.MatchString(h.ID) {
		errs = append(errs, fmt.Sprintf("  hunt id %q must be lowercase snake_case", h.ID))
	}
	for i, c := range h.Clues {
		if !snakeCaseID.MatchString(c.ID) {
			errs = append(errs, fmt.Sprintf("  clue %d id %q must be lowercase snake_case", i+1, c.ID))
		}
		if c.ExhibitID != "" && !snakeCaseID.MatchString(c.ExhibitID) {
			errs = append(errs, fmt.Sprintf("  clue %d exhibit_id %q must be lowercase snake_case", i+1, c.ExhibitID))
		}
		if strings.TrimSpace(c.Question) == "" {
			errs = append(errs, fmt.Sprintf("  clue %d has no question", i+1))
		}
	}
	return errs
}
