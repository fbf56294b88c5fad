package hunt

import (
	"strings"

	"golang.org/x/text/cases"
)

// Verdict is the outcome of checking a submitted answer.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictMissing   Verdict = "missing_answer"
)

// NormalizeAnswer trims surrounding whitespace and case-folds s.
func NormalizeAnswer(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// CheckAnswer compares a submitted answer with the expected one. Blank input
// is VerdictMissing; otherwise matching is exact after normalization.
func CheckAnswer(expected, submitted string) Verdict {
	got := NormalizeAnswer(submitted)
	if got == "" {
		return VerdictMissing
	}
	if got != NormalizeAnswer(expected) {
		return VerdictIncorrect
	}
	return VerdictCorrect
}
