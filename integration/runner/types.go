package runner

import (
	"time"

	"github.com/google/uuid"
)

// Step actions understood by the runner
const (
	ActionAnswer  = "answer"
	ActionAdvance = "advance"
	ActionVisit   = "visit"
	ActionStatus  = "status"
	ActionReset   = "reset"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one API interaction and its expected outcome.
// Hunt and Step apply to answer, advance and status; Kind and ID to visit.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action"`
	Hunt         string       `json:"hunt,omitempty"`
	Step         int          `json:"step,omitempty"`
	Answer       string       `json:"answer,omitempty"`
	Kind         string       `json:"kind,omitempty"`
	ID           string       `json:"id,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	StatusCode  *int     `json:"status_code,omitempty"`  // Defaults to 200
	Verdict     *string  `json:"verdict,omitempty"`      // answer steps
	Stage       *string  `json:"stage,omitempty"`        // hunt stage after the step
	CurrentStep *int     `json:"current_step,omitempty"` // stored counter after the step
	Completed   *bool    `json:"completed,omitempty"`
	Visited     []string `json:"visited,omitempty"` // visit steps, order independent
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	ProfileID uuid.UUID // Fresh profile used for this run
}
