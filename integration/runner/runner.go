package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/museum-guide/pkg/hunt"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running museum-guide API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite against a fresh profile
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results:   make([]TestResult, 0, len(suite.Steps)),
		ProfileID: uuid.New(),
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)

		stepCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		stepResult := r.runStep(stepCtx, result.ProfileID, step)
		cancel()
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep performs one action and checks its expectations
func (r *Runner) runStep(ctx context.Context, profileID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	status, body, err := r.perform(ctx, profileID, step)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if err := r.checkExpectations(ctx, profileID, step, status, body); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) profileURL(profileID uuid.UUID, rest string) string {
	return r.BaseURL + "/v1/profiles/" + profileID.String() + rest
}

func (r *Runner) perform(ctx context.Context, profileID uuid.UUID, step TestStep) (int, []byte, error) {
	stepPath := "/hunts/" + step.Hunt + "/steps/" + strconv.Itoa(step.Step)

	switch step.Action {
	case ActionAnswer:
		return r.do(ctx, http.MethodPost, r.profileURL(profileID, stepPath+"/answer"), map[string]string{"answer": step.Answer})
	case ActionAdvance:
		return r.do(ctx, http.MethodPost, r.profileURL(profileID, stepPath+"/advance?wait=true"), nil)
	case ActionVisit:
		return r.do(ctx, http.MethodPost, r.profileURL(profileID, "/visits?wait=true"), map[string]string{"kind": step.Kind, "id": step.ID})
	case ActionStatus:
		return r.do(ctx, http.MethodGet, r.profileURL(profileID, "/hunts/"+step.Hunt+"/progress"), nil)
	case ActionReset:
		return r.do(ctx, http.MethodDelete, r.profileURL(profileID, "/progress?wait=true"), nil)
	default:
		return 0, nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

func (r *Runner) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// status fetches the hunt status for stage and counter checks
func (r *Runner) status(ctx context.Context, profileID uuid.UUID, huntID string) (hunt.Status, error) {
	code, body, err := r.do(ctx, http.MethodGet, r.profileURL(profileID, "/hunts/"+huntID+"/progress"), nil)
	if err != nil {
		return hunt.Status{}, err
	}
	if code != http.StatusOK {
		return hunt.Status{}, fmt.Errorf("status request returned %d: %s", code, string(body))
	}
	var st hunt.Status
	if err := json.Unmarshal(body, &st); err != nil {
		return hunt.Status{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// checkExpectations validates the response and, where asked, the stored hunt status
func (r *Runner) checkExpectations(ctx context.Context, profileID uuid.UUID, step TestStep, code int, body []byte) error {
	exp := step.Expectations

	wantCode := http.StatusOK
	if exp.StatusCode != nil {
		wantCode = *exp.StatusCode
	}
	if code != wantCode {
		return fmt.Errorf("expected status %d, got %d: %s", wantCode, code, string(body))
	}
	if code != http.StatusOK {
		return nil
	}

	if exp.Verdict != nil {
		var res hunt.AnswerResult
		if err := json.Unmarshal(body, &res); err != nil {
			return fmt.Errorf("failed to decode answer result: %w", err)
		}
		if string(res.Verdict) != *exp.Verdict {
			return fmt.Errorf("expected verdict %s, got %s", *exp.Verdict, res.Verdict)
		}
	}

	if len(exp.Visited) > 0 {
		var resp struct {
			Visited []string `json:"visited"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("failed to decode visit response: %w", err)
		}
		actual := make(map[string]bool, len(resp.Visited))
		for _, id := range resp.Visited {
			actual[id] = true
		}
		for _, id := range exp.Visited {
			if !actual[id] {
				return fmt.Errorf("expected visited list to contain '%s'. Actual: %v", id, resp.Visited)
			}
		}
		if len(resp.Visited) != len(exp.Visited) {
			return fmt.Errorf("expected visited %v, got %v", exp.Visited, resp.Visited)
		}
	}

	if exp.Stage == nil && exp.CurrentStep == nil && exp.Completed == nil {
		return nil
	}
	if step.Hunt == "" {
		return fmt.Errorf("stage expectations need a hunt")
	}
	st, err := r.status(ctx, profileID, step.Hunt)
	if err != nil {
		return err
	}
	if exp.Stage != nil && string(st.Stage) != *exp.Stage {
		return fmt.Errorf("expected stage %s, got %s", *exp.Stage, st.Stage)
	}
	if exp.CurrentStep != nil && st.Progress.CurrentStep != *exp.CurrentStep {
		return fmt.Errorf("expected current_step to be %d, got %d", *exp.CurrentStep, st.Progress.CurrentStep)
	}
	if exp.Completed != nil && st.Progress.Completed != *exp.Completed {
		return fmt.Errorf("expected completed to be %t, got %t", *exp.Completed, st.Progress.Completed)
	}
	return nil
}
