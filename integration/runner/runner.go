package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/story-runtime/internal/handlers"
	"github.com/jwebster45206/story-runtime/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner plays test suites against a running story-runtime API
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
		Timeout:           10 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// ParseTestSuite decodes a suite. format is "yaml" or "json".
func ParseTestSuite(data []byte, format string) (TestSuite, error) {
	var suite TestSuite
	var err error
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &suite)
	default:
		err = json.Unmarshal(data, &suite)
	}
	return suite, err
}

// LoadTestSuite loads a test suite from a YAML or JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	suite, err := ParseTestSuite(content, strings.TrimPrefix(filepath.Ext(filename), "."))
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
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
		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite plays a complete test suite in a fresh session
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:     TestJob{Name: suite.Name, Suite: suite},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	var view handlers.SessionView
	if _, err := r.call(ctx, http.MethodPost, "/v1/sessions", nil, &view); err != nil {
		result.Error = fmt.Errorf("failed to open session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	sessionID, err := uuid.Parse(view.SessionID)
	if err != nil {
		result.Error = fmt.Errorf("server returned invalid session ID %q: %w", view.SessionID, err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.SessionID = sessionID
	defer func() {
		_, _ = r.call(context.Background(), http.MethodDelete, "/v1/sessions/"+sessionID.String(), nil, nil)
	}()

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), stepName(step))
		stepResult := r.runStep(ctx, sessionID, step)
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), stepResult.StepName, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, stepResult.StepName, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), stepResult.StepName, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func stepName(step TestStep) string {
	if step.Name != "" {
		return step.Name
	}
	return step.Do
}

// runStep performs one step and checks its expectations
func (r *Runner) runStep(ctx context.Context, sessionID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: stepName(step)}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	view, err := r.perform(ctx, sessionID, step)
	if err == nil {
		err = checkExpectations(step.Expectations, view)
	}
	if err != nil {
		result.Error = err
	} else {
		result.Success = true
	}
	result.Duration = time.Since(start)
	return result
}

// perform issues the step's request and returns the session state after it
func (r *Runner) perform(ctx context.Context, sessionID uuid.UUID, step TestStep) (*handlers.SessionView, error) {
	base := "/v1/sessions/" + sessionID.String()
	var method, path string
	var body any

	switch step.Do {
	case DoChoose:
		method, path, body = http.MethodPost, base+"/choose", handlers.ChooseRequest{Index: step.Index}
	case DoBack, DoForward, DoReset:
		method, path = http.MethodPost, base+"/"+step.Do
	case DoAction:
		if step.Action == nil {
			return nil, fmt.Errorf("step %q has no action", stepName(step))
		}
		method, path, body = http.MethodPost, base+"/actions", step.Action
	case DoSave:
		method, path, body = http.MethodPost, base+"/saves", handlers.SaveRequest{Name: step.Save}
	case DoLoadSave:
		method, path = http.MethodPost, base+"/saves/"+url.PathEscape(step.Save)+"/load"
	case DoSaveSlot:
		method, path = http.MethodPut, base+"/slots/"+url.PathEscape(step.Save)
	case DoLoadSlot:
		method, path = http.MethodPost, base+"/slots/"+url.PathEscape(step.Save)+"/load"
	case DoRestart:
		if _, err := r.call(ctx, http.MethodDelete, base, nil, nil); err != nil {
			return nil, fmt.Errorf("failed to close session: %w", err)
		}
		var view handlers.SessionView
		if _, err := r.call(ctx, http.MethodPost, "/v1/sessions", handlers.CreateSessionRequest{SessionID: sessionID.String()}, &view); err != nil {
			return nil, fmt.Errorf("failed to reopen session: %w", err)
		}
		return &view, nil
	case DoLook:
		return r.getSession(ctx, base)
	default:
		return nil, fmt.Errorf("unknown step command %q", step.Do)
	}

	status, err := r.call(ctx, method, path, body, nil)
	if step.Rejected {
		if err == nil {
			return nil, fmt.Errorf("expected %s %s to be rejected, got %d", method, path, status)
		}
		if status < 400 || status >= 500 {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return r.getSession(ctx, base)
}

func (r *Runner) getSession(ctx context.Context, base string) (*handlers.SessionView, error) {
	var view handlers.SessionView
	if _, err := r.call(ctx, http.MethodGet, base, nil, &view); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &view, nil
}

// call sends a JSON request. Any status outside 2xx is an error; the status
// is returned either way.
func (r *Runner) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// checkExpectations validates the expected state against the session view
func checkExpectations(exp Expectations, view *handlers.SessionView) error {
	if exp.Node != nil && view.NodeID != *exp.Node {
		return fmt.Errorf("expected node %s, got %s", *exp.Node, view.NodeID)
	}

	if exp.History != nil && !slices.Equal(exp.History, view.History) {
		return fmt.Errorf("expected history %v, got %v", exp.History, view.History)
	}

	if exp.CanGoBack != nil && view.CanGoBack != *exp.CanGoBack {
		return fmt.Errorf("expected can_go_back to be %t, got %t", *exp.CanGoBack, view.CanGoBack)
	}
	if exp.CanGoForward != nil && view.CanGoForward != *exp.CanGoForward {
		return fmt.Errorf("expected can_go_forward to be %t, got %t", *exp.CanGoForward, view.CanGoForward)
	}
	if exp.Restored != nil && view.Restored != *exp.Restored {
		return fmt.Errorf("expected restored to be %t, got %t", *exp.Restored, view.Restored)
	}

	if exp.Available != nil {
		var available []int
		for _, c := range view.Choices {
			if c.Available {
				available = append(available, c.Index)
			}
		}
		if !slices.Equal(exp.Available, available) {
			return fmt.Errorf("expected available choices %v, got %v", exp.Available, available)
		}
	}

	ps := view.PlayerState
	if ps == nil {
		ps = state.NewPlayerState()
	}

	for itemID, want := range exp.Inventory {
		if got := ps.Inventory.Count(itemID); got != want {
			return fmt.Errorf("expected %d of %s, got %d", want, itemID, got)
		}
	}

	for key, want := range exp.Vars {
		got, exists := ps.Variables[key]
		if !exists {
			return fmt.Errorf("expected variable %s to be set, but it doesn't exist", key)
		}
		if state.NormalizeValue(got) != state.NormalizeValue(want) {
			return fmt.Errorf("expected variable %s to be %v, got %v", key, want, got)
		}
	}

	for flag, want := range exp.Flags {
		if ps.Flags[flag] != want {
			return fmt.Errorf("expected flag %s to be %t, got %t", flag, want, ps.Flags[flag])
		}
	}

	if len(exp.TextContains) > 0 {
		text := ""
		if view.Node != nil {
			text = strings.ToLower(view.Node.Text)
		}
		for _, s := range exp.TextContains {
			if !strings.Contains(text, strings.ToLower(s)) {
				return fmt.Errorf("expected node text to contain '%s', but it didn't", s)
			}
		}
	}

	return nil
}
