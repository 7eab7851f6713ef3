package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-runtime/pkg/actions"
)

// Step commands
const (
	DoChoose   = "choose"
	DoBack     = "back"
	DoForward  = "forward"
	DoReset    = "reset"
	DoAction   = "action"
	DoSave     = "save"
	DoLoadSave = "load_save"
	DoSaveSlot = "save_slot"
	DoLoadSlot = "load_slot"
	DoRestart  = "restart" // close the session and open it again by ID
	DoLook     = "look"    // read state only
)

// TestSuite defines a playthrough against the API.
// Can either be a regular test with Steps, or a suite that references other Cases.
type TestSuite struct {
	Name  string     `json:"name" yaml:"name"`
	Steps []TestStep `json:"steps,omitempty" yaml:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty" yaml:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one API call and the state expected after it
type TestStep struct {
	Name   string          `json:"name,omitempty" yaml:"name,omitempty"`
	Do     string          `json:"do" yaml:"do"`
	Index  int             `json:"index,omitempty" yaml:"index,omitempty"`   // choose
	Action *actions.Action `json:"action,omitempty" yaml:"action,omitempty"` // action
	Save   string          `json:"save,omitempty" yaml:"save,omitempty"`     // save, load_save, save_slot, load_slot

	// Rejected marks a step the API must refuse (409, 404 or 400)
	Rejected     bool         `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Expectations Expectations `json:"expect" yaml:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Node         *string         `json:"node,omitempty" yaml:"node,omitempty"`
	History      []string        `json:"history,omitempty" yaml:"history,omitempty"`
	CanGoBack    *bool           `json:"can_go_back,omitempty" yaml:"can_go_back,omitempty"`
	CanGoForward *bool           `json:"can_go_forward,omitempty" yaml:"can_go_forward,omitempty"`
	Restored     *bool           `json:"restored,omitempty" yaml:"restored,omitempty"`
	Available    []int           `json:"available,omitempty" yaml:"available,omitempty"` // indexes of available choices
	Inventory    map[string]int  `json:"inventory,omitempty" yaml:"inventory,omitempty"` // item ID to count; 0 means absent
	Vars         map[string]any  `json:"vars,omitempty" yaml:"vars,omitempty"`
	Flags        map[string]bool `json:"flags,omitempty" yaml:"flags,omitempty"`
	TextContains []string        `json:"text_contains,omitempty" yaml:"text_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
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
	SessionID uuid.UUID // session used for this run
}
