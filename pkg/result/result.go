// Package result defines the aggregated run output the engine hands to
// reporters (spec.md §6), and the exit-code mapping the CLI applies to it.
//
// Grounded on the teacher's persistence/state.go result-snapshot shape
// (a top-level summary plus a nested per-unit list) and on rocketship's
// UUID-keyed health-row naming (other_examples' internal/controlplane/
// persistence/test_health.go), adopted here for RunID/SuiteID.
package result

import (
	"time"

	"github.com/google/uuid"
)

// Status is the tri-state outcome of a step or suite.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// AssertionRow mirrors assert.Result for the public result shape, kept as
// its own type so pkg/result has no import-time dependency on pkg/assert.
type AssertionRow struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
	Passed   bool        `json:"passed"`
	Message  string      `json:"message,omitempty"`
}

// CapturedVariable records one variable written by a step's capture map.
type CapturedVariable struct {
	Name     string      `json:"name"`
	Value    interface{} `json:"value"`
	Resolved bool        `json:"resolved"`
	Warning  string      `json:"warning,omitempty"`
}

// ScenarioTrace records one scenario's evaluation on a step.
type ScenarioTrace struct {
	Condition      string `json:"condition"`
	PreprocessedAs string `json:"preprocessed_as"`
	Truthy         bool   `json:"truthy"`
	Error          string `json:"error,omitempty"`
	BranchApplied  string `json:"branch_applied"` // "then" | "else" | "none"
}

// StepResult is one executed (or skipped) step's outcome (spec.md §4.8).
type StepResult struct {
	StepID              string                 `json:"step_id"`
	QualifiedStepID     string                 `json:"qualified_step_id"`
	Name                string                 `json:"name"`
	Status              Status                 `json:"status"`
	StartedAt           time.Time              `json:"started_at"`
	CompletedAt         time.Time              `json:"completed_at"`
	DurationMs          int64                  `json:"duration_ms"`
	Request             map[string]interface{} `json:"request,omitempty"`
	Response            map[string]interface{} `json:"response,omitempty"`
	AssertionsResults   []AssertionRow         `json:"assertions_results"`
	CapturedVariables   map[string]interface{} `json:"captured_variables"`
	ScenarioEvaluations []ScenarioTrace        `json:"scenario_evaluations,omitempty"`
	Error               string                 `json:"error,omitempty"`
}

// SuiteResult is one suite's outcome, keyed by the rocketship-style UUID
// alongside its declared node_id.
type SuiteResult struct {
	SuiteID      string       `json:"suite_id"`
	NodeID       string       `json:"node_id"`
	SuiteName    string       `json:"suite_name"`
	Status       Status       `json:"status"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  time.Time    `json:"completed_at"`
	DurationMs   int64        `json:"duration_ms"`
	StepsResults []StepResult `json:"steps_results"`
	Error        string       `json:"error,omitempty"`
}

// RunResult is the full aggregated result emitted to reporters (spec.md §6).
type RunResult struct {
	RunID           string    `json:"run_id"`
	ProjectName     string    `json:"project_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TotalDurationMs int64     `json:"total_duration_ms"`

	TotalTests      int     `json:"total_tests"`
	SuccessfulTests int     `json:"successful_tests"`
	FailedTests     int     `json:"failed_tests"`
	SkippedTests    int     `json:"skipped_tests"`
	SuccessRate     float64 `json:"success_rate"`

	SuitesResults        []SuiteResult          `json:"suites_results"`
	GlobalVariablesFinal map[string]interface{} `json:"global_variables_final_state"`
}

// NewRunID / NewSuiteID mint the UUID identifiers used across the result
// tree, grounded on rocketship's uuid.NewString()-keyed health rows.
func NewRunID() string   { return uuid.NewString() }
func NewSuiteID() string { return uuid.NewString() }

// Finalize computes the derived totals (success rate, counts) from the
// suites already appended to r. Called once the run has produced every
// suite result, including synthesized failed/skipped entries for suites
// that never ran after a fatal error (spec.md §6's propagation policy).
// Totals are tallied from steps only — a suite that never ran (a cycle
// abort, or a dependency-failure skip) contributes no steps and so leaves
// TotalTests unchanged; ExitCode separately checks for that case so a
// step-less abort never reads back as a false 100% success.
func (r *RunResult) Finalize() {
	r.TotalTests = 0
	r.SuccessfulTests = 0
	r.FailedTests = 0
	r.SkippedTests = 0

	for _, sr := range r.SuitesResults {
		for _, step := range sr.StepsResults {
			r.TotalTests++
			switch step.Status {
			case StatusSuccess:
				r.SuccessfulTests++
			case StatusFailure:
				r.FailedTests++
			case StatusSkipped:
				r.SkippedTests++
			}
		}
	}

	if r.TotalTests == 0 {
		r.SuccessRate = 100
		return
	}
	r.SuccessRate = float64(r.SuccessfulTests) / float64(r.TotalTests) * 100
}

// ExitCode maps the run outcome to the process exit code (spec.md §6):
// 0 on a perfect run, 1 otherwise. A suite that never executed a step — a
// cycle abort, or a suite skipped because an upstream dependency failed —
// leaves SuccessRate at its zero-tests default of 100, so it is checked
// separately here (spec.md S2, property 3). SIGINT/SIGTERM codes (130/143)
// are applied by the caller directly from the signal handler, not derived
// here.
func (r *RunResult) ExitCode() int {
	if r.SuccessRate == 100 && !r.hasFailedOrSkippedSuite() {
		return ExitCodeSuccess
	}
	return ExitCodeFailure
}

func (r *RunResult) hasFailedOrSkippedSuite() bool {
	for _, sr := range r.SuitesResults {
		if sr.Status == StatusFailure || sr.Status == StatusSkipped {
			return true
		}
	}
	return false
}

const (
	ExitCodeSuccess     = 0
	ExitCodeFailure     = 1
	ExitCodeInterrupted = 130
	ExitCodeTerminated  = 143
)
