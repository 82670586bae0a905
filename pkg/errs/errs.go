// Package errs defines the named error kinds the execution core surfaces,
// per the error handling design: some are fatal (abort the run before it
// starts or continues), others are warnings attached to a result without
// stopping execution.
package errs

import "fmt"

// ConfigurationError signals a malformed or incomplete engine configuration.
// Fatal: the run aborts before discovery.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Message)
}

// DiscoveryParseError signals a suite file that failed to parse or lacked
// node_id/suite_name. Non-fatal: the file is skipped with a warning.
type DiscoveryParseError struct {
	FilePath string
	Err      error
}

func (e *DiscoveryParseError) Error() string {
	return fmt.Sprintf("discovery: %s: %v", e.FilePath, e.Err)
}

func (e *DiscoveryParseError) Unwrap() error { return e.Err }

// CycleError signals one or more dependency cycles. Fatal: the run aborts
// before any step executes.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle(s) detected: %s", formatCycles(e.Cycles))
}

func formatCycles(cycles [][]string) string {
	out := ""
	for i, c := range cycles {
		if i > 0 {
			out += "; "
		}
		for j, n := range c {
			if j > 0 {
				out += " → "
			}
			out += n
		}
	}
	return out
}

// MissingDependencyError signals a depends entry that could not be resolved
// to any discovered suite. Non-fatal: the edge is dropped with a warning.
type MissingDependencyError struct {
	NodeID   string
	NodeID2  string
	FilePath string
}

func (e *MissingDependencyError) Error() string {
	if e.NodeID2 != "" {
		return fmt.Sprintf("suite %q depends on unresolved node_id %q", e.NodeID, e.NodeID2)
	}
	return fmt.Sprintf("suite %q depends on unresolved path %q", e.NodeID, e.FilePath)
}

// AssertionFailure signals one or more failed assertion checks on a step.
type AssertionFailure struct {
	StepID  string
	Reasons []string
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("step %q: %d assertion(s) failed", e.StepID, len(e.Reasons))
}

// CaptureError signals a capture expression that raised during evaluation.
// Non-fatal: the variable is not written, a warning is emitted, the step
// proceeds.
type CaptureError struct {
	Variable string
	Expr     string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %q (%s): %v", e.Variable, e.Expr, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// ScenarioConditionError signals a scenario condition that was not a valid
// JMESPath expression after preprocessing. Marks the step a failure.
type ScenarioConditionError struct {
	Condition string
	Err       error
}

func (e *ScenarioConditionError) Error() string {
	return fmt.Sprintf("scenario condition %q: %v", e.Condition, e.Err)
}

func (e *ScenarioConditionError) Unwrap() error { return e.Err }

// RequestError signals an HTTP transport failure or timeout.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// CallResolutionError signals an invalid call target: absolute path,
// missing step, or a circular call chain.
type CallResolutionError struct {
	Reason string
}

func (e *CallResolutionError) Error() string {
	return fmt.Sprintf("call resolution failed: %s", e.Reason)
}

// HookError wraps a panic/error raised by a hook callback. Logged, never
// affects step/suite status.
type HookError struct {
	Phase string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook error during %s: %v", e.Phase, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }
