// Package suite defines the canonical in-memory form of a flow-test suite
// file and the normalization rules that turn a raw parsed document into it.
//
// A Suite is identified by its node_id (unique across a run) and carries an
// ordered list of Steps plus dependency declarations resolved later by
// pkg/graph. Suites are parsed from YAML or JSON (by file extension);
// malformed suites are dropped by the caller with a warning, never aborting
// the run (see pkg/errs.DiscoveryParseError).
package suite

import "strings"

// Priority orders suite execution when the dependency graph leaves ties.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// DefaultPriorityOrder is the tie-break order used when configuration does
// not override priorities.levels.
var DefaultPriorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Metadata carries optional descriptive fields read from a suite file.
type Metadata struct {
	Priority            Priority `yaml:"priority,omitempty" json:"priority,omitempty"`
	EstimatedDurationMs int64    `yaml:"estimated_duration_ms,omitempty" json:"estimated_duration_ms,omitempty"`
	Tags                []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Dependency is a single depends entry. At least one of NodeID/Path must be
// present; both absent makes the entry invalid and it is dropped during
// normalization.
type Dependency struct {
	NodeID string `yaml:"node_id,omitempty" json:"node_id,omitempty"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
}

func (d Dependency) Empty() bool {
	return strings.TrimSpace(d.NodeID) == "" && strings.TrimSpace(d.Path) == ""
}

// Request describes the HTTP call a step issues. String leaves are subject
// to interpolation at execution time; Body is left as a generic value tree
// (map/slice/scalar) so non-string leaves survive interpolation unchanged.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Body    interface{}       `yaml:"body,omitempty" json:"body,omitempty"`
}

// Scenario is a conditional branch evaluated after capture.
type Scenario struct {
	Condition string `yaml:"condition" json:"condition"`
	Then      *Block `yaml:"then,omitempty" json:"then,omitempty"`
	Else      *Block `yaml:"else,omitempty" json:"else,omitempty"`
}

// Block is what a scenario branch appends to the step.
type Block struct {
	Assert  map[string]interface{} `yaml:"assert,omitempty" json:"assert,omitempty"`
	Capture map[string]string      `yaml:"capture,omitempty" json:"capture,omitempty"`
}

// IterationSpec drives repeated execution of a step over an array produced
// by an interpolator expression (variable name, dotted path, js:, $env. or
// $faker.; not JMESPath) evaluated against the current variable store (not
// the response — iteration decides how many times to run before the
// request is made).
type IterationSpec struct {
	Over string `yaml:"over" json:"over"`
	As   string `yaml:"as" json:"as"`
}

// Call invokes a step of another suite, optionally isolating its variable
// context.
type Call struct {
	Test           string                 `yaml:"test" json:"test"`
	Step           string                 `yaml:"step" json:"step"`
	Variables      map[string]interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`
	IsolateContext bool                   `yaml:"isolate_context,omitempty" json:"isolate_context,omitempty"`
	OnError        string                 `yaml:"on_error,omitempty" json:"on_error,omitempty"` // "continue"|"fail"
}

// Step is one unit inside a suite.
type Step struct {
	Name      string                 `yaml:"name" json:"name"`
	StepID    string                 `yaml:"step_id,omitempty" json:"step_id,omitempty"`
	Request   *Request               `yaml:"request,omitempty" json:"request,omitempty"`
	Assert    map[string]interface{} `yaml:"assert,omitempty" json:"assert,omitempty"`
	Capture   map[string]string      `yaml:"capture,omitempty" json:"capture,omitempty"`
	Scenarios []Scenario             `yaml:"scenarios,omitempty" json:"scenarios,omitempty"`
	Iterate   *IterationSpec         `yaml:"iterate,omitempty" json:"iterate,omitempty"`
	Call      *Call                  `yaml:"call,omitempty" json:"call,omitempty"`
}

// ResolvedStepID returns the step's explicit step_id, or a lower-kebab slug
// of its name when absent.
func (s Step) ResolvedStepID() string {
	if strings.TrimSpace(s.StepID) != "" {
		return s.StepID
	}
	return Slugify(s.Name)
}

// Slugify lower-kebabs a human name into a step_id.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Suite is the canonical in-memory form of a discovered suite file.
type Suite struct {
	NodeID    string                 `yaml:"node_id" json:"node_id"`
	SuiteName string                 `yaml:"suite_name" json:"suite_name"`
	Metadata  Metadata               `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Variables map[string]interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`
	Exports   []string               `yaml:"exports,omitempty" json:"exports,omitempty"`
	Depends   []Dependency           `yaml:"depends,omitempty" json:"depends,omitempty"`
	Steps     []Step                 `yaml:"steps,omitempty" json:"steps,omitempty"`

	// FilePath is the absolute or root-relative path the suite was loaded
	// from; used to resolve path-style dependency entries and `call.test`.
	FilePath string `yaml:"-" json:"file_path"`
}

// QualifiedStepID returns "<node_id>::<step_id>".
func QualifiedStepID(nodeID, stepID string) string {
	return nodeID + "::" + stepID
}
