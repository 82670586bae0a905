// Package scenario evaluates a step's conditional then/else branches against
// a response context and applies whichever branch matched by appending its
// assertions and merging its captures into the step's results (spec.md §3
// Scenario, §4.6 "Scenarios run after capture").
//
// Grounded on the teacher's integration_orchestrator (workflow.go,
// environment.go), the one place in the teacher's tool layer that branches
// workflow continuation on a runtime condition; generalized here to the
// spec's JMESPath boolean-condition form.
package scenario

import (
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// Block is one side (then or else) of a scenario: assertions to append and
// captures to merge when the condition's truth value selects it.
type Block struct {
	Assert  map[string]interface{}
	Capture map[string]string
}

// Scenario is one conditional branch declared on a step.
type Scenario struct {
	Condition string
	Then      *Block
	Else      *Block
}

// Evaluation is the trace of one scenario's evaluation, reported in the step
// result (spec.md §4.8's "optional scenario evaluation trace").
type Evaluation struct {
	Condition      string
	PreprocessedAs string
	Truthy         bool
	Err            error
	Applied        *Block
}

var bareLiteralPattern = regexp.MustCompile(`\b(true|false|null|-?\d+(\.\d+)?)\b`)
var envTokenPattern = regexp.MustCompile(`\$env\.[A-Za-z_][A-Za-z0-9_]*`)

// Preprocess rewrites a condition so it parses as valid JMESPath: bare
// integers/booleans/nulls are wrapped in backtick literals, and $env.X
// tokens (not resolvable as JMESPath identifiers) are replaced with a null
// literal (spec.md §3 Scenario).
func Preprocess(condition string) string {
	out := envTokenPattern.ReplaceAllString(condition, "`null`")
	out = wrapBareLiterals(out)
	return out
}

// wrapBareLiterals backtick-wraps standalone true/false/null/number tokens
// that are not already inside a quoted string or backtick literal.
func wrapBareLiterals(s string) string {
	var sb strings.Builder
	inQuote := false
	inBacktick := false
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'' && !inBacktick:
			inQuote = !inQuote
			sb.WriteByte(c)
			i++
		case c == '`':
			inBacktick = !inBacktick
			sb.WriteByte(c)
			i++
		case !inQuote && !inBacktick:
			rest := s[i:]
			loc := bareLiteralPattern.FindStringIndex(rest)
			prevIsWord := i > 0 && (s[i-1] == '_' || s[i-1] >= '0' && s[i-1] <= '9' ||
				s[i-1] >= 'a' && s[i-1] <= 'z' || s[i-1] >= 'A' && s[i-1] <= 'Z')
			if loc != nil && loc[0] == 0 && !prevIsWord {
				token := rest[loc[0]:loc[1]]
				sb.WriteString("`" + token + "`")
				i += loc[1]
				continue
			}
			sb.WriteByte(c)
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// Evaluate runs condition (after preprocessing) against ctx and returns
// whether it is truthy, per JMESPath boolean semantics (non-nil, non-false,
// non-empty result).
func Evaluate(condition string, ctx map[string]interface{}) Evaluation {
	pre := Preprocess(condition)
	result, err := jmespath.Search(pre, ctx)
	eval := Evaluation{Condition: condition, PreprocessedAs: pre, Err: err}
	if err != nil {
		return eval
	}
	eval.Truthy = truthy(result)
	return eval
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// Apply evaluates s.Condition and selects Then or Else, filling in
// eval.Applied. Returns the evaluation trace unconditionally, even when
// neither branch exists, for the step result's scenario trace.
func Apply(s Scenario, ctx map[string]interface{}) Evaluation {
	eval := Evaluate(s.Condition, ctx)
	if eval.Truthy {
		eval.Applied = s.Then
	} else {
		eval.Applied = s.Else
	}
	return eval
}
