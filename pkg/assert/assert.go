// Package assert evaluates a step's declared assertions against a recorded
// HTTP response, producing one result row per check (spec.md §4.5).
//
// Grounded on the teacher's AssertTool.runAssertions / AssertionResult
// (pkg/core/tools/assert.go): a fixed-field params struct walked field by
// field, accumulating pass/fail rows and a failure list. Generalized here
// from AssertTool's fixed JSON-path/body-equals/body-contains fields to the
// spec's per-target structured checks-group form, with `equals` failures
// rendered as a unified diff via go-udiff instead of the teacher's raw
// expected/actual string dump.
package assert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/jmespath/go-jmespath"
)

// Result is one evaluated check (spec.md §4.5: "{ field, expected, actual,
// passed, message }").
type Result struct {
	Field    string
	Expected interface{}
	Actual   interface{}
	Passed   bool
	Message  string
}

// Check normalizes raw into the canonical structured form (spec.md §4.5,
// S6) and evaluates every check against ctx (a response context as produced
// by httpclient.Response.Context, or an equivalent map for non-HTTP modes).
// Returns every check row in evaluation order plus the overall pass/fail.
func Check(raw map[string]interface{}, ctx map[string]interface{}) ([]Result, bool) {
	return evaluateCanonical(normalize(raw), ctx)
}

// canonicalAssert is the normalized, target-grouped assertion block.
type canonicalAssert struct {
	StatusCode     interface{}
	Headers        map[string]map[string]interface{}
	Body           map[string]map[string]interface{}
	ResponseTimeMs map[string]interface{}
}

// normalize rewrites flat "body.<path>" / "headers.<name>" top-level keys
// into the structured per-target checks-group form (spec.md §4.5, S6).
func normalize(raw map[string]interface{}) canonicalAssert {
	c := canonicalAssert{
		Headers: map[string]map[string]interface{}{},
		Body:    map[string]map[string]interface{}{},
	}

	for key, val := range raw {
		switch {
		case key == "status_code":
			c.StatusCode = val
		case key == "response_time_ms":
			if m, ok := val.(map[string]interface{}); ok {
				c.ResponseTimeMs = m
			}
		case key == "headers":
			if m, ok := val.(map[string]interface{}); ok {
				for name, check := range m {
					c.Headers[name] = asChecksGroup(check)
				}
			}
		case key == "body":
			if m, ok := val.(map[string]interface{}); ok {
				for path, check := range m {
					c.Body[path] = asChecksGroup(check)
				}
			}
		case strings.HasPrefix(key, "headers."):
			name := strings.TrimPrefix(key, "headers.")
			c.Headers[name] = map[string]interface{}{"equals": val}
		case strings.HasPrefix(key, "body."):
			path := strings.TrimPrefix(key, "body.")
			c.Body[path] = map[string]interface{}{"equals": val}
		}
	}
	return c
}

// asChecksGroup treats a bare scalar as an implicit `equals` check; a map is
// already a checks-group.
func asChecksGroup(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"equals": v}
}

func evaluateCanonical(c canonicalAssert, ctx map[string]interface{}) ([]Result, bool) {
	var results []Result
	allPassed := true

	addResult := func(r Result) {
		results = append(results, r)
		if !r.Passed {
			allPassed = false
		}
	}

	if c.StatusCode != nil {
		actual := ctx["status_code"]
		passed := equalsTolerant(c.StatusCode, actual)
		addResult(Result{
			Field: "status_code", Expected: c.StatusCode, Actual: actual, Passed: passed,
			Message: messageFor("status_code", "equals", c.StatusCode, actual, passed),
		})
	}

	headers, _ := ctx["headers"].(map[string]interface{})
	for name, checks := range c.Headers {
		actual, found := lookupHeader(headers, name)
		for op, expected := range checks {
			var passed bool
			if !found {
				passed = op == "not_equals"
			} else {
				passed = runCheck(op, expected, actual)
			}
			addResult(Result{
				Field: "headers." + name, Expected: expected, Actual: actual, Passed: passed,
				Message: messageFor("headers."+name, op, expected, actual, passed),
			})
		}
	}

	body := ctx["body"]
	for path, checks := range c.Body {
		actual, err := jmespath.Search(path, body)
		for op, expected := range checks {
			passed := err == nil && runCheck(op, expected, actual)
			msg := messageFor("body."+path, op, expected, actual, passed)
			if err != nil {
				msg = fmt.Sprintf("body.%s: JMESPath error: %v", path, err)
			}
			addResult(Result{
				Field: "body." + path, Expected: expected, Actual: actual, Passed: passed, Message: msg,
			})
		}
	}

	if c.ResponseTimeMs != nil {
		actual := ctx["duration_ms"]
		for op, expected := range c.ResponseTimeMs {
			passed := runCheck(op, expected, actual)
			addResult(Result{
				Field: "response_time_ms", Expected: expected, Actual: actual, Passed: passed,
				Message: messageFor("response_time_ms", op, expected, actual, passed),
			})
		}
	}

	return results, allPassed
}

func lookupHeader(headers map[string]interface{}, name string) (interface{}, bool) {
	if headers == nil {
		return nil, false
	}
	// Given casing first, then lowercased fallback (spec.md §4.9's explicit
	// header case policy; first match wins when both are present).
	if v, ok := headers[name]; ok {
		return v, true
	}
	lower := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

// runCheck dispatches one operator against expected/actual.
func runCheck(op string, expected, actual interface{}) bool {
	switch op {
	case "equals":
		return equalsTolerant(expected, actual)
	case "not_equals":
		return !equalsTolerant(expected, actual)
	case "contains":
		return containsDeep(expected, actual)
	case "greater_than":
		a, aok := toFloat(actual)
		e, eok := toFloat(expected)
		return aok && eok && a > e
	case "less_than":
		a, aok := toFloat(actual)
		e, eok := toFloat(expected)
		return aok && eok && a < e
	case "regex":
		pattern, ok := expected.(string)
		if !ok {
			return false
		}
		s, ok := actual.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

// equalsTolerant compares string/number/boolean by string representation and
// recurses into arrays/objects by key parity (spec.md §4.5).
func equalsTolerant(expected, actual interface{}) bool {
	switch e := expected.(type) {
	case map[string]interface{}:
		a, ok := actual.(map[string]interface{})
		if !ok || len(a) != len(e) {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !equalsTolerant(ev, av) {
				return false
			}
		}
		return true
	case []interface{}:
		a, ok := actual.([]interface{})
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !equalsTolerant(e[i], a[i]) {
				return false
			}
		}
		return true
	default:
		return scalarString(expected) == scalarString(actual)
	}
}

func containsDeep(needle, haystack interface{}) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	case []interface{}:
		for _, item := range h {
			if equalsTolerant(needle, item) {
				return true
			}
		}
		return false
	case map[string]interface{}:
		for _, v := range h {
			if equalsTolerant(needle, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// messageFor renders a human-readable failure message; `equals` failures use
// a unified diff of the expected/actual textual forms.
func messageFor(field, op string, expected, actual interface{}, passed bool) string {
	if passed {
		return fmt.Sprintf("%s %s: passed", field, op)
	}
	if op == "equals" {
		expStr := fmt.Sprintf("%v", expected)
		actStr := fmt.Sprintf("%v", actual)
		d := udiff.Unified("expected", "actual", expStr, actStr)
		if d != "" {
			return fmt.Sprintf("%s equals: mismatch\n%s", field, d)
		}
	}
	return fmt.Sprintf("%s %s: expected %v, got %v", field, op, expected, actual)
}
