// Package capture resolves a step's capture map — variable name to
// expression — against a response context and writes the results into the
// runtime variable scope (spec.md §3 Capture map, §4.6).
//
// Grounded on the teacher's ExtractTool (pkg/core/tools/shared/extraction.go):
// a named-expression-to-variable map evaluated against the last response and
// written through a shared store. Generalized from ExtractTool's fixed
// json_path/regex/cookie modes to the spec's single interpolate-then-JMESPath
// pipeline with literal and primitive-coercion fallbacks.
package capture

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// Result is one resolved capture: the value actually written, or a reason
// the write was skipped.
type Result struct {
	Variable string
	Value    interface{}
	Resolved bool
	Warning  string
}

// Interpolator is the minimal surface capture needs from pkg/interpolate,
// kept narrow so capture does not import the concrete type and can be unit
// tested with a stub.
type Interpolator interface {
	String(s string) string
}

// Resolve evaluates every expr in exprs against ctx, per the resolution
// order in spec.md §3: a double-quoted literal wins outright; otherwise the
// expression is interpolated then evaluated as JMESPath against ctx; on
// JMESPath failure, it falls back to primitive literal coercion or, when
// expression looks URL-like, the raw interpolated string. Capture never
// raises — unresolved expressions are reported as a warning and skipped
// (spec.md §9 open question #1).
func Resolve(exprs map[string]string, it Interpolator, ctx map[string]interface{}) []Result {
	results := make([]Result, 0, len(exprs))
	for name, expr := range exprs {
		results = append(results, resolveOne(name, expr, it, ctx))
	}
	return results
}

func resolveOne(name, expr string, it Interpolator, ctx map[string]interface{}) Result {
	if literal, ok := asQuotedLiteral(expr); ok {
		return Result{Variable: name, Value: literal, Resolved: true}
	}

	interpolated := it.String(expr)

	if val, err := jmespath.Search(interpolated, ctx); err == nil && (val != nil || pathExists(interpolated, ctx)) {
		return Result{Variable: name, Value: val, Resolved: true}
	}

	if val, ok := asPrimitiveLiteral(interpolated); ok {
		return Result{Variable: name, Value: val, Resolved: true}
	}

	if looksURLLike(interpolated) {
		return Result{Variable: name, Value: interpolated, Resolved: true}
	}

	return Result{
		Variable: name,
		Resolved: false,
		Warning:  "capture expression for \"" + name + "\" did not resolve to a JMESPath match, literal, or URL-like string; skipped",
	}
}

// asQuotedLiteral strips a wrapping pair of double quotes, if present.
func asQuotedLiteral(expr string) (string, bool) {
	trimmed := strings.TrimSpace(expr)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		return trimmed[1 : len(trimmed)-1], true
	}
	return "", false
}

// asPrimitiveLiteral coerces true/false/null/number tokens.
func asPrimitiveLiteral(s string) (interface{}, bool) {
	switch strings.TrimSpace(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

// pathExists reports whether a plain dotted field path resolves to an
// explicit key in ctx, even one whose value is JSON null. jmespath.Search
// returns (nil, nil) both for "no such field" and "field is null", so a
// capture of a legitimately-null body field would otherwise be dropped as
// unresolved; this narrow check covers the common body.field.subfield shape
// without reimplementing JMESPath's full grammar for filters and indexing.
func pathExists(expr string, ctx map[string]interface{}) bool {
	if !isSimpleDottedPath(expr) {
		return false
	}
	var cur interface{} = ctx
	for _, part := range strings.Split(expr, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		v, present := m[part]
		if !present {
			return false
		}
		cur = v
	}
	return true
}

func isSimpleDottedPath(expr string) bool {
	if expr == "" {
		return false
	}
	for _, r := range expr {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

func looksURLLike(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
