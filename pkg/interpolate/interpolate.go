// Package interpolate implements {{...}} template substitution over any
// value tree, with function-call expression forms ($env, $faker.*, js:) and
// a cache keyed by template text. It is the data substrate every other
// component in the core relies on to turn declared suite content into
// concrete request fields (spec.md §4.3).
//
// The walk-and-rebuild-any-value-tree shape, and the string-replace idiom
// for the base case, are grounded on the teacher's shared.VariableStore.Substitute
// (single-scope {{NAME}} replace); generalized here to the full expression
// grammar and four-scope store.
package interpolate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowtestdev/flowtest/pkg/vars"
	"github.com/rs/zerolog"
)

var tokenPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// WarnFunc receives a message whenever a template token cannot be resolved.
type WarnFunc func(message string)

// Interpolator resolves {{...}} tokens against a variable store and export
// registry, with an interpolation cache invalidated on any write that
// touches a name referenced by a cached template.
type Interpolator struct {
	store    *vars.Store
	registry *vars.Registry
	faker    *fakerGenerator
	warn     WarnFunc
	cache    *templateCache
	logger   zerolog.Logger
}

// New builds an Interpolator bound to store/registry and wires cache
// invalidation to both of their write hooks.
func New(store *vars.Store, registry *vars.Registry, logger zerolog.Logger) *Interpolator {
	it := &Interpolator{
		store:    store,
		registry: registry,
		faker:    newFakerGenerator(),
		cache:    newTemplateCache(),
		logger:   logger,
	}
	store.SetOnWrite(it.cache.invalidate)
	registry.SetOnWrite(it.cache.invalidate)
	return it
}

// SetWarnFunc installs a callback invoked when a token cannot be resolved.
func (it *Interpolator) SetWarnFunc(fn WarnFunc) { it.warn = fn }

// Value recursively interpolates any value: strings are template-expanded,
// maps/slices are walked and rebuilt, other scalars pass through unchanged
// (spec.md §4.3, and the invariant in spec.md §3 that non-string leaves are
// preserved).
func (it *Interpolator) Value(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return it.String(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = it.Value(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = it.Value(val)
		}
		return out
	default:
		return v
	}
}

// String interpolates every {{EXPR}} token in s. Unresolved tokens are left
// verbatim in the output (spec.md §4.3).
func (it *Interpolator) String(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	if cached, refs, ok := it.cache.get(s); ok {
		_ = refs
		return cached
	}

	var refs []string
	cacheable := true
	result := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if strings.HasPrefix(expr, "js:") || strings.HasPrefix(expr, "$faker.") {
			cacheable = false
		}
		refs = append(refs, referencedNames(expr)...)
		val, resolved := it.evalExpr(expr)
		if !resolved {
			if it.warn != nil {
				it.warn(fmt.Sprintf("unresolved interpolation token: {{%s}}", expr))
			}
			return match
		}
		return Stringify(val)
	})

	if cacheable {
		it.cache.set(s, result, refs)
	}
	return result
}

// Eval evaluates a single expression body directly (no surrounding `{{ }}`,
// no string coercion of the result), for callers that need the raw value —
// e.g. a step's `iterate.over` expression, which must stay an array/slice
// rather than being stringified.
func (it *Interpolator) Eval(expr string) (interface{}, bool) {
	return it.evalExpr(strings.TrimSpace(expr))
}

// evalExpr classifies and evaluates one {{...}} expression body.
func (it *Interpolator) evalExpr(expr string) (interface{}, bool) {
	switch {
	case strings.HasPrefix(expr, "js:"):
		code := strings.TrimPrefix(expr, "js:")
		return it.evalJS(code)
	case strings.HasPrefix(expr, "$env."):
		name := strings.TrimPrefix(expr, "$env.")
		return it.lookupEnv(name)
	case strings.HasPrefix(expr, "$faker."):
		path := strings.TrimPrefix(expr, "$faker.")
		return it.faker.Generate(path)
	case strings.Contains(expr, "."):
		return it.evalDottedPath(expr)
	default:
		return it.lookupScope(expr)
	}
}

func (it *Interpolator) lookupEnv(name string) (interface{}, bool) {
	return it.store.GetEnv(name)
}

func (it *Interpolator) evalDottedPath(expr string) (interface{}, bool) {
	// First consult the export registry for an exact key match.
	if v, ok := it.registry.Get(expr); ok {
		return v, true
	}
	// Fallback: first segment is a variable name, walk object properties.
	parts := strings.Split(expr, ".")
	root, ok := it.store.Get(parts[0])
	if !ok {
		root, ok = it.store.GetExportFallback(parts[0])
		if !ok {
			return nil, false
		}
	}
	return walkPath(root, parts[1:])
}

func (it *Interpolator) lookupScope(name string) (interface{}, bool) {
	if v, ok := it.store.Get(name); ok {
		return v, true
	}
	return it.store.GetExportFallback(name)
}

// walkPath descends into maps/slices by successive dotted segments.
func walkPath(root interface{}, segments []string) (interface{}, bool) {
	cur := root
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// referencedNames extracts the variable/registry names an expression
// touches, for cache invalidation. js: and $faker. expressions report none;
// String never caches a template that contains one.
func referencedNames(expr string) []string {
	switch {
	case strings.HasPrefix(expr, "js:"), strings.HasPrefix(expr, "$faker."):
		return nil
	case strings.HasPrefix(expr, "$env."):
		return []string{strings.TrimPrefix(expr, "$env.")}
	default:
		parts := strings.SplitN(expr, ".", 2)
		return []string{parts[0], expr}
	}
}
