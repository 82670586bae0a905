// Package step executes one suite step: interpolate the request, issue the
// HTTP call (or recurse into a `call` block), run assertions, captures, and
// scenarios, and produce a StepResult (spec.md §4.8).
//
// Grounded on the teacher's integration_orchestrator/workflow.go (the one
// place the teacher's tool layer sequences request → validate → extract →
// branch as a single unit) and persistence/environment_tool.go's
// snapshot/restore idiom, reused here for `call.isolate_context`.
package step

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/flowtestdev/flowtest/pkg/assert"
	"github.com/flowtestdev/flowtest/pkg/capture"
	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/flowtestdev/flowtest/pkg/httpclient"
	"github.com/flowtestdev/flowtest/pkg/interpolate"
	"github.com/flowtestdev/flowtest/pkg/result"
	"github.com/flowtestdev/flowtest/pkg/scenario"
	"github.com/flowtestdev/flowtest/pkg/suite"
	"github.com/flowtestdev/flowtest/pkg/vars"
	"github.com/rs/zerolog"
)

// SuiteLookup resolves a `call.test` relative path, from the file path of
// the suite containing the call, to the target suite (spec.md §4.8: "resolve
// the target suite by relative path; absolute paths are rejected").
type SuiteLookup interface {
	ResolveByRelativePath(fromFilePath, relPath string) (suite.Suite, bool)
}

// Deps bundles the shared engine state a step needs.
type Deps struct {
	Store        *vars.Store
	Registry     *vars.Registry
	Interpolator *interpolate.Interpolator
	HTTPClient   *httpclient.Client
	Suites       SuiteLookup
	Logger       zerolog.Logger

	// BaseURL is globals.base_url (spec.md §6); a relative request URL
	// resolves against it. Empty means requests must be fully qualified.
	BaseURL string
	// DefaultTimeout is globals.timeouts.default, applied to every request
	// issued through this Deps (httpclient.Client falls back to its own
	// hardcoded default when this is zero).
	DefaultTimeout time.Duration
}

// Run executes one step of s (identified by nodeID) and returns its result.
// filterStepIDs, when non-empty, is the normalized step filter: a step whose
// id and qualified id both miss every token is skipped without running.
func Run(ctx context.Context, deps Deps, nodeID string, s suite.Suite, st suite.Step, filterStepIDs []string) result.StepResult {
	stepID := st.ResolvedStepID()
	qualified := suite.QualifiedStepID(nodeID, stepID)

	res := result.StepResult{
		StepID:          stepID,
		QualifiedStepID: qualified,
		Name:            st.Name,
		StartedAt:       time.Now(),
	}

	if !matchesFilter(filterStepIDs, stepID, qualified) {
		res.Status = result.StatusSkipped
		res.CompletedAt = res.StartedAt
		return res
	}

	if st.Call != nil {
		runCall(ctx, deps, nodeID, s, st, &res)
		res.CompletedAt = time.Now()
		res.DurationMs = res.CompletedAt.Sub(res.StartedAt).Milliseconds()
		return res
	}

	runRequest(ctx, deps, nodeID, s.Exports, st, &res)
	res.CompletedAt = time.Now()
	res.DurationMs = res.CompletedAt.Sub(res.StartedAt).Milliseconds()
	return res
}

// RunIterations executes st once, or once per element of iterate.over when
// st.Iterate is set, seeding the loop variable into runtime scope before
// each pass (SPEC_FULL.md §3's IterationSpec, grounded on the teacher's
// data_driven_engine.TemplateEngine.Populate row-substitution idiom,
// generalized from CSV rows to an array read from the variable store).
// iterate.over is evaluated with Interpolator.Eval (a variable name, dotted
// path, js:, $env. or $faker. expression), not as JMESPath; a result that is
// not an array fails the step.
// The step filter is matched once against the base step id/qualified id;
// a match runs every iteration, a miss skips all of them.
func RunIterations(ctx context.Context, deps Deps, nodeID string, s suite.Suite, st suite.Step, filterStepIDs []string) []result.StepResult {
	baseID := st.ResolvedStepID()
	qualified := suite.QualifiedStepID(nodeID, baseID)

	if !matchesFilter(filterStepIDs, baseID, qualified) {
		return []result.StepResult{{
			StepID:          baseID,
			QualifiedStepID: qualified,
			Name:            st.Name,
			Status:          result.StatusSkipped,
		}}
	}

	if st.Iterate == nil {
		return []result.StepResult{Run(ctx, deps, nodeID, s, st, nil)}
	}

	raw, ok := deps.Interpolator.Eval(st.Iterate.Over)
	items, isArr := raw.([]interface{})
	if !ok || !isArr {
		return []result.StepResult{{
			StepID:          baseID,
			QualifiedStepID: qualified,
			Name:            st.Name,
			Status:          result.StatusFailure,
			Error:           fmt.Sprintf("iterate.over %q did not resolve to an array", st.Iterate.Over),
		}}
	}

	out := make([]result.StepResult, 0, len(items))
	for i, item := range items {
		deps.Store.Set(vars.Runtime, st.Iterate.As, item)
		iterStep := st
		iterStep.Iterate = nil
		iterStep.StepID = fmt.Sprintf("%s[%d]", baseID, i)
		out = append(out, Run(ctx, deps, nodeID, s, iterStep, nil))
	}
	return out
}

var errUnresolvedCapture = errors.New("no jmespath match, literal, or url-like string")

func matchesFilter(filter []string, stepID, qualifiedStepID string) bool {
	if len(filter) == 0 {
		return true
	}
	normID := strings.ToLower(strings.TrimSpace(stepID))
	normQ := strings.ToLower(strings.TrimSpace(qualifiedStepID))
	for _, token := range filter {
		t := strings.ToLower(strings.TrimSpace(token))
		if t == normID || t == normQ {
			return true
		}
	}
	return false
}

func runRequest(ctx context.Context, deps Deps, nodeID string, exports []string, st suite.Step, res *result.StepResult) {
	if st.Request == nil {
		res.Status = result.StatusSuccess
		res.AssertionsResults = []result.AssertionRow{}
		res.CapturedVariables = map[string]interface{}{}
		return
	}

	req := interpolateRequest(deps, *st.Request)
	res.Request = map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL,
		"headers": req.Headers,
		"query":   req.Query,
		"body":    req.Body,
	}

	resp, err := deps.HTTPClient.Do(ctx, req)
	if err != nil {
		res.Status = result.StatusFailure
		res.Error = err.Error()
		return
	}

	res.Response = map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     resp.Headers,
		"body":        resp.BodyJSON,
		"duration_ms": resp.Duration.Milliseconds(),
		"size_bytes":  resp.SizeBytes,
	}

	respCtx := resp.Context()

	assertionRows, assertionsPassed := assert.Check(st.Assert, respCtx)
	res.AssertionsResults = toRows(assertionRows)

	captured := map[string]interface{}{}
	for _, cr := range capture.Resolve(st.Capture, deps.Interpolator, respCtx) {
		applyCapture(deps, nodeID, exports, cr, captured)
	}

	scenarioTraces, scenarioOK := runScenarios(deps, nodeID, exports, st.Scenarios, respCtx, &res.AssertionsResults, captured)
	res.ScenarioEvaluations = scenarioTraces
	res.CapturedVariables = captured

	if !assertionsPassed || !scenarioOK {
		res.Status = result.StatusFailure
		if !assertionsPassed {
			res.Error = (&errs.AssertionFailure{StepID: res.StepID, Reasons: failureMessages(res.AssertionsResults)}).Error()
		}
		return
	}
	res.Status = result.StatusSuccess
}

func runScenarios(deps Deps, nodeID string, exports []string, scenarios []suite.Scenario, respCtx map[string]interface{}, assertions *[]result.AssertionRow, captured map[string]interface{}) ([]result.ScenarioTrace, bool) {
	traces := make([]result.ScenarioTrace, 0, len(scenarios))
	allPassed := true

	for _, sc := range scenarios {
		domainScenario := scenario.Scenario{
			Condition: sc.Condition,
			Then:      toDomainBlock(sc.Then),
			Else:      toDomainBlock(sc.Else),
		}
		eval := scenario.Apply(domainScenario, respCtx)

		trace := result.ScenarioTrace{
			Condition:      eval.Condition,
			PreprocessedAs: eval.PreprocessedAs,
			Truthy:         eval.Truthy,
			BranchApplied:  "none",
		}
		if eval.Err != nil {
			condErr := &errs.ScenarioConditionError{Condition: sc.Condition, Err: eval.Err}
			trace.Error = condErr.Error()
			allPassed = false
			traces = append(traces, trace)
			continue
		}

		if eval.Applied != nil {
			if eval.Truthy {
				trace.BranchApplied = "then"
			} else {
				trace.BranchApplied = "else"
			}
			rows, passed := assert.Check(eval.Applied.Assert, respCtx)
			*assertions = append(*assertions, toRows(rows)...)
			if !passed {
				allPassed = false
			}
			for _, cr := range capture.Resolve(eval.Applied.Capture, deps.Interpolator, respCtx) {
				applyCapture(deps, nodeID, exports, cr, captured)
			}
		}
		traces = append(traces, trace)
	}
	return traces, allPassed
}

func toDomainBlock(b *suite.Block) *scenario.Block {
	if b == nil {
		return nil
	}
	return &scenario.Block{Assert: b.Assert, Capture: b.Capture}
}

func failureMessages(rows []result.AssertionRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if !r.Passed {
			out = append(out, r.Message)
		}
	}
	return out
}

func toRows(rows []assert.Result) []result.AssertionRow {
	out := make([]result.AssertionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, result.AssertionRow{
			Field: r.Field, Expected: r.Expected, Actual: r.Actual, Passed: r.Passed, Message: r.Message,
		})
	}
	return out
}

func applyCapture(deps Deps, nodeID string, exports []string, cr capture.Result, captured map[string]interface{}) {
	if !cr.Resolved {
		captureErr := &errs.CaptureError{Variable: cr.Variable, Expr: cr.Warning, Err: errUnresolvedCapture}
		deps.Logger.Warn().Err(captureErr).Msg("capture did not resolve, skipping")
		return
	}
	deps.Store.Set(vars.Runtime, cr.Variable, cr.Value)
	captured[cr.Variable] = cr.Value
	if containsStr(exports, cr.Variable) {
		deps.Registry.SetExportedVariable(nodeID, cr.Variable, cr.Value)
	}
}

func containsStr(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func interpolateRequest(deps Deps, req suite.Request) httpclient.Request {
	it := deps.Interpolator
	headers := map[string]string{}
	for k, v := range req.Headers {
		headers[k] = it.String(v)
	}
	query := map[string]string{}
	for k, v := range req.Query {
		query[k] = it.String(v)
	}
	return httpclient.Request{
		Method:  it.String(req.Method),
		URL:     resolveBaseURL(deps.BaseURL, it.String(req.URL)),
		Headers: headers,
		Query:   query,
		Body:    it.Value(req.Body),
		Timeout: deps.DefaultTimeout,
	}
}

// resolveBaseURL joins a relative request URL against globals.base_url
// (spec.md §3/§4.7: "URL may be relative to a base"). An absolute URL, or an
// unconfigured base, passes through unchanged.
func resolveBaseURL(base, raw string) string {
	if base == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return raw
	}
	b, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return b.ResolveReference(u).String()
}

// runCall handles a step's `call` block: resolve the target suite/step,
// optionally isolate the variable context, execute the target step, then
// merge its captures back namespaced and restore any snapshot
// (spec.md §4.8 step 3).
func runCall(ctx context.Context, deps Deps, callerNodeID string, caller suite.Suite, st suite.Step, res *result.StepResult) {
	call := st.Call
	if strings.HasPrefix(call.Test, "/") {
		res.Status = result.StatusFailure
		res.Error = (&errs.CallResolutionError{Reason: "call.test must be a relative path, absolute paths are rejected"}).Error()
		return
	}

	target, ok := deps.Suites.ResolveByRelativePath(caller.FilePath, call.Test)
	if !ok {
		res.Status = result.StatusFailure
		res.Error = (&errs.CallResolutionError{Reason: fmt.Sprintf("target suite not found: %s", call.Test)}).Error()
		return
	}

	var targetStep *suite.Step
	for i := range target.Steps {
		if target.Steps[i].ResolvedStepID() == call.Step {
			targetStep = &target.Steps[i]
			break
		}
	}
	if targetStep == nil {
		res.Status = result.StatusFailure
		res.Error = (&errs.CallResolutionError{Reason: fmt.Sprintf("target step not found: %s::%s", target.NodeID, call.Step)}).Error()
		return
	}

	var restore func()
	if call.IsolateContext {
		restore = deps.Store.Snapshot()
		deps.Store.ClearScope(vars.Runtime)
		deps.Store.ClearScope(vars.SuiteScope)
		for k, v := range call.Variables {
			deps.Store.Set(vars.Runtime, k, v)
		}
		deps.Store.SeedSuiteVariables(target.Variables)
	}

	inner := Run(ctx, deps, target.NodeID, target, *targetStep, nil)

	if inner.Status == result.StatusFailure {
		if strings.EqualFold(call.OnError, "continue") {
			res.Status = result.StatusSkipped
		} else {
			res.Status = result.StatusFailure
			res.Error = inner.Error
		}
	} else {
		res.Status = inner.Status
	}

	innerCaptures := inner.CapturedVariables
	if restore != nil {
		restore()
	}
	merged := map[string]interface{}{}
	for name, value := range innerCaptures {
		namespaced := target.NodeID + "." + name
		deps.Store.Set(vars.Runtime, namespaced, value)
		merged[namespaced] = value
	}
	res.CapturedVariables = merged
	res.AssertionsResults = inner.AssertionsResults
	res.Response = inner.Response
	res.Request = inner.Request
}
