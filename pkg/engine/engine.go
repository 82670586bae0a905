// Package engine drives the full run lifecycle: load configuration, run
// discovery, apply runtime filters, build the dependency graph, topologically
// order suites, then execute each suite's steps, accumulating an aggregated
// RunResult (spec.md §4.9).
//
// Grounded on the teacher's orchestrate.go (OrchestrateTool): the
// single-struct "driver" holding shared managers and a Run-style entry point
// that discovers work, schedules it, and summarizes results, generalized
// here from a flat scenario list to the graph-ordered, dependency-aware
// suite schedule the spec requires.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowtestdev/flowtest/pkg/config"
	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/flowtestdev/flowtest/pkg/graph"
	"github.com/flowtestdev/flowtest/pkg/httpclient"
	"github.com/flowtestdev/flowtest/pkg/interpolate"
	"github.com/flowtestdev/flowtest/pkg/result"
	"github.com/flowtestdev/flowtest/pkg/runner"
	"github.com/flowtestdev/flowtest/pkg/step"
	"github.com/flowtestdev/flowtest/pkg/suite"
	"github.com/flowtestdev/flowtest/pkg/vars"
	"github.com/rs/zerolog"
)

// Hooks are the lifecycle callbacks emitted at: execution start, test
// discovered, suite start, step start, step end, suite end, execution end,
// and on any error (spec.md §4.9). Each is optional; hook panics/errors are
// never allowed to affect the run and are recovered around every call site.
type Hooks struct {
	OnExecutionStart func()
	OnTestDiscovered func(s suite.Suite)
	OnSuiteStart     func(s suite.Suite)
	OnSuiteEnd       func(res result.SuiteResult)
	OnStepStart      func(nodeID string, st suite.Step)
	OnStepEnd        func(nodeID string, st suite.Step, res result.StepResult)
	OnExecutionEnd   func(res *result.RunResult)
	OnError          func(err error)
}

func (h Hooks) fireError(err error) {
	if h.OnError == nil || err == nil {
		return
	}
	defer func() { recover() }()
	h.OnError(err)
}

// Engine owns one run's configuration and hook registrations.
type Engine struct {
	Config *config.Config
	Hooks  Hooks
	Logger zerolog.Logger
}

// New builds an Engine bound to cfg.
func New(cfg *config.Config, hooks Hooks, logger zerolog.Logger) *Engine {
	return &Engine{Config: cfg, Hooks: hooks, Logger: logger}
}

// Plan is the outcome of discovery, filtering, and dependency ordering
// without executing any step (the `discover` subcommand's dry run,
// SPEC_FULL.md §6). CycleErr is non-nil when the graph has a dependency
// cycle, mirroring the fatal-before-execution case Run reports inside the
// result instead.
type Plan struct {
	Suites   []suite.Suite
	Order    []string
	CycleErr error
}

// Plan runs discovery, filtering, and graph construction/ordering, the
// same pre-execution pipeline Run uses, stopping short of executing any
// suite.
func (e *Engine) Plan(filters config.RuntimeFilters) Plan {
	discovery := suite.Discover(suite.DiscoveryOptions{
		Roots:   []string{e.Config.TestDirectory},
		Include: e.Config.Discovery.Patterns,
		Exclude: e.Config.Discovery.Exclude,
		Logger:  e.Logger,
	})
	for _, w := range discovery.Warnings {
		e.Logger.Warn().Err(w).Msg("discovery warning")
	}

	var filtered []suite.Suite
	for _, s := range discovery.Suites {
		if filters.Matches(s) {
			filtered = append(filtered, s)
		}
	}

	g := graph.Build(filtered, graph.BuildOptions{Logger: e.Logger})
	if cycles := graph.FindCycles(g); len(cycles) > 0 {
		return Plan{Suites: filtered, CycleErr: graph.CycleErr(cycles)}
	}

	priorityOrder := resolvePriorityOrder(e.Config.Priorities.Levels)
	return Plan{Suites: filtered, Order: graph.Order(g, priorityOrder)}
}

// Run executes discovery through suite execution and returns the aggregated
// result. The returned error is non-nil only for fatal, pre-execution
// failures (bad config is handled by the caller before Run; a cycle is
// reported as a fatal failure inside the result, not a Go error, per
// spec.md §7's "Fatal; abort before execution with the cycle path").
func (e *Engine) Run(ctx context.Context, filters config.RuntimeFilters) (*result.RunResult, error) {
	run := &result.RunResult{
		RunID:       result.NewRunID(),
		ProjectName: e.Config.ProjectName,
		StartTime:   time.Now(),
	}
	e.fireExecutionStart()

	discovery := suite.Discover(suite.DiscoveryOptions{
		Roots:   []string{e.Config.TestDirectory},
		Include: e.Config.Discovery.Patterns,
		Exclude: e.Config.Discovery.Exclude,
		Logger:  e.Logger,
	})
	for _, w := range discovery.Warnings {
		e.Logger.Warn().Err(w).Msg("discovery warning")
		e.Hooks.fireError(w)
	}

	var filtered []suite.Suite
	for _, s := range discovery.Suites {
		if !filters.Matches(s) {
			continue
		}
		filtered = append(filtered, s)
		e.fireTestDiscovered(s)
	}

	g := graph.Build(filtered, graph.BuildOptions{Logger: e.Logger})
	if cycles := graph.FindCycles(g); len(cycles) > 0 {
		cycleErr := graph.CycleErr(cycles)
		e.Logger.Error().Err(cycleErr).Msg("dependency cycle detected, aborting before execution")
		e.Hooks.fireError(cycleErr)
		run.EndTime = time.Now()
		run.TotalDurationMs = run.EndTime.Sub(run.StartTime).Milliseconds()
		for _, cyc := range graph.FormatCycles(cycles) {
			run.SuitesResults = append(run.SuitesResults, result.SuiteResult{
				Status: result.StatusFailure,
				Error:  "dependency cycle: " + cyc,
			})
		}
		run.Finalize()
		e.fireExecutionEnd(run)
		return run, nil
	}

	priorityOrder := resolvePriorityOrder(e.Config.Priorities.Levels)
	order := graph.Order(g, priorityOrder)

	// The export registry is the only state concurrently-running suites
	// share; it is internally synchronized. Each suite run otherwise gets
	// its own Store (fresh runtime/suite scopes, same global/environment
	// seed) so parallel siblings can never race on each other's writes
	// (spec.md §5's "no ordering guarantee... must not read them").
	registry := vars.NewRegistry()
	httpClient := httpclient.NewClient(requestsPerSecond(e.Config.Execution))
	lookup := newSuiteLookup(filtered)
	defaultTimeout := time.Duration(e.Config.Globals.Timeouts.DefaultMs) * time.Millisecond

	hooks := runner.Hooks{
		OnStepStart: e.Hooks.OnStepStart,
		OnStepEnd:   e.Hooks.OnStepEnd,
	}

	var mu sync.Mutex
	resolved := make(map[string]bool, len(g.Nodes))
	failed := make(map[string]bool, len(g.Nodes))
	finalStores := make([]*vars.Store, 0, len(g.Nodes))

	execute := func(nodeID string) {
		node, ok := g.Get(nodeID)
		if !ok {
			return
		}
		s := node.Suite

		mu.Lock()
		skip := dependencyFailed(node.DependsOn, resolved, failed) && !e.Config.Execution.ContinueOnFailure
		mu.Unlock()
		if skip {
			mu.Lock()
			run.SuitesResults = append(run.SuitesResults, result.SuiteResult{
				SuiteID:   result.NewSuiteID(),
				NodeID:    s.NodeID,
				SuiteName: s.SuiteName,
				Status:    result.StatusSkipped,
				Error:     "skipped: an upstream dependency did not resolve",
			})
			failed[nodeID] = true
			mu.Unlock()
			return
		}

		e.fireSuiteStart(s)

		store := vars.NewStore(e.Config.Environment, e.Config.Globals.Variables)
		store.SetRegistry(registry)
		it := interpolate.New(store, registry, e.Logger)
		it.SetWarnFunc(func(msg string) { e.Logger.Warn().Msg(msg) })

		deps := step.Deps{
			Store:          store,
			Registry:       registry,
			Interpolator:   it,
			HTTPClient:     httpClient,
			Suites:         lookup,
			Logger:         e.Logger,
			BaseURL:        e.Config.Globals.BaseURL,
			DefaultTimeout: defaultTimeout,
		}

		suiteRes := runner.Run(ctx, deps, s, node.DependsOn, filters.StepIDs, hooks)

		mu.Lock()
		run.SuitesResults = append(run.SuitesResults, suiteRes)
		resolved[nodeID] = true
		if suiteRes.Status == result.StatusFailure {
			failed[nodeID] = true
		}
		finalStores = append(finalStores, store)
		mu.Unlock()
		e.fireSuiteEnd(suiteRes)
	}

	if e.Config.Execution.Mode == "parallel" {
		runParallel(ctx, g, order, e.Config.Execution.MaxParallel, execute)
	} else {
		for _, nodeID := range order {
			if ctx.Err() != nil {
				break
			}
			execute(nodeID)
		}
	}

	run.GlobalVariablesFinal = mergeFinalState(finalStores, registry)
	run.EndTime = time.Now()
	run.TotalDurationMs = run.EndTime.Sub(run.StartTime).Milliseconds()
	run.Finalize()
	e.fireExecutionEnd(run)
	return run, nil
}

// mergeFinalState flattens every suite-run's final store (global/environment
// scopes are identical across all of them by construction; runtime/suite
// scopes are per-run) plus the shared export registry into the single map
// reported as `global_variables_final_state` (spec.md §6).
func mergeFinalState(stores []*vars.Store, registry *vars.Registry) map[string]interface{} {
	out := make(map[string]interface{})
	for _, s := range stores {
		for k, v := range s.GetAll() {
			out[k] = v
		}
	}
	for k, v := range registry.Flatten() {
		out[k] = v
	}
	return out
}

// requestsPerSecond derives the per-host rate limit from execution.max_parallel
// (spec.md §5): sequential mode issues one request at a time by construction
// and needs no limiter; parallel mode can have up to MaxParallel suites
// in flight at once, so the limiter bounds the burst a single host sees to
// that same width. Returns 0 (unlimited) for sequential mode.
func requestsPerSecond(exec config.Execution) float64 {
	if exec.Mode != "parallel" || exec.MaxParallel <= 0 {
		return 0
	}
	return float64(exec.MaxParallel)
}

func dependencyFailed(dependsOn []string, resolved, failed map[string]bool) bool {
	for _, dep := range dependsOn {
		if failed[dep] || !resolved[dep] {
			return true
		}
	}
	return false
}

func resolvePriorityOrder(levels []string) []suite.Priority {
	if len(levels) == 0 {
		return suite.DefaultPriorityOrder
	}
	out := make([]suite.Priority, 0, len(levels))
	for _, l := range levels {
		out = append(out, suite.Priority(l))
	}
	return out
}

// runHook invokes fn, recovering any panic into a logged errs.HookError so a
// misbehaving callback can never take down the run (spec.md §4.9).
func (e *Engine) runHook(phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			hookErr := &errs.HookError{Phase: phase, Err: fmt.Errorf("%v", r)}
			e.Logger.Warn().Err(hookErr).Msg("recovered from hook panic")
		}
	}()
	fn()
}

func (e *Engine) fireExecutionStart() {
	if e.Hooks.OnExecutionStart == nil {
		return
	}
	e.runHook("execution_start", e.Hooks.OnExecutionStart)
}

func (e *Engine) fireTestDiscovered(s suite.Suite) {
	if e.Hooks.OnTestDiscovered == nil {
		return
	}
	e.runHook("test_discovered", func() { e.Hooks.OnTestDiscovered(s) })
}

func (e *Engine) fireSuiteStart(s suite.Suite) {
	if e.Hooks.OnSuiteStart == nil {
		return
	}
	e.runHook("suite_start", func() { e.Hooks.OnSuiteStart(s) })
}

func (e *Engine) fireSuiteEnd(res result.SuiteResult) {
	if e.Hooks.OnSuiteEnd == nil {
		return
	}
	e.runHook("suite_end", func() { e.Hooks.OnSuiteEnd(res) })
}

func (e *Engine) fireExecutionEnd(res *result.RunResult) {
	if e.Hooks.OnExecutionEnd == nil {
		return
	}
	e.runHook("execution_end", func() { e.Hooks.OnExecutionEnd(res) })
}
