// Package runner executes one suite's steps sequentially and computes the
// suite's overall status (spec.md §4.9, "Suite Runner").
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/flowtestdev/flowtest/pkg/result"
	"github.com/flowtestdev/flowtest/pkg/step"
	"github.com/flowtestdev/flowtest/pkg/suite"
)

// Hooks are the suite/step-scoped lifecycle callbacks the engine installs
// (spec.md §4.9 "Hook/event emission"). Each is optional; nil entries are
// skipped.
type Hooks struct {
	OnStepStart func(nodeID string, st suite.Step)
	OnStepEnd   func(nodeID string, st suite.Step, res result.StepResult)
}

// Run executes every step of s in order via step.RunIterations, registers s's exports
// with the registry, sets the dependency list on the store so unqualified
// reads can fall back to them, and returns the accumulated SuiteResult
// (spec.md §4.9).
func Run(ctx context.Context, deps step.Deps, s suite.Suite, dependsOnNodeIDs []string, filterStepIDs []string, hooks Hooks) result.SuiteResult {
	started := time.Now()

	deps.Registry.RegisterNode(s.NodeID, s.SuiteName, s.Exports, s.FilePath)
	deps.Store.SetDependsOn(dependsOnNodeIDs)
	deps.Store.SeedSuiteVariables(s.Variables)

	res := result.SuiteResult{
		SuiteID:      result.NewSuiteID(),
		NodeID:       s.NodeID,
		SuiteName:    s.SuiteName,
		StartedAt:    started,
		StepsResults: make([]result.StepResult, 0, len(s.Steps)),
	}

	anyFailed := false
	for _, st := range s.Steps {
		fireStepStart(deps, hooks, s.NodeID, st)

		select {
		case <-ctx.Done():
			res.StepsResults = append(res.StepsResults, result.StepResult{
				StepID: st.ResolvedStepID(), Status: result.StatusSkipped, Error: ctx.Err().Error(),
			})
			continue
		default:
		}

		stepResults := step.RunIterations(ctx, deps, s.NodeID, s, st, filterStepIDs)
		for _, stepRes := range stepResults {
			if stepRes.Status == result.StatusFailure {
				anyFailed = true
			}
			res.StepsResults = append(res.StepsResults, stepRes)

			fireStepEnd(deps, hooks, s.NodeID, st, stepRes)
		}
	}

	res.CompletedAt = time.Now()
	res.DurationMs = res.CompletedAt.Sub(res.StartedAt).Milliseconds()
	if anyFailed {
		res.Status = result.StatusFailure
	} else {
		res.Status = result.StatusSuccess
	}
	return res
}

// fireStepStart and fireStepEnd recover any panic raised by a step hook into
// a logged errs.HookError, mirroring the engine's own runHook so a
// misbehaving callback never crashes the run (spec.md §4.9).
func fireStepStart(deps step.Deps, hooks Hooks, nodeID string, st suite.Step) {
	if hooks.OnStepStart == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			hookErr := &errs.HookError{Phase: "step_start", Err: fmt.Errorf("%v", r)}
			deps.Logger.Warn().Err(hookErr).Msg("recovered from hook panic")
		}
	}()
	hooks.OnStepStart(nodeID, st)
}

func fireStepEnd(deps step.Deps, hooks Hooks, nodeID string, st suite.Step, res result.StepResult) {
	if hooks.OnStepEnd == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			hookErr := &errs.HookError{Phase: "step_end", Err: fmt.Errorf("%v", r)}
			deps.Logger.Warn().Err(hookErr).Msg("recovered from hook panic")
		}
	}()
	hooks.OnStepEnd(nodeID, st, res)
}
