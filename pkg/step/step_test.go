package step

import (
	"context"
	"testing"
	"time"

	"github.com/flowtestdev/flowtest/pkg/httpclient"
	"github.com/flowtestdev/flowtest/pkg/interpolate"
	"github.com/flowtestdev/flowtest/pkg/result"
	"github.com/flowtestdev/flowtest/pkg/suite"
	"github.com/flowtestdev/flowtest/pkg/vars"
	"github.com/rs/zerolog"
)

type stubLookup struct {
	suites map[string]suite.Suite
}

func (s stubLookup) ResolveByRelativePath(fromFilePath, relPath string) (suite.Suite, bool) {
	v, ok := s.suites[relPath]
	return v, ok
}

func newTestDeps() Deps {
	store := vars.NewStore(nil, nil)
	registry := vars.NewRegistry()
	store.SetRegistry(registry)
	it := interpolate.New(store, registry, zerolog.Nop())
	return Deps{
		Store:        store,
		Registry:     registry,
		Interpolator: it,
		HTTPClient:   httpclient.NewClient(0),
		Logger:       zerolog.Nop(),
	}
}

func TestMatchesFilter_Empty(t *testing.T) {
	if !matchesFilter(nil, "foo", "node::foo") {
		t.Fatal("expected empty filter to match everything")
	}
}

func TestMatchesFilter_SimpleAndQualifiedTokens(t *testing.T) {
	if !matchesFilter([]string{"FOO"}, "foo", "node::foo") {
		t.Fatal("expected case-insensitive simple token match")
	}
	if !matchesFilter([]string{" node::foo "}, "foo", "node::foo") {
		t.Fatal("expected trimmed qualified token match")
	}
	if matchesFilter([]string{"bar"}, "foo", "node::foo") {
		t.Fatal("expected no match")
	}
}

func TestRun_NoRequestSucceeds(t *testing.T) {
	deps := newTestDeps()
	s := suite.Suite{NodeID: "n1"}
	st := suite.Step{Name: "no-op"}
	res := Run(context.Background(), deps, "n1", s, st, nil)
	if res.Status != result.StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestRun_StepFilterSkips(t *testing.T) {
	deps := newTestDeps()
	s := suite.Suite{NodeID: "n1"}
	st := suite.Step{Name: "no-op", StepID: "alpha"}
	res := Run(context.Background(), deps, "n1", s, st, []string{"beta"})
	if res.Status != result.StatusSkipped {
		t.Fatalf("expected skipped, got %+v", res)
	}
}

func TestRun_CallResolvesTargetStepAndSucceeds(t *testing.T) {
	deps := newTestDeps()
	deps.Suites = stubLookup{suites: map[string]suite.Suite{
		"./setup.test.yml": {
			NodeID: "setup",
			Steps: []suite.Step{
				{Name: "seed", StepID: "seed"},
			},
		},
	}}

	caller := suite.Suite{NodeID: "api", FilePath: "/tests/api.test.yml"}
	st := suite.Step{
		Name: "invoke setup",
		Call: &suite.Call{Test: "./setup.test.yml", Step: "seed"},
	}

	res := Run(context.Background(), deps, "api", caller, st, nil)
	if res.Status != result.StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestRunIterations_LoopsOverArray(t *testing.T) {
	deps := newTestDeps()
	deps.Store.Set(vars.Runtime, "users", []interface{}{"alice", "bob", "carol"})

	s := suite.Suite{NodeID: "n1"}
	st := suite.Step{
		Name:    "per-user",
		StepID:  "per-user",
		Iterate: &suite.IterationSpec{Over: "users", As: "user"},
	}

	results := RunIterations(context.Background(), deps, "n1", s, st, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 iteration results, got %d", len(results))
	}
	for i, r := range results {
		if r.Status != result.StatusSuccess {
			t.Fatalf("iteration %d: expected success, got %+v", i, r)
		}
		want := "per-user[" + string(rune('0'+i)) + "]"
		if r.StepID != want {
			t.Fatalf("expected step id %q, got %q", want, r.StepID)
		}
	}
}

func TestRunIterations_NonArrayOverFails(t *testing.T) {
	deps := newTestDeps()
	deps.Store.Set(vars.Runtime, "count", 3)

	s := suite.Suite{NodeID: "n1"}
	st := suite.Step{
		Name:    "per-user",
		Iterate: &suite.IterationSpec{Over: "count", As: "user"},
	}

	results := RunIterations(context.Background(), deps, "n1", s, st, nil)
	if len(results) != 1 || results[0].Status != result.StatusFailure {
		t.Fatalf("expected a single failure result, got %+v", results)
	}
}

func TestRunIterations_FilterSkipsAllIterations(t *testing.T) {
	deps := newTestDeps()
	deps.Store.Set(vars.Runtime, "users", []interface{}{"alice", "bob"})

	s := suite.Suite{NodeID: "n1"}
	st := suite.Step{
		Name:    "per-user",
		StepID:  "per-user",
		Iterate: &suite.IterationSpec{Over: "users", As: "user"},
	}

	results := RunIterations(context.Background(), deps, "n1", s, st, []string{"other"})
	if len(results) != 1 || results[0].Status != result.StatusSkipped {
		t.Fatalf("expected a single skipped result, got %+v", results)
	}
}

func TestResolveBaseURL_RelativeJoinsConfiguredBase(t *testing.T) {
	got := resolveBaseURL("https://api.test/v1", "/users")
	if got != "https://api.test/users" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveBaseURL_AbsoluteURLPassesThrough(t *testing.T) {
	got := resolveBaseURL("https://api.test", "https://other.test/users")
	if got != "https://other.test/users" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveBaseURL_NoBaseConfiguredPassesThrough(t *testing.T) {
	got := resolveBaseURL("", "/users")
	if got != "/users" {
		t.Fatalf("got %q", got)
	}
}

func TestInterpolateRequest_UsesDepsBaseURLAndTimeout(t *testing.T) {
	deps := newTestDeps()
	deps.BaseURL = "https://api.test"
	deps.DefaultTimeout = 5 * time.Second

	req := interpolateRequest(deps, suite.Request{Method: "GET", URL: "/health"})
	if req.URL != "https://api.test/health" {
		t.Fatalf("got %q", req.URL)
	}
	if req.Timeout != 5*time.Second {
		t.Fatalf("got %v", req.Timeout)
	}
}

func TestRun_CallRejectsAbsolutePath(t *testing.T) {
	deps := newTestDeps()
	deps.Suites = stubLookup{suites: map[string]suite.Suite{}}
	caller := suite.Suite{NodeID: "api"}
	st := suite.Step{Name: "bad call", Call: &suite.Call{Test: "/abs/path.test.yml", Step: "x"}}

	res := Run(context.Background(), deps, "api", caller, st, nil)
	if res.Status != result.StatusFailure {
		t.Fatalf("expected failure for absolute call path, got %+v", res)
	}
}
