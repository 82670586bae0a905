package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowtestdev/flowtest/pkg/config"
	"github.com/flowtestdev/flowtest/pkg/result"
	"github.com/rs/zerolog"
)

func writeSuite(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_TwoIndependentSuitesSucceed(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "a.test.yml", `
node_id: a
suite_name: A
steps:
  - name: no-op
`)
	writeSuite(t, dir, "b.test.yml", `
node_id: b
suite_name: B
steps:
  - name: no-op
`)

	cfg := &config.Config{
		ProjectName:   "test",
		TestDirectory: dir,
		Discovery:     config.Discovery{Patterns: []string{"**/*.test.yml"}},
		Execution:     config.Execution{Mode: "sequential"},
	}

	var ended *result.RunResult
	e := New(cfg, Hooks{OnExecutionEnd: func(r *result.RunResult) { ended = r }}, zerolog.Nop())

	run, err := e.Run(context.Background(), config.RuntimeFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if run.SuccessRate != 100 {
		t.Fatalf("expected 100%% success, got %+v", run)
	}
	if len(run.SuitesResults) != 2 {
		t.Fatalf("expected 2 suite results, got %d", len(run.SuitesResults))
	}
	if ended == nil {
		t.Fatal("expected OnExecutionEnd hook to fire")
	}
}

func TestRun_CycleAbortsBeforeExecution(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "a.test.yml", `
node_id: a
suite_name: A
depends:
  - node_id: b
steps:
  - name: no-op
`)
	writeSuite(t, dir, "b.test.yml", `
node_id: b
suite_name: B
depends:
  - node_id: a
steps:
  - name: no-op
`)

	cfg := &config.Config{
		ProjectName:   "test",
		TestDirectory: dir,
		Discovery:     config.Discovery{Patterns: []string{"**/*.test.yml"}},
		Execution:     config.Execution{Mode: "sequential"},
	}
	e := New(cfg, Hooks{}, zerolog.Nop())

	run, err := e.Run(context.Background(), config.RuntimeFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if run.TotalTests != 0 {
		t.Fatalf("expected no steps executed on cycle abort, got %d", run.TotalTests)
	}
	if run.ExitCode() != result.ExitCodeFailure {
		t.Fatalf("expected failure exit code, got %d", run.ExitCode())
	}
}

func TestRun_MissingDependencyRunsAsRoot(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "x.test.yml", `
node_id: x
suite_name: X
depends:
  - node_id: ghost
steps:
  - name: no-op
`)

	cfg := &config.Config{
		ProjectName:   "test",
		TestDirectory: dir,
		Discovery:     config.Discovery{Patterns: []string{"**/*.test.yml"}},
		Execution:     config.Execution{Mode: "sequential"},
	}
	e := New(cfg, Hooks{}, zerolog.Nop())

	run, err := e.Run(context.Background(), config.RuntimeFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if run.SuccessRate != 100 {
		t.Fatalf("expected missing dependency to be dropped and suite to still succeed, got %+v", run)
	}
}

func TestRun_ParallelModeMatchesSequentialOutcome(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "a.test.yml", `
node_id: a
suite_name: A
steps:
  - name: no-op
`)
	writeSuite(t, dir, "b.test.yml", `
node_id: b
suite_name: B
steps:
  - name: no-op
`)

	cfg := &config.Config{
		ProjectName:   "test",
		TestDirectory: dir,
		Discovery:     config.Discovery{Patterns: []string{"**/*.test.yml"}},
		Execution:     config.Execution{Mode: "parallel", MaxParallel: 2},
	}
	e := New(cfg, Hooks{}, zerolog.Nop())

	run, err := e.Run(context.Background(), config.RuntimeFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if run.SuccessRate != 100 || len(run.SuitesResults) != 2 {
		t.Fatalf("got %+v", run)
	}
}
