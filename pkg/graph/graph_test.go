package graph

import (
	"testing"

	"github.com/flowtestdev/flowtest/pkg/suite"
)

func mkSuite(id string, deps ...string) suite.Suite {
	s := suite.Suite{NodeID: id, SuiteName: id, Metadata: suite.Metadata{Priority: suite.PriorityMedium}}
	for _, d := range deps {
		s.Depends = append(s.Depends, suite.Dependency{NodeID: d})
	}
	return s
}

func TestOrder_DependencyPrecedes(t *testing.T) {
	suites := []suite.Suite{mkSuite("api", "setup"), mkSuite("setup")}
	g := Build(suites, BuildOptions{})
	if cycles := FindCycles(g); len(cycles) != 0 {
		t.Fatalf("unexpected cycles: %v", cycles)
	}
	order := Order(g, nil)
	posSetup, posAPI := indexOf(order, "setup"), indexOf(order, "api")
	if posSetup >= posAPI {
		t.Fatalf("expected setup before api, got order %v", order)
	}
}

func TestFindCycles_DetectsSimpleCycle(t *testing.T) {
	suites := []suite.Suite{mkSuite("a", "b"), mkSuite("b", "a")}
	g := Build(suites, BuildOptions{})
	cycles := FindCycles(g)
	if len(cycles) == 0 {
		t.Fatal("expected at least one cycle")
	}
}

func TestOrder_PriorityTieBreak(t *testing.T) {
	low := mkSuite("low")
	low.Metadata.Priority = suite.PriorityLow
	crit := mkSuite("crit")
	crit.Metadata.Priority = suite.PriorityCritical
	med := mkSuite("med")
	med.Metadata.Priority = suite.PriorityMedium

	g := Build([]suite.Suite{low, crit, med}, BuildOptions{})
	order := Order(g, nil)
	if order[0] != "crit" {
		t.Fatalf("expected crit first, got %v", order)
	}
}

func TestResolveByPath(t *testing.T) {
	setup := suite.Suite{NodeID: "setup", SuiteName: "setup", FilePath: "/tests/setup.test.yml"}
	api := suite.Suite{NodeID: "api", SuiteName: "api", Depends: []suite.Dependency{{Path: "./setup.test.yml"}}}
	g := Build([]suite.Suite{setup, api}, BuildOptions{})
	node, _ := g.Get("api")
	if len(node.DependsOn) != 1 || node.DependsOn[0] != "setup" {
		t.Fatalf("expected api to resolve path dependency to setup, got %v", node.DependsOn)
	}
}

func TestMissingDependency_Dropped(t *testing.T) {
	s := mkSuite("x", "ghost")
	g := Build([]suite.Suite{s}, BuildOptions{})
	node, _ := g.Get("x")
	if len(node.DependsOn) != 0 {
		t.Fatalf("expected missing dependency to be dropped, got %v", node.DependsOn)
	}
}

func indexOf(ss []string, v string) int {
	for i, s := range ss {
		if s == v {
			return i
		}
	}
	return -1
}
