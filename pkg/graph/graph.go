// Package graph builds the suite dependency graph, detects cycles, and
// produces a deterministic topological execution order.
//
// Nodes are keyed by node_id in an arena-plus-index representation (a slice
// of nodes plus a name→index map) rather than pointer-linked nodes, so the
// structure tolerates — and can report on — cycles without creating
// reference cycles in Go's GC-managed graph (spec.md §9 design notes).
// The node/edge vocabulary (DependsOn/Dependents) is grounded on
// Streamy's ports.ExecutionNode.
package graph

import (
	"sort"
	"strings"

	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/flowtestdev/flowtest/pkg/suite"
	"github.com/rs/zerolog"
)

// Node is one vertex in the dependency graph: a suite plus its resolved
// edges. DependsOn lists the node_ids that must run before this node;
// Dependents lists the node_ids that depend on this node.
type Node struct {
	Suite      suite.Suite
	DependsOn  []string
	Dependents []string
}

// Graph is the arena: Nodes in discovery order, Index maps node_id to its
// position in Nodes.
type Graph struct {
	Nodes []*Node
	Index map[string]int
}

// BuildOptions configures graph construction.
type BuildOptions struct {
	Logger zerolog.Logger
}

// Build constructs a Graph from discovered suites, resolving each
// dependency entry to a node_id. Unresolved dependencies emit a warning via
// the logger and are dropped (spec.md §4.2); they are never fatal.
func Build(suites []suite.Suite, opts BuildOptions) *Graph {
	g := &Graph{Index: make(map[string]int, len(suites))}
	for _, s := range suites {
		g.Index[s.NodeID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, &Node{Suite: s})
	}

	// Resolve each dependency entry: node_id first, then filePath
	// substring/stem matching.
	for _, n := range g.Nodes {
		for _, dep := range n.Suite.Depends {
			targetID, ok := resolveDependency(g, dep)
			if !ok {
				missing := &errs.MissingDependencyError{NodeID: n.Suite.NodeID, NodeID2: dep.NodeID, FilePath: dep.Path}
				opts.Logger.Warn().Err(missing).Msg("dropping unresolved dependency edge")
				continue
			}
			if targetID == n.Suite.NodeID {
				continue // self-dependency is meaningless, silently ignored
			}
			n.DependsOn = append(n.DependsOn, targetID)
			g.Nodes[g.Index[targetID]].Dependents = append(g.Nodes[g.Index[targetID]].Dependents, n.Suite.NodeID)
		}
	}
	return g
}

func resolveDependency(g *Graph, dep suite.Dependency) (string, bool) {
	if dep.NodeID != "" {
		if _, ok := g.Index[dep.NodeID]; ok {
			return dep.NodeID, true
		}
		// node_id given but not found: still try path as a fallback if present.
		if dep.Path == "" {
			return "", false
		}
	}
	if dep.Path == "" {
		return "", false
	}
	return resolveByPath(g, dep.Path)
}

// resolveByPath matches a dependency path against discovered file paths by
// substring either direction, and by filename stem.
func resolveByPath(g *Graph, path string) (string, bool) {
	norm := normalizeSlashes(path)
	stem := fileStem(norm)

	for _, n := range g.Nodes {
		candidate := normalizeSlashes(n.Suite.FilePath)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, norm) || strings.Contains(norm, candidate) {
			return n.Suite.NodeID, true
		}
	}
	for _, n := range g.Nodes {
		if fileStem(normalizeSlashes(n.Suite.FilePath)) == stem {
			return n.Suite.NodeID, true
		}
	}
	return "", false
}

func normalizeSlashes(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
}

func fileStem(p string) string {
	slash := strings.LastIndex(p, "/")
	if slash >= 0 {
		p = p[slash+1:]
	}
	for _, suffix := range []string{".test.yml", ".test.yaml", ".test.json", ".yml", ".yaml", ".json"} {
		if strings.HasSuffix(p, suffix) {
			return strings.TrimSuffix(p, suffix)
		}
	}
	return p
}

// Get returns the node for a node_id, if present.
func (g *Graph) Get(nodeID string) (*Node, bool) {
	idx, ok := g.Index[nodeID]
	if !ok {
		return nil, false
	}
	return g.Nodes[idx], true
}

// FindCycles returns every cycle discovered via depth-first traversal with
// a recursion stack. Each cycle is reported as the ordered node_id path
// including the repeated node at both ends, matching spec.md §4.2's
// "→"-joined reporting.
func FindCycles(g *Graph) [][]string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current recursion stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.Nodes))
	var stack []string
	var cycles [][]string

	// Sort node ids for deterministic traversal order.
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.Suite.NodeID)
	}
	sort.Strings(ids)

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		node, _ := g.Get(id)
		deps := append([]string(nil), node.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// Found a cycle: extract the portion of the stack from dep's
				// first occurrence onward, close the loop.
				for i, s := range stack {
					if s == dep {
						cyclePath := append([]string(nil), stack[i:]...)
						cyclePath = append(cyclePath, dep)
						cycles = append(cycles, cyclePath)
						break
					}
				}
			case black:
				// already fully explored, no cycle through here
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}

// FormatCycles renders cycles as "→"-joined strings for error reporting.
func FormatCycles(cycles [][]string) []string {
	out := make([]string, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, strings.Join(c, " → "))
	}
	return out
}

// CycleErr builds an errs.CycleError from detected cycles, or nil if none.
func CycleErr(cycles [][]string) error {
	if len(cycles) == 0 {
		return nil
	}
	return &errs.CycleError{Cycles: cycles}
}
