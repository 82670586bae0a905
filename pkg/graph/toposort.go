package graph

import (
	"sort"

	"github.com/flowtestdev/flowtest/pkg/suite"
)

// Order computes a deterministic topological ordering of g. Ties among
// nodes whose dependencies are all satisfied are broken first by priority
// (per priorityOrder, most urgent first), then by original declared order
// (input stability). The caller must ensure g has no cycle first — Order
// does not itself validate acyclicity.
func Order(g *Graph, priorityOrder []suite.Priority) []string {
	if len(priorityOrder) == 0 {
		priorityOrder = suite.DefaultPriorityOrder
	}
	rank := make(map[suite.Priority]int, len(priorityOrder))
	for i, p := range priorityOrder {
		rank[p] = i
	}
	declaredIndex := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		declaredIndex[n.Suite.NodeID] = i
	}

	indegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.Suite.NodeID] = len(n.DependsOn)
	}

	ready := make([]string, 0, len(g.Nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	lessReady := func(a, b string) bool {
		ra := rank[g.Nodes[g.Index[a]].Suite.Metadata.Priority]
		rb := rank[g.Nodes[g.Index[b]].Suite.Metadata.Priority]
		if ra != rb {
			return ra < rb
		}
		return declaredIndex[a] < declaredIndex[b]
	}

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return lessReady(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		node, _ := g.Get(next)
		for _, dependent := range node.Dependents {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return order
}
