package engine

import (
	"context"
	"sync"

	"github.com/flowtestdev/flowtest/pkg/graph"
)

// runParallel executes order's nodes with a worker-pool bounded by
// maxParallel, picking the next ready node (every dependency already
// finished) rather than the order slice's single topological thread
// (spec.md §5: "a worker-pool pattern that picks the next ready node whose
// dependencies are all resolved").
//
// Grounded on the teacher's orchestrate.go semaphore/WaitGroup idiom
// (`semaphore := make(chan struct{}, concurrency)`), adapted from a flat
// batch of independent scenarios to a dependency-respecting ready queue.
func runParallel(ctx context.Context, g *graph.Graph, order []string, maxParallel int, execute func(nodeID string)) {
	if maxParallel <= 0 {
		maxParallel = 5
	}

	var mu sync.Mutex
	done := make(map[string]bool, len(order))
	remaining := make(map[string]bool, len(order))
	for _, id := range order {
		remaining[id] = true
	}

	semaphore := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	isReady := func(nodeID string) bool {
		node, ok := g.Get(nodeID)
		if !ok {
			return true
		}
		for _, dep := range node.DependsOn {
			if !done[dep] {
				return false
			}
		}
		return true
	}

	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mu.Lock()
		var ready []string
		for _, id := range order {
			if remaining[id] && isReady(id) {
				ready = append(ready, id)
				delete(remaining, id)
			}
		}
		mu.Unlock()

		if len(ready) == 0 {
			// Nothing ready but nodes remain: a dependency never finished
			// (shouldn't happen given the graph has no cycle by this
			// point), avoid spinning forever.
			return
		}

		for _, nodeID := range ready {
			wg.Add(1)
			semaphore <- struct{}{}
			go func(id string) {
				defer wg.Done()
				defer func() { <-semaphore }()
				execute(id)
				mu.Lock()
				done[id] = true
				mu.Unlock()
			}(nodeID)
		}
		wg.Wait()
	}
}
