package fas

import (
	"errors"
	"fmt"

	"github.com/citetree/citetree/pkg/graph"
)

// Bounds for [CycleMajority]. Cycle enumeration is exponential in the
// worst case; these keep the diagnostic usable on test-scale graphs.
const (
	DefaultCycleMajorityMaxNodes  = 2000
	DefaultCycleMajorityMaxCycles = 50000
)

// CycleMajority repeatedly enumerates simple cycles, removes the edge
// participating in the most cycles, and repeats until the graph is
// acyclic.
//
// This is a diagnostic baseline, unsuitable for production scale: the
// number of simple cycles can grow exponentially with graph size. Apply
// refuses graphs above MaxNodes, and each enumeration round caps the
// cycles it collects at MaxCycles (the count-based choice then works from
// a sample, which only affects quality, not correctness).
type CycleMajority struct {
	// MaxNodes bounds the graph size Apply accepts.
	// Zero means DefaultCycleMajorityMaxNodes.
	MaxNodes int

	// MaxCycles caps the cycles collected per enumeration round.
	// Zero means DefaultCycleMajorityMaxCycles.
	MaxCycles int
}

// Name returns "cycle-majority".
func (CycleMajority) Name() string { return StrategyCycleMajority }

// Apply computes the feedback edge set of g. The input is not mutated.
func (c CycleMajority) Apply(g *graph.Directed) ([]graph.Edge, error) {
	maxNodes := c.MaxNodes
	if maxNodes == 0 {
		maxNodes = DefaultCycleMajorityMaxNodes
	}
	maxCycles := c.MaxCycles
	if maxCycles == 0 {
		maxCycles = DefaultCycleMajorityMaxCycles
	}
	if g.NodeCount() > maxNodes {
		return nil, fmt.Errorf("%w: %d nodes, bound is %d", ErrGraphTooLarge, g.NodeCount(), maxNodes)
	}

	work := g.Clone()
	var feedback []graph.Edge
	for {
		if err := work.CheckAcyclic(); err == nil {
			return feedback, nil
		} else if !errors.Is(err, graph.ErrGraphHasCycle) {
			return nil, err
		}

		counts := countEdgeCycles(work, maxCycles)
		if len(counts) == 0 {
			// CheckAcyclic found a cycle but the bounded enumeration did
			// not; should not happen, but never loop forever.
			return nil, fmt.Errorf("cycle enumeration found no cycles in a cyclic graph")
		}

		best := graph.Edge{}
		bestCount := -1
		for e, n := range counts {
			if n > bestCount || (n == bestCount && less(e, best)) {
				best, bestCount = e, n
			}
		}
		work.RemoveEdge(best.Src, best.Dst)
		feedback = append(feedback, best)
	}
}

func less(a, b graph.Edge) bool {
	if a.Src != b.Src {
		return a.Src < b.Src
	}
	return a.Dst < b.Dst
}

// countEdgeCycles enumerates up to maxCycles simple cycles and returns how
// many each edge participates in. Duplicate enumeration of the same cycle
// from different start nodes is avoided by only walking nodes at or after
// the start node in a fixed order.
func countEdgeCycles(g *graph.Directed, maxCycles int) map[graph.Edge]int {
	ids := g.NodeIDs()
	rank := graph.PosMap(ids)
	counts := make(map[graph.Edge]int)
	found := 0

	var path []string
	onPath := make(map[string]bool)

	var walk func(start, curr string) bool
	walk = func(start, curr string) bool {
		path = append(path, curr)
		onPath[curr] = true
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, curr)
		}()

		for _, next := range g.Successors(curr) {
			if next == start {
				for i := range path {
					dst := start
					if i+1 < len(path) {
						dst = path[i+1]
					}
					counts[graph.Edge{Src: path[i], Dst: dst}]++
				}
				found++
				if found >= maxCycles {
					return false
				}
				continue
			}
			if rank[next] <= rank[start] || onPath[next] {
				continue
			}
			if !walk(start, next) {
				return false
			}
		}
		return true
	}

	for _, start := range ids {
		if !walk(start, start) {
			break
		}
	}
	return counts
}
