package decompose

import (
	"errors"
	"fmt"

	"github.com/citetree/citetree/pkg/graph"
)

// ErrLevelCycle is returned by the level assigners when propagation cannot
// reach every node, which only happens if the tree edge set contains a
// cycle. Run [Partition] first; it verifies acyclicity.
var ErrLevelCycle = errors.New("level propagation did not reach every node")

// AssignLevels computes the topological level of every node over the tree
// edge set: roots (no incoming tree edge) sit at level 0 and each node is
// placed one below its deepest parent. Longest-path depths are the only
// semantics that guarantee level(dst) > level(src) for every tree edge,
// which overview loading relies on.
//
// Implemented as Kahn's algorithm with max-propagation. Nodes with no tree
// edges at all are roots and get level 0. Returns ErrLevelCycle if the
// tree edges are cyclic.
func AssignLevels(g *graph.Directed, tree []graph.Edge) (map[string]int, error) {
	succ, inDegree := treeAdjacency(g, tree)

	levels := make(map[string]int, g.NodeCount())
	queue := make([]string, 0, g.NodeCount())
	for _, id := range g.NodeIDs() {
		levels[id] = 0
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		processed++

		for _, child := range succ[curr] {
			if level := levels[curr] + 1; level > levels[child] {
				levels[child] = level
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != g.NodeCount() {
		return nil, fmt.Errorf("%w: %d of %d nodes reached", ErrLevelCycle, processed, g.NodeCount())
	}
	return levels, nil
}

// AssignLevelsStrictBFS computes shortest-path levels with a strict
// per-level frontier: every node gets the level of the first frontier that
// reaches it. Unlike [AssignLevels] this does not honor the per-edge
// invariant level(dst) > level(src) when a node is reachable by both a
// short and a long path; it is kept selectable for overview density
// tuning only.
func AssignLevelsStrictBFS(g *graph.Directed, tree []graph.Edge) (map[string]int, error) {
	succ, inDegree := treeAdjacency(g, tree)

	levels := make(map[string]int, g.NodeCount())
	var frontier []string
	for _, id := range g.NodeIDs() {
		if inDegree[id] == 0 {
			levels[id] = 0
			frontier = append(frontier, id)
		}
	}

	for level := 1; len(frontier) > 0; level++ {
		var next []string
		for _, curr := range frontier {
			for _, child := range succ[curr] {
				if _, reached := levels[child]; reached {
					continue
				}
				levels[child] = level
				next = append(next, child)
			}
		}
		frontier = next
	}
	if len(levels) != g.NodeCount() {
		return nil, fmt.Errorf("%w: %d of %d nodes reached", ErrLevelCycle, len(levels), g.NodeCount())
	}
	return levels, nil
}

// LevelHistogram counts nodes per level, for stats reporting.
func LevelHistogram(levels map[string]int) map[int]int {
	histogram := make(map[int]int)
	for _, level := range levels {
		histogram[level]++
	}
	return histogram
}

// MaxLevel returns the deepest assigned level, or -1 for an empty map.
func MaxLevel(levels map[string]int) int {
	max := -1
	for _, level := range levels {
		if level > max {
			max = level
		}
	}
	return max
}

func treeAdjacency(g *graph.Directed, tree []graph.Edge) (succ map[string][]string, inDegree map[string]int) {
	succ = make(map[string][]string, g.NodeCount())
	inDegree = make(map[string]int, g.NodeCount())
	for _, e := range tree {
		succ[e.Src] = append(succ[e.Src], e.Dst)
		inDegree[e.Dst]++
	}
	return succ, inDegree
}
