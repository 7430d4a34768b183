package fas

import "github.com/citetree/citetree/pkg/graph"

// GreedyOrdering is the production default: the Eades–Lin–Smyth node
// ordering heuristic. Every remaining node is scored by
// outDegree − inDegree within the shrinking subgraph; the maximum-scoring
// node is repeatedly extracted into a linear order and its neighbors'
// scores updated. Edges pointing backward relative to the final order form
// the feedback set.
//
// Removing every backward edge of any total order yields an acyclic graph,
// so this strategy always satisfies the solver's postcondition; the
// ordering only affects how few edges are removed. Runs in near-linear
// time in the edge count via score buckets.
type GreedyOrdering struct{}

// Name returns "greedy-ordering".
func (GreedyOrdering) Name() string { return StrategyGreedyOrdering }

// Apply computes the feedback edge set of g. The input is not mutated.
func (GreedyOrdering) Apply(g *graph.Directed) ([]graph.Edge, error) {
	order := greedyOrder(g)
	pos := graph.PosMap(order)

	var feedback []graph.Edge
	for _, e := range g.Edges() {
		// Self-loops are trivially cyclic and never backward relative to
		// any order, so they are classified directly.
		if e.Src == e.Dst || pos[e.Src] > pos[e.Dst] {
			feedback = append(feedback, e)
		}
	}
	return feedback, nil
}

// greedyOrder produces the linear order. Scores are kept in buckets keyed
// by score so extraction of the maximum and the ±1 score updates are O(1)
// amortized; the maximum pointer only moves down across extractions except
// for the +1 bumps, which it follows directly.
func greedyOrder(g *graph.Directed) []string {
	n := g.NodeCount()
	if n == 0 {
		return nil
	}

	score := make(map[string]int, n)
	buckets := make(map[int]map[string]struct{})
	remaining := make(map[string]bool, n)

	put := func(id string, s int) {
		b := buckets[s]
		if b == nil {
			b = make(map[string]struct{})
			buckets[s] = b
		}
		b[id] = struct{}{}
	}
	del := func(id string, s int) {
		b := buckets[s]
		delete(b, id)
		if len(b) == 0 {
			delete(buckets, s)
		}
	}

	maxScore := 0
	first := true
	for _, id := range g.NodeIDs() {
		s := g.OutDegree(id) - g.InDegree(id)
		score[id] = s
		remaining[id] = true
		put(id, s)
		if first || s > maxScore {
			maxScore = s
			first = false
		}
	}

	reScore := func(id string, delta int) {
		old := score[id]
		del(id, old)
		score[id] = old + delta
		put(id, old+delta)
		if old+delta > maxScore {
			maxScore = old + delta
		}
	}

	order := make([]string, 0, n)
	for len(remaining) > 0 {
		for len(buckets[maxScore]) == 0 {
			maxScore--
		}
		var id string
		for cand := range buckets[maxScore] {
			id = cand
			break
		}
		del(id, maxScore)
		delete(remaining, id)
		delete(score, id)
		order = append(order, id)

		// Successors lose an incoming edge (score rises); predecessors lose
		// an outgoing edge (score falls).
		for _, succ := range g.Successors(id) {
			if remaining[succ] {
				reScore(succ, +1)
			}
		}
		for _, pred := range g.Predecessors(id) {
			if remaining[pred] {
				reScore(pred, -1)
			}
		}
	}
	return order
}
