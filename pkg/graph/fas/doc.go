// Package fas computes feedback arc sets: edge sets whose removal makes a
// directed graph acyclic.
//
// # Overview
//
// Citation graphs accumulate cycles through dirty data and near-simultaneous
// publication. Before a spanning decomposition can be built, the cycles in
// the largest strongly connected component have to be broken by removing a
// small set of edges. Finding the minimum such set is NP-hard, so this
// package offers interchangeable heuristics behind the [Strategy] interface:
//
//   - [GreedyOrdering]: the Eades–Lin–Smyth node ordering heuristic,
//     near-linear time, production default.
//   - [Chronological]: removes citations that violate expected publication
//     order, gated on timestamp coverage.
//   - [CycleMajority]: exhaustive cycle enumeration baseline for
//     small-scale comparison.
//
// # Verification
//
// No strategy result is trusted. [Solver] removes the proposed edges from a
// scratch copy and checks acyclicity; residual cycles are repaired by
// re-applying the fallback strategy to the still-cyclic subgraph. A solver
// run either produces a verified feedback set or fails with
// [ErrAcyclicityNotAchieved].
//
// # Basic Usage
//
//	strategy, err := fas.ForName("greedy-ordering")
//	if err != nil { ... }
//	result, err := fas.NewSolver(strategy).Solve(g)
//	if err != nil { ... }
//	// result.Feedback leaves g acyclic once removed.
package fas
