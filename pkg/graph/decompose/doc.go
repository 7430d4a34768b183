// Package decompose splits a citation graph into a spanning tree edge set
// and an extra edge set, and assigns topological levels over the tree.
//
// # Overview
//
// Given a verified feedback edge set (see pkg/graph/fas), [Partition]
// produces a [Decomposition]: tree edges are every edge not in the feedback
// set, extra edges are the feedback set itself. The invariants are
// re-verified rather than assumed:
//
//   - tree ∪ extra equals the original edge set, tree ∩ extra is empty
//   - the whole-graph tree edge set is acyclic
//   - every extra edge's endpoints lie in the largest strongly connected
//     component
//
// [AssignLevels] then computes per-node levels over the tree edges using
// longest-path Kahn propagation, so level(dst) > level(src) holds for every
// tree edge. A strict breadth-first variant with shortest-path semantics is
// available as [AssignLevelsStrictBFS] for overview density tuning; it does
// not honor the per-edge invariant.
//
// Both steps run in the offline decomposition pipeline, not on the request
// path.
package decompose
