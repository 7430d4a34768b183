package decompose

import (
	"errors"
	"fmt"

	"github.com/citetree/citetree/pkg/graph"
)

var (
	// ErrUnknownFeedbackEdge is returned by [Partition] when the feedback
	// set contains an edge that does not exist in the graph.
	ErrUnknownFeedbackEdge = errors.New("feedback edge not present in graph")

	// ErrTreeNotAcyclic is returned by [Partition] when the tree edge set
	// still contains a cycle. This indicates a broken feedback set and the
	// decomposition must not be persisted.
	ErrTreeNotAcyclic = errors.New("tree edge set is not acyclic")

	// ErrExtraOutsideComponent is returned by [Partition] when an extra
	// edge has an endpoint outside the largest strongly connected
	// component. Feedback edges are only ever chosen inside it, so this
	// indicates the solver was run against the wrong subgraph.
	ErrExtraOutsideComponent = errors.New("extra edge endpoint outside largest component")
)

// Decomposition is the spanning split of a citation graph's edge set.
// TreeEdges and ExtraEdges are disjoint and their union is the full edge
// set; the graph induced by TreeEdges alone is acyclic.
type Decomposition struct {
	TreeEdges  []graph.Edge
	ExtraEdges []graph.Edge
}

// Partition splits the edges of g into tree edges (everything not in
// feedback) and extra edges (the feedback set), then re-verifies the
// invariants the rest of the system depends on:
//
//   - every feedback edge exists in g
//   - the whole-graph tree edge set admits a topological order, not just
//     the formerly cyclic component
//   - both endpoints of every extra edge lie in component, the largest
//     strongly connected component computed before cycle breaking
//
// g is not mutated. Verification failures are fatal to the caller; a
// decomposition that fails here must never reach the store.
func Partition(g *graph.Directed, feedback []graph.Edge, component []string) (*Decomposition, error) {
	inFeedback := make(map[graph.Edge]bool, len(feedback))
	for _, e := range feedback {
		inFeedback[e] = true
	}

	inComponent := make(map[string]bool, len(component))
	for _, id := range component {
		inComponent[id] = true
	}

	d := &Decomposition{
		TreeEdges:  make([]graph.Edge, 0, g.EdgeCount()-len(inFeedback)),
		ExtraEdges: make([]graph.Edge, 0, len(inFeedback)),
	}
	seen := 0
	for _, e := range g.Edges() {
		if inFeedback[e] {
			d.ExtraEdges = append(d.ExtraEdges, e)
			seen++
			continue
		}
		d.TreeEdges = append(d.TreeEdges, e)
	}
	if seen != len(inFeedback) {
		return nil, fmt.Errorf("%w: %d of %d feedback edges matched",
			ErrUnknownFeedbackEdge, seen, len(inFeedback))
	}

	for _, e := range d.ExtraEdges {
		if !inComponent[e.Src] || !inComponent[e.Dst] {
			return nil, fmt.Errorf("%w: %s→%s", ErrExtraOutsideComponent, e.Src, e.Dst)
		}
	}

	tree := g.Clone()
	tree.RemoveEdges(d.ExtraEdges)
	if _, err := tree.TopoSort(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTreeNotAcyclic, err)
	}
	return d, nil
}

// TreeGraph returns a copy of g containing only the decomposition's tree
// edges. Node payloads are preserved.
func (d *Decomposition) TreeGraph(g *graph.Directed) *graph.Directed {
	tree := g.Clone()
	tree.RemoveEdges(d.ExtraEdges)
	return tree
}
