package fas

import (
	"fmt"

	"github.com/citetree/citetree/pkg/graph"
)

// DefaultMinCoverage is the fraction of nodes that must carry a
// publication year for [Chronological] to run.
const DefaultMinCoverage = 0.9

// Chronological removes citations that violate expected chronological
// direction: a citation normally points from a later paper to an earlier
// one, so an edge whose source is not later than its destination is
// treated as feedback. Cheap, but only usable where timestamp coverage is
// high; edges with an undated endpoint are kept, so the result can remain
// cyclic and the solver's verification pass decides whether to accept it.
type Chronological struct {
	// MinCoverage is the minimum fraction of nodes with a known year.
	// Below it Apply returns ErrLowCoverage. Zero means DefaultMinCoverage.
	MinCoverage float64
}

// Name returns "chronological".
func (Chronological) Name() string { return StrategyChronological }

// Coverage returns the fraction of nodes in g with a known publication
// year, or 1 for an empty graph.
func (Chronological) Coverage(g *graph.Directed) float64 {
	if g.NodeCount() == 0 {
		return 1
	}
	dated := 0
	for _, n := range g.Nodes() {
		if n.Year > 0 {
			dated++
		}
	}
	return float64(dated) / float64(g.NodeCount())
}

// Apply computes the feedback edge set of g. The input is not mutated.
func (c Chronological) Apply(g *graph.Directed) ([]graph.Edge, error) {
	min := c.MinCoverage
	if min == 0 {
		min = DefaultMinCoverage
	}
	coverage := c.Coverage(g)
	if coverage < min {
		return nil, fmt.Errorf("%w: %.1f%% of nodes dated, need %.1f%%",
			ErrLowCoverage, coverage*100, min*100)
	}

	var feedback []graph.Edge
	for _, e := range g.Edges() {
		src, _ := g.Node(e.Src)
		dst, _ := g.Node(e.Dst)
		if src.Year == 0 || dst.Year == 0 {
			continue
		}
		if src.Year <= dst.Year {
			feedback = append(feedback, e)
		}
	}
	return feedback, nil
}
