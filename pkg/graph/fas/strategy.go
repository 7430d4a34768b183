package fas

import (
	"errors"
	"fmt"

	"github.com/citetree/citetree/pkg/graph"
)

// Strategy names recognized by [ForName] and the configuration surface.
const (
	StrategyGreedyOrdering = "greedy-ordering"
	StrategyChronological  = "chronological"
	StrategyCycleMajority  = "cycle-majority"
)

var (
	// ErrUnknownStrategy is returned by [ForName] for an unrecognized
	// strategy name.
	ErrUnknownStrategy = errors.New("unknown feedback arc set strategy")

	// ErrLowCoverage is returned by [Chronological.Apply] when too few nodes
	// carry a publication year for chronological direction to be meaningful.
	// The solver falls back to another strategy on this error.
	ErrLowCoverage = errors.New("insufficient timestamp coverage")

	// ErrGraphTooLarge is returned by [CycleMajority.Apply] for graphs above
	// its node bound. Cycle enumeration is exponential in the worst case;
	// the strategy exists for small-scale comparison only.
	ErrGraphTooLarge = errors.New("graph too large for cycle enumeration")
)

// Strategy computes a feedback edge set for a directed graph: a set of
// edges whose removal is intended to make the graph acyclic. Strategies are
// heuristics - the result is best-effort, not minimum, and is not trusted
// until [Solver] verifies acyclicity.
//
// Apply must not mutate its argument.
type Strategy interface {
	// Name returns the configuration name of the strategy.
	Name() string

	// Apply returns the feedback edge set for g.
	Apply(g *graph.Directed) ([]graph.Edge, error)
}

// ForName returns the strategy registered under the given configuration
// name, or ErrUnknownStrategy.
func ForName(name string) (Strategy, error) {
	switch name {
	case StrategyGreedyOrdering:
		return GreedyOrdering{}, nil
	case StrategyChronological:
		return Chronological{MinCoverage: DefaultMinCoverage}, nil
	case StrategyCycleMajority:
		return CycleMajority{MaxNodes: DefaultCycleMajorityMaxNodes}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}
