package fas

import (
	"errors"
	"fmt"
	"slices"

	"github.com/citetree/citetree/pkg/graph"
)

// DefaultMaxRetries bounds how often [Solver.Solve] re-applies the
// fallback strategy to a residual cyclic subgraph before giving up.
const DefaultMaxRetries = 3

// ErrAcyclicityNotAchieved is returned by [Solver.Solve] when every
// strategy and retry is exhausted and the graph still contains a cycle.
// A result carrying this error must never be persisted: downstream
// consumers rely on the tree edge set being acyclic.
var ErrAcyclicityNotAchieved = errors.New("feedback edge set does not achieve acyclicity")

// Result is the verified outcome of a solver run.
type Result struct {
	// Feedback is the verified feedback edge set: removing these edges
	// from the input graph leaves it acyclic.
	Feedback []graph.Edge

	// Strategy is the name of the strategy that produced the bulk of the
	// feedback set.
	Strategy string

	// Retries counts fallback re-applications to residual cyclic
	// subgraphs. Zero means the strategy's first result verified clean.
	Retries int

	// Skipped lists strategies that declined to run (for example
	// chronological below its coverage threshold), with the reason.
	Skipped []SkippedStrategy
}

// SkippedStrategy records a strategy that declined to produce a result.
type SkippedStrategy struct {
	Strategy string
	Reason   error
}

// Solver applies feedback arc set strategies and never publishes an
// unverified result. Each strategy's output is checked by removing the
// proposed edges from a scratch copy and running an acyclicity check; a
// result that still contains cycles is repaired by re-applying the
// fallback strategy to the residual cyclic subgraph, up to MaxRetries
// times.
type Solver struct {
	// Strategies are tried in order. A strategy that returns
	// ErrLowCoverage or ErrGraphTooLarge is skipped; any other error
	// aborts the run.
	Strategies []Strategy

	// Fallback repairs residual cycles left by a strategy whose result
	// did not verify. Nil means GreedyOrdering, which always verifies.
	Fallback Strategy

	// MaxRetries bounds residual repairs. Zero means DefaultMaxRetries.
	MaxRetries int
}

// NewSolver returns a solver that tries primary first and falls back to
// GreedyOrdering, both as a later strategy and for residual repair.
func NewSolver(primary Strategy) *Solver {
	strategies := []Strategy{primary}
	if primary.Name() != StrategyGreedyOrdering {
		strategies = append(strategies, GreedyOrdering{})
	}
	return &Solver{Strategies: strategies}
}

// Solve computes a verified feedback edge set for g. The input is not
// mutated. The returned feedback set is guaranteed to leave g acyclic
// once removed; if no strategy achieves that within the retry budget the
// error wraps ErrAcyclicityNotAchieved.
func (s *Solver) Solve(g *graph.Directed) (*Result, error) {
	if len(s.Strategies) == 0 {
		return nil, fmt.Errorf("solver has no strategies configured")
	}
	fallback := s.Fallback
	if fallback == nil {
		fallback = GreedyOrdering{}
	}
	maxRetries := s.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	var skipped []SkippedStrategy
	for _, strat := range s.Strategies {
		feedback, err := strat.Apply(g)
		if err != nil {
			if errors.Is(err, ErrLowCoverage) || errors.Is(err, ErrGraphTooLarge) {
				skipped = append(skipped, SkippedStrategy{Strategy: strat.Name(), Reason: err})
				continue
			}
			return nil, fmt.Errorf("strategy %s: %w", strat.Name(), err)
		}

		res, err := s.verify(g, strat.Name(), feedback, fallback, maxRetries)
		if err != nil {
			return nil, err
		}
		res.Skipped = skipped
		return res, nil
	}
	return nil, fmt.Errorf("%w: all %d strategies declined to run", ErrAcyclicityNotAchieved, len(s.Strategies))
}

// verify removes feedback from a scratch copy of g and checks acyclicity,
// repairing residual cycles with the fallback strategy.
func (s *Solver) verify(g *graph.Directed, name string, feedback []graph.Edge, fallback Strategy, maxRetries int) (*Result, error) {
	work := g.Clone()
	work.RemoveEdges(feedback)

	retries := 0
	for work.CheckAcyclic() != nil {
		if retries >= maxRetries {
			return nil, fmt.Errorf("%w: strategy %s left cycles after %d repairs",
				ErrAcyclicityNotAchieved, name, retries)
		}
		retries++

		residual := residualCyclic(work)
		repair, err := fallback.Apply(residual)
		if err != nil {
			return nil, fmt.Errorf("repairing residual cycles with %s: %w", fallback.Name(), err)
		}
		if len(repair) == 0 {
			return nil, fmt.Errorf("%w: %s proposed no edges for a cyclic residual",
				ErrAcyclicityNotAchieved, fallback.Name())
		}
		work.RemoveEdges(repair)
		feedback = append(feedback, repair...)
	}

	return &Result{Feedback: feedback, Strategy: name, Retries: retries}, nil
}

// residualCyclic returns the subgraph of g induced by nodes that still
// participate in a cycle: members of non-trivial strongly connected
// components, plus nodes with a self-loop.
func residualCyclic(g *graph.Directed) *graph.Directed {
	var ids []string
	for _, component := range graph.StronglyConnected(g) {
		if len(component) > 1 {
			ids = append(ids, component...)
			continue
		}
		id := component[0]
		if slices.Contains(g.Successors(id), id) {
			ids = append(ids, id)
		}
	}
	return g.Subgraph(ids)
}
