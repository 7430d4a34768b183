package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph"
	"github.com/citetree/citetree/pkg/graph/decompose"
	"github.com/citetree/citetree/pkg/graph/fas"
	"github.com/citetree/citetree/pkg/observability"
)

// Runner executes the decomposition pipeline against one store. It holds
// no per-run state; a single Runner can be reused for sequential runs.
type Runner struct {
	Store  *store.Store
	Logger *log.Logger
}

// NewRunner creates a runner. logger may be nil.
func NewRunner(st *store.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Store: st, Logger: logger}
}

// Run executes one complete decomposition and persists it. On any stage
// failure the previous decomposition in the store is left untouched.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = r.Logger
	}

	result := &Result{Strategy: "none"}

	// Stage 1: Load
	var g *graph.Directed
	elapsed, err := r.stage(ctx, "load", func() (err error) {
		g, err = r.Store.LoadGraph(ctx)
		return err
	})
	result.Stats.LoadTime = elapsed
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Nodes = g.NodeCount()
	result.Edges = g.EdgeCount()
	logger.Info("loaded citation graph",
		"nodes", result.Nodes,
		"edges", result.Edges,
		"duration", elapsed)

	// Stage 2: SCC analysis
	var component []string
	elapsed, err = r.stage(ctx, "scc", func() error {
		components := graph.StronglyConnected(g)
		result.Components = len(components)
		result.LargestComponent = len(graph.LargestComponent(components))
		observability.Decomposition().OnComponentsFound(ctx, result.Components, result.LargestComponent)

		cyclic := cyclicComponents(g, components)
		if len(cyclic) > 1 {
			// Feedback edges are only drawn from the largest cyclic
			// component; additional ones will fail partition verification.
			logger.Warn("multiple cyclic components",
				"count", len(cyclic),
				"largest", len(cyclic[0]))
		}
		if len(cyclic) > 0 {
			component = cyclic[0]
		}
		logger.Info("analyzed components",
			"components", result.Components,
			"largest", result.LargestComponent,
			"sizes", graph.ComponentSizes(components))
		return nil
	})
	result.Stats.AnalyzeTime = elapsed
	if err != nil {
		return nil, fmt.Errorf("scc: %w", err)
	}

	// Stage 3: Feedback arc set
	var feedback []graph.Edge
	elapsed, err = r.stage(ctx, "solve", func() error {
		if len(component) == 0 {
			logger.Info("graph is acyclic, nothing to solve")
			return nil
		}
		solved, err := r.solve(g.Subgraph(component), opts)
		if err != nil {
			return err
		}
		feedback = solved.Feedback
		result.Strategy = solved.Strategy
		result.Retries = solved.Retries
		observability.Decomposition().OnFeedbackResolved(ctx, solved.Strategy, len(feedback), solved.Retries)

		for _, skip := range solved.Skipped {
			logger.Warn("strategy declined", "strategy", skip.Strategy, "reason", skip.Reason)
		}
		logger.Info("resolved feedback edges",
			"strategy", solved.Strategy,
			"edges", len(feedback),
			"retries", solved.Retries)
		return nil
	})
	result.Stats.SolveTime = elapsed
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCycle, err, "solve")
	}

	// Stage 4: Partition
	var d *decompose.Decomposition
	elapsed, err = r.stage(ctx, "partition", func() (err error) {
		d, err = decompose.Partition(g, feedback, component)
		return err
	})
	result.Stats.PartitionTime = elapsed
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCycle, err, "partition")
	}
	result.TreeEdges = len(d.TreeEdges)
	result.ExtraEdges = len(d.ExtraEdges)
	logger.Info("partitioned edges",
		"tree", result.TreeEdges,
		"extra", result.ExtraEdges)

	// Stage 5: Levels
	var levels map[string]int
	elapsed, err = r.stage(ctx, "levels", func() (err error) {
		assign := decompose.AssignLevels
		if opts.Levels == LevelsStrictBFS {
			assign = decompose.AssignLevelsStrictBFS
		}
		levels, err = assign(g, d.TreeEdges)
		return err
	})
	result.Stats.LevelTime = elapsed
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCycle, err, "levels")
	}
	result.MaxLevel = decompose.MaxLevel(levels)
	result.LevelHistogram = decompose.LevelHistogram(levels)
	logger.Info("assigned levels",
		"semantics", opts.Levels,
		"max_level", result.MaxLevel)

	// Stage 6: Persist
	elapsed, err = r.stage(ctx, "persist", func() error {
		return r.Store.SaveDecomposition(ctx, g, d, levels)
	})
	result.Stats.PersistTime = elapsed
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	logger.Info("persisted decomposition", "duration", elapsed)

	return result, nil
}

// solve runs the verified feedback arc set solver on the cyclic subgraph.
func (r *Runner) solve(sub *graph.Directed, opts Options) (*fas.Result, error) {
	strategy, err := strategyFor(opts)
	if err != nil {
		return nil, err
	}
	solver := fas.NewSolver(strategy)
	solver.MaxRetries = opts.MaxRetries
	return solver.Solve(sub)
}

// strategyFor builds the configured strategy, honoring the coverage
// override for the chronological heuristic.
func strategyFor(opts Options) (fas.Strategy, error) {
	if opts.Strategy == fas.StrategyChronological && opts.MinCoverage > 0 {
		return fas.Chronological{MinCoverage: opts.MinCoverage}, nil
	}
	return fas.ForName(opts.Strategy)
}

// stage wraps one pipeline stage with timing and observability hooks.
func (r *Runner) stage(ctx context.Context, name string, fn func() error) (time.Duration, error) {
	observability.Decomposition().OnStageStart(ctx, name)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	observability.Decomposition().OnStageComplete(ctx, name, elapsed, err)
	return elapsed, err
}

// cyclicComponents returns the components that contain a cycle: the
// non-trivial ones plus self-loop singletons, largest first.
func cyclicComponents(g *graph.Directed, components [][]string) [][]string {
	var cyclic [][]string
	for _, component := range components {
		if len(component) > 1 || slices.Contains(g.Successors(component[0]), component[0]) {
			cyclic = append(cyclic, component)
		}
	}
	slices.SortFunc(cyclic, func(a, b []string) int { return len(b) - len(a) })
	return cyclic
}
