// Package pipeline runs the batch decomposition: load the citation graph,
// analyze strongly connected components, solve a feedback arc set for the
// cyclic core, partition edges into tree and extra sets, assign topological
// levels, and persist the result.
//
// The pipeline is a single-threaded offline job. It is not part of the
// request-serving path and holds the only write access to the store while
// it runs. A failed run leaves the previous decomposition untouched.
//
// # Usage
//
//	runner := pipeline.NewRunner(st, logger)
//	result, err := runner.Run(ctx, pipeline.Options{
//	    Strategy: fas.StrategyGreedyOrdering,
//	})
package pipeline

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph/fas"
)

// Level assignment semantics selectable via [Options.Levels].
const (
	// LevelsLongestPath places each node one below its deepest parent,
	// guaranteeing level(dst) > level(src) for every tree edge.
	LevelsLongestPath = "longest-path"

	// LevelsStrictBFS places each node at its shortest-path distance from
	// the nearest root.
	LevelsStrictBFS = "strict-bfs"
)

// Options configures one decomposition run.
type Options struct {
	// Strategy selects the feedback arc set heuristic by name.
	Strategy string `json:"strategy,omitempty"`

	// MinCoverage gates the chronological strategy. Zero means the
	// strategy default.
	MinCoverage float64 `json:"min_coverage,omitempty"`

	// MaxRetries bounds solver residual repairs. Zero means the solver
	// default.
	MaxRetries int `json:"max_retries,omitempty"`

	// Levels selects level assignment semantics. Empty means longest-path.
	Levels string `json:"levels,omitempty"`

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger `json:"-"`
}

// ValidateAndSetDefaults checks enum fields and fills in defaults. The
// method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Strategy == "" {
		o.Strategy = fas.StrategyGreedyOrdering
	}
	if _, err := fas.ForName(o.Strategy); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidStrategy, err, "strategy %q", o.Strategy)
	}
	if o.MinCoverage < 0 || o.MinCoverage > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "min_coverage %v outside [0, 1]", o.MinCoverage)
	}
	if o.MaxRetries < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_retries cannot be negative")
	}
	if o.Levels == "" {
		o.Levels = LevelsLongestPath
	}
	if o.Levels != LevelsLongestPath && o.Levels != LevelsStrictBFS {
		return errors.New(errors.ErrCodeInvalidConfig, "levels %q, want %q or %q",
			o.Levels, LevelsLongestPath, LevelsStrictBFS)
	}
	return nil
}

// Result summarizes a completed decomposition run.
type Result struct {
	// Nodes and Edges are the loaded graph size.
	Nodes int
	Edges int

	// Components is the total SCC count; LargestComponent the size of the
	// biggest one.
	Components       int
	LargestComponent int

	// Strategy is the heuristic that produced the verified feedback set,
	// "none" when the graph was already acyclic. Retries counts residual
	// repairs.
	Strategy string
	Retries  int

	// TreeEdges and ExtraEdges are the persisted partition sizes.
	TreeEdges  int
	ExtraEdges int

	// MaxLevel is the deepest assigned topological level.
	MaxLevel int

	// LevelHistogram counts nodes per level.
	LevelHistogram map[int]int

	// Stats holds per-stage durations.
	Stats Stats
}

// Stats contains pipeline stage timings.
type Stats struct {
	LoadTime      time.Duration
	AnalyzeTime   time.Duration
	SolveTime     time.Duration
	PartitionTime time.Duration
	LevelTime     time.Duration
	PersistTime   time.Duration
}

// Total returns the summed stage durations.
func (s Stats) Total() time.Duration {
	return s.LoadTime + s.AnalyzeTime + s.SolveTime + s.PartitionTime + s.LevelTime + s.PersistTime
}
