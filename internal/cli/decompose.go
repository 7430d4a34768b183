package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/citetree/citetree/internal/config"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/pipeline"
)

// decomposeCommand creates the decompose command for running the batch
// decomposition job.
func (c *CLI) decomposeCommand() *cobra.Command {
	var cfgPath string
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "decompose",
		Short: "Decompose the citation graph into tree and extra edges",
		Long: `Decompose the citation graph into tree and extra edges.

The decompose command loads the full citation graph from the store, finds
its strongly connected components, breaks cycles in the largest one with a
feedback arc set heuristic, assigns topological levels over the resulting
tree edges, and persists the decomposition. Any previous decomposition in
the store is replaced wholesale.

Flags override the corresponding values from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDecompose(cmd.Context(), cfgPath, opts)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "feedback strategy: greedy-ordering (default), chronological, cycle-majority")
	cmd.Flags().Float64Var(&opts.MinCoverage, "min-coverage", 0, "timestamp coverage gate for the chronological strategy")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", 0, "bound on solver residual repairs")
	cmd.Flags().StringVar(&opts.Levels, "levels", "", "level semantics: longest-path (default), strict-bfs")

	return cmd
}

// runDecompose merges config with flag overrides and executes the pipeline.
func (c *CLI) runDecompose(ctx context.Context, cfgPath string, opts pipeline.Options) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if opts.Strategy == "" {
		opts.Strategy = cfg.Decompose.Strategy
	}
	if opts.MinCoverage == 0 {
		opts.MinCoverage = cfg.Decompose.MinCoverage
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = cfg.Decompose.MaxRetries
	}
	if opts.Levels == "" {
		opts.Levels = cfg.Decompose.Levels
	}
	opts.Logger = c.Logger

	st, err := store.Open(cfg.Store.Path, cfg.Store.NodeTable)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	spin := startSpinner(ctx, "Decomposing citation graph...")

	result, err := pipeline.NewRunner(st, c.Logger).Run(ctx, opts)
	if err != nil {
		spin.fail("Decomposition failed")
		return err
	}
	spin.stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	printSuccess("Decomposition complete")
	printStats(result.Nodes, result.Edges)
	printDetail("%d tree · %d extra · strategy %s · %d retries",
		result.TreeEdges, result.ExtraEdges, result.Strategy, result.Retries)
	printDetail("max level %d (%s)", result.MaxLevel, opts.Levels)
	printFile(cfg.Store.Path)
	printNewline()
	printNextStep("Serve", appName+" serve")

	return nil
}
