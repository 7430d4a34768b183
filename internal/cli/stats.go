package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/citetree/citetree/internal/config"
	"github.com/citetree/citetree/internal/store"
)

// statsCommand creates the stats command for inspecting the store.
func (c *CLI) statsCommand() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store and decomposition statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStats(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "TOML config file")

	return cmd
}

func (c *CLI) runStats(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Path, cfg.Store.NodeTable)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Println(StyleTitle.Render(cfg.Store.Path))
	printKeyValue("nodes", fmt.Sprintf("%d", stats.Nodes))
	printKeyValue("edges", fmt.Sprintf("%d", stats.Edges))
	printKeyValue("tree edges", fmt.Sprintf("%d", stats.TreeEdges))
	printKeyValue("extra edges", fmt.Sprintf("%d", stats.ExtraEdges))

	if len(stats.Levels) == 0 {
		printNewline()
		printInfo("No decomposition yet; run '%s decompose' first", appName)
		return nil
	}

	printNewline()
	fmt.Println(StyleTitle.Render("Nodes per level"))
	for _, level := range slices.Sorted(maps.Keys(stats.Levels)) {
		printKeyValue(fmt.Sprintf("level %d", level), fmt.Sprintf("%d", stats.Levels[level]))
	}
	return nil
}
