package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/citetree/citetree/internal/config"
	"github.com/citetree/citetree/internal/executor"
	"github.com/citetree/citetree/internal/fragment"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/render"
	"github.com/citetree/citetree/pkg/spatial"
)

// exportTimeout bounds the store reads behind one export. Exports run
// offline, so the interactive serving deadlines do not apply.
const exportTimeout = 30 * time.Second

// exportCommand creates the export command for rendering a fragment.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		cfgPath  string
		boxSpec  string
		output   string
		limit    int
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a viewport fragment as Graphviz DOT or SVG",
		Long: `Render a viewport fragment as Graphviz DOT or SVG.

The export command runs one viewport query against the decomposed store and
writes the fragment as a Graphviz document: tree edges solid, extra and
broken edges dashed. The output format follows the file extension (.svg
renders through Graphviz, anything else writes DOT text).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), cfgPath, boxSpec, output, limit, detailed)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVarP(&boxSpec, "box", "b", "", "viewport box as minX,minY,maxX,maxY (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "fragment.dot", "output file (.dot or .svg)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default from config)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include cluster, degree, and level in node labels")
	_ = cmd.MarkFlagRequired("box")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, cfgPath, boxSpec, output string, limit int, detailed bool) error {
	box, err := parseBox(boxSpec)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Path, cfg.Store.NodeTable)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	g, err := st.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	exec := executor.New(executor.Options{
		Workers:        1,
		DefaultTimeout: exportTimeout,
		Counters:       &executor.Counters{},
	})
	defer exec.Close()
	service := fragment.NewService(st, spatial.New(g), exec, fragment.Options{
		Margin:        cfg.Serve.Margin,
		DefaultLimit:  cfg.Serve.DefaultLimit,
		MaxLimit:      cfg.Serve.MaxLimit,
		MaxExtraEdges: cfg.Serve.MaxExtraEdges,
	}, c.Logger)

	frag, err := service.Viewport(ctx, fragment.ViewportRequest{Box: box, Limit: limit})
	if err != nil {
		return fmt.Errorf("viewport query: %w", err)
	}
	ids := make([]string, len(frag.Nodes))
	for i, n := range frag.Nodes {
		ids[i] = n.ID
	}
	var extra []store.ExtraEdge
	if len(ids) > 0 {
		resp, err := service.ExtraEdges(ctx, "", ids, 0)
		if err != nil {
			return fmt.Errorf("extra edges query: %w", err)
		}
		extra = resp.ExtraEdges
	}

	dot := render.ToDOT(frag, extra, render.Options{Detailed: detailed})
	data := []byte(dot)
	if strings.HasSuffix(output, ".svg") {
		spin := startSpinner(ctx, "Rendering SVG...")
		data, err = render.RenderSVG(ctx, dot)
		spin.stop()
		if err != nil {
			return fmt.Errorf("render SVG: %w", err)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	printSuccess("Export complete")
	printFile(output)
	printDetail("%d nodes · %d tree · %d broken · %d extra",
		len(frag.Nodes), len(frag.TreeEdges), len(frag.BrokenEdges), len(extra))
	return nil
}

// parseBox parses "minX,minY,maxX,maxY" into a spatial box.
func parseBox(spec string) (spatial.Box, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return spatial.Box{}, fmt.Errorf("box %q: want minX,minY,maxX,maxY", spec)
	}
	coords := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return spatial.Box{}, fmt.Errorf("box coordinate %q: %w", part, err)
		}
		coords[i] = v
	}
	box := spatial.Box{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}
	if !box.Valid() {
		return spatial.Box{}, fmt.Errorf("box %q: min corner must not exceed max corner", spec)
	}
	return box, nil
}
