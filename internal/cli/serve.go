package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/citetree/citetree/internal/config"
	"github.com/citetree/citetree/internal/executor"
	"github.com/citetree/citetree/internal/fragment"
	"github.com/citetree/citetree/internal/server"
	"github.com/citetree/citetree/internal/store"
	"github.com/citetree/citetree/pkg/cache"
	"github.com/citetree/citetree/pkg/spatial"
)

// serveCommand creates the serve command for the fragment query server.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		cfgPath string
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve viewport fragments over HTTP",
		Long: `Serve viewport fragments over HTTP.

The serve command loads the decomposed citation graph, builds the spatial
index over node coordinates, and answers viewport, extra-edge, and overview
queries through a bounded worker pool with per-endpoint timeouts. Fragment
responses are optionally cached in Redis or on disk.

The server shuts down gracefully on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), cfgPath, addr)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfgPath, addr string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Serve.Addr = addr
	}

	st, err := store.Open(cfg.Store.Path, cfg.Store.NodeTable)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	defer st.Close()

	prog := newProgress(c.Logger)
	g, err := st.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	index := spatial.New(g)
	prog.done(fmt.Sprintf("Indexed %d nodes, %d edges", g.NodeCount(), g.EdgeCount()))

	counters := &executor.Counters{}
	exec := executor.New(executor.Options{
		Workers:   cfg.Executor.Workers,
		QueueSize: cfg.Executor.QueueSize,
		Timeouts: map[string]time.Duration{
			fragment.ClassViewport:   cfg.Executor.Timeouts.Viewport.Std(),
			fragment.ClassExtraEdges: cfg.Executor.Timeouts.ExtraEdges.Std(),
			fragment.ClassOverview:   cfg.Executor.Timeouts.Overview.Std(),
		},
		Counters: counters,
	})
	defer exec.Close()

	service := fragment.NewService(st, index, exec, fragment.Options{
		Margin:        cfg.Serve.Margin,
		DefaultLimit:  cfg.Serve.DefaultLimit,
		MaxLimit:      cfg.Serve.MaxLimit,
		MaxExtraEdges: cfg.Serve.MaxExtraEdges,
	}, c.Logger)

	fragmentCache, err := newFragmentCache(ctx, c, cfg.Serve)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer fragmentCache.Close()

	srv := server.New(service, exec, st, counters, server.Options{
		Cache:    fragmentCache,
		CacheTTL: cfg.Serve.CacheTTL.Std(),
		Logger:   c.Logger,
	})
	return srv.ListenAndServe(ctx, cfg.Serve.Addr)
}

// newFragmentCache picks the response cache backend: Redis when an address
// is configured, the file cache when a directory is, otherwise none.
func newFragmentCache(ctx context.Context, c *CLI, cfg config.Serve) (cache.Cache, error) {
	switch {
	case cfg.RedisAddr != "":
		c.Logger.Info("using redis fragment cache", "addr", cfg.RedisAddr)
		return cache.NewRedisCache(ctx, cfg.RedisAddr)
	case cfg.CacheDir != "":
		c.Logger.Info("using file fragment cache", "dir", cfg.CacheDir)
		return cache.NewFileCache(cfg.CacheDir)
	}
	return cache.NewNullCache(), nil
}
