// Package config loads and validates the TOML configuration shared by the
// decompose and serve commands.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/citetree/citetree/pkg/errors"
	"github.com/citetree/citetree/pkg/graph/fas"
)

// Level assignment semantics recognized in [Decompose].
const (
	LevelsLongestPath = "longest-path"
	LevelsStrictBFS   = "strict-bfs"
)

// Duration wraps time.Duration for TOML decoding from strings like "100ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full application configuration.
type Config struct {
	Store     Store     `toml:"store"`
	Decompose Decompose `toml:"decompose"`
	Executor  Executor  `toml:"executor"`
	Serve     Serve     `toml:"serve"`
}

// Store configures the SQLite backing store.
type Store struct {
	// Path is the SQLite database file.
	Path string `toml:"path"`

	// NodeTable is the node table name, injected at store construction.
	// Upstream embedding pipelines publish under per-dataset table names.
	NodeTable string `toml:"node_table"`
}

// Decompose configures the batch decomposition pipeline.
type Decompose struct {
	// Strategy selects the feedback arc set heuristic.
	Strategy string `toml:"strategy"`

	// MinCoverage gates the chronological strategy.
	MinCoverage float64 `toml:"min_coverage"`

	// MaxRetries bounds solver residual repairs.
	MaxRetries int `toml:"max_retries"`

	// Levels selects level semantics: longest-path or strict-bfs.
	Levels string `toml:"levels"`
}

// Executor configures the bounded query worker pool.
type Executor struct {
	// Workers is the goroutine pool size.
	Workers int `toml:"workers"`

	// QueueSize is the buffered submission queue length.
	QueueSize int `toml:"queue_size"`

	// Timeouts holds the per-endpoint-class deadline.
	Timeouts Timeouts `toml:"timeouts"`
}

// Timeouts are the per-endpoint-class query deadlines.
type Timeouts struct {
	Viewport   Duration `toml:"viewport"`
	ExtraEdges Duration `toml:"extra_edges"`
	Overview   Duration `toml:"overview"`
}

// Serve configures the HTTP serving surface.
type Serve struct {
	// Addr is the HTTP listen address.
	Addr string `toml:"addr"`

	// Margin is the fractional viewport expansion applied before spatial
	// lookup.
	Margin float64 `toml:"margin"`

	// DefaultLimit is the page size when a request omits one.
	DefaultLimit int `toml:"default_limit"`

	// MaxLimit caps the page size a request may ask for.
	MaxLimit int `toml:"max_limit"`

	// MaxExtraEdges caps one extra-edge enrichment response.
	MaxExtraEdges int `toml:"max_extra_edges"`

	// RedisAddr enables the shared fragment cache when non-empty.
	RedisAddr string `toml:"redis_addr"`

	// CacheDir enables the file fragment cache when non-empty and no
	// Redis address is set.
	CacheDir string `toml:"cache_dir"`

	// CacheTTL is the fragment cache entry lifetime.
	CacheTTL Duration `toml:"cache_ttl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store: Store{
			Path:      "citetree.db",
			NodeTable: "nodes",
		},
		Decompose: Decompose{
			Strategy:    fas.StrategyGreedyOrdering,
			MinCoverage: fas.DefaultMinCoverage,
			MaxRetries:  fas.DefaultMaxRetries,
			Levels:      LevelsLongestPath,
		},
		Executor: Executor{
			Workers:   8,
			QueueSize: 64,
			Timeouts: Timeouts{
				Viewport:   Duration(100 * time.Millisecond),
				ExtraEdges: Duration(250 * time.Millisecond),
				Overview:   Duration(500 * time.Millisecond),
			},
		},
		Serve: Serve{
			Addr:          ":8080",
			Margin:        0.1,
			DefaultLimit:  1000,
			MaxLimit:      5000,
			MaxExtraEdges: 2000,
			CacheTTL:      Duration(5 * time.Minute),
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks option ranges and enum values.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "store.path cannot be empty")
	}
	if c.Store.NodeTable == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "store.node_table cannot be empty")
	}
	if _, err := fas.ForName(c.Decompose.Strategy); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidStrategy, err, "decompose.strategy %q", c.Decompose.Strategy)
	}
	if c.Decompose.MinCoverage < 0 || c.Decompose.MinCoverage > 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "decompose.min_coverage %v outside [0, 1]", c.Decompose.MinCoverage)
	}
	if c.Decompose.MaxRetries < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "decompose.max_retries must be at least 1")
	}
	if c.Decompose.Levels != LevelsLongestPath && c.Decompose.Levels != LevelsStrictBFS {
		return errors.New(errors.ErrCodeInvalidConfig, "decompose.levels %q, want %q or %q",
			c.Decompose.Levels, LevelsLongestPath, LevelsStrictBFS)
	}
	if c.Executor.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "executor.workers must be at least 1")
	}
	if c.Executor.QueueSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "executor.queue_size cannot be negative")
	}
	for class, timeout := range map[string]Duration{
		"viewport":    c.Executor.Timeouts.Viewport,
		"extra_edges": c.Executor.Timeouts.ExtraEdges,
		"overview":    c.Executor.Timeouts.Overview,
	} {
		if timeout <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "executor.timeouts.%s must be positive", class)
		}
	}
	if c.Serve.Margin < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "serve.margin cannot be negative")
	}
	if c.Serve.DefaultLimit < 1 || c.Serve.MaxLimit < c.Serve.DefaultLimit {
		return errors.New(errors.ErrCodeInvalidConfig, "serve limits: default %d, max %d",
			c.Serve.DefaultLimit, c.Serve.MaxLimit)
	}
	if c.Serve.MaxExtraEdges < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "serve.max_extra_edges must be at least 1")
	}
	return nil
}
