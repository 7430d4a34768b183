// Package cli implements the citetree command-line interface.
//
// This package provides commands for running the batch spanning
// decomposition, serving viewport fragments over HTTP, inspecting store
// statistics, exporting fragments as DOT/SVG, and monitoring live queries.
// The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - decompose: Run the SCC/feedback-arc-set/level decomposition batch job
//   - serve: Serve viewport fragments from a decomposed store
//   - stats: Show store and decomposition statistics
//   - export: Render a viewport fragment as Graphviz DOT or SVG
//   - top: Live monitor of active queries on a running server
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/citetree/citetree/pkg/buildinfo"
)

// appName is the application name used for display and completion.
const appName = "citetree"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Citetree serves spanning decompositions of citation graphs",
		Long:         `Citetree decomposes a citation graph into an acyclic spanning tree plus cycle-closing extra edges, and serves paginated viewport fragments of the tree over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.decomposeCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.topCommand())
	root.AddCommand(c.completionCommand())

	return root
}
