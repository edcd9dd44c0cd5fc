// Package cli implements the quotekeeper command line: the HTTP server and
// one-shot commands over the same store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

// BuildInfo is injected into main with ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// globals holds the persistent flags.
type globals struct {
	profile   string
	configDir string
	verbose   bool
	build     BuildInfo
}

// NewRootCommand builds the quotekeeper command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	g := &globals{build: build}

	root := &cobra.Command{
		Use:   "quotekeeper",
		Short: "Keep, filter and share a collection of quotes",
		Long: `quotekeeper keeps an ordered collection of quotes, each with a category and
an author. Run "quotekeeper serve" for the HTTP API, or use the commands below
against the same storage.`,
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.profile, "profile", defaultProfile(), "configuration profile, read from <config-dir>/<profile>.yaml")
	flags.StringVar(&g.configDir, "config-dir", config.DefaultConfigDir, "directory holding base.yaml and the profile files")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	root.AddCommand(
		newServeCommand(g),
		newAddCommand(g),
		newListCommand(g),
		newRandomCommand(g),
		newLastCommand(g),
		newCategoriesCommand(g),
		newFilterCommand(g),
		newExportCommand(g),
		newImportCommand(g),
		newSyncCommand(g),
		newRestoreDefaultsCommand(g),
	)

	return root
}

func defaultProfile() string {
	if p := os.Getenv("APP_ENVIRONMENT"); p != "" {
		return p
	}

	return "local"
}

func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(g.configDir, g.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// newLogger builds the process logger. One-shot commands are quiet: below
// warn is only logged with --verbose.
func (g *globals) newLogger(cfg *config.Config, w io.Writer, quiet bool) *slog.Logger {
	level := cfg.Log.Level
	if quiet && !g.verbose {
		switch level {
		case "trace", "debug", "info":
			level = "warn"
		}
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: g.build.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}, w)
	logging.SetDefault(logger)

	return logger
}

// commandFunc is the body of a one-shot command.
type commandFunc func(ctx context.Context, rt *runtime, out *renderer) error

// run loads configuration, opens the runtime, and hands it to fn. Logs go
// to stderr so that stdout carries only the command's output.
func (g *globals) run(cmd *cobra.Command, fn commandFunc) (err error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	logger := g.newLogger(cfg, cmd.ErrOrStderr(), true)
	ctx := logging.WithContext(cmd.Context(), logger)

	rt, err := openRuntime(ctx, cfg, logger, sessionDurable)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, rt.Close())
	}()

	out := cmd.OutOrStdout()

	return fn(ctx, rt, newRenderer(out, isTerminal(out)))
}
