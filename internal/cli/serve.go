package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/jsamuelsen/quote-keeper/internal/adapters/http"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
)

// metricsNamespace prefixes the collection gauges.
const metricsNamespace = "quotekeeper"

func newServeCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the quote API over HTTP",
		Long: `Serve the quote API under /api/v1 and the operational probes under /-/.
When sync is enabled the remote source is merged on an interval in the
background. SIGINT or SIGTERM drains in-flight requests and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			logger := g.newLogger(cfg, os.Stdout, false)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return g.serve(logging.WithContext(ctx, logger), cfg, logger)
		},
	}
}

func (g *globals) serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	logger.Info("starting quotekeeper",
		slog.String("version", g.build.Version),
		slog.String("commit", g.build.Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage", cfg.Storage.Driver),
	)

	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := tel.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	rt, err := openRuntime(ctx, cfg, logger, sessionInMemory)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, rt.Close())
	}()

	if err := telemetry.RegisterCollection(prometheus.DefaultRegisterer, metricsNamespace, rt.store); err != nil {
		return fmt.Errorf("registering collection metrics: %w", err)
	}

	server := httpapi.New(&cfg.Server, logger)
	httpapi.SetupRouter(server.Engine(), httpapi.RouterConfig{
		Logger:      logger,
		ServiceName: cfg.App.Name,
		Health: handlers.NewHealthHandler(rt.health,
			handlers.NewBuildInfo(g.build.Version, g.build.Commit, g.build.BuildTime)),
		Quotes:  handlers.NewQuoteHandler(rt.store, rt.syncer, rt.sink),
		Timeout: cfg.Server.RequestTimeout,
	})

	group, gctx := errgroup.WithContext(ctx)

	if cfg.Sync.Enabled && rt.syncer != nil {
		group.Go(func() error {
			return rt.syncer.Run(gctx)
		})
	}

	serverErr := server.Start()

	group.Go(func() error {
		return waitForShutdown(gctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
	})

	return group.Wait()
}

// waitForShutdown blocks until ctx is done or the server fails, then drains
// in-flight requests for at most timeout.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *httpapi.Server,
	serverErr <-chan error,
	timeout time.Duration,
) error {
	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	case <-ctx.Done():
		logger.Info("initiating graceful shutdown", slog.Duration("timeout", timeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
