// Package app provides the top-level application lifecycle management for the
// keeper. It wires together all dependencies (chain client, strategies,
// dispatcher, store, lock, metrics, and notifications) and runs the poll loop
// until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sentinelmarkets/sentinel-keeper/internal/config"
	"github.com/sentinelmarkets/sentinel-keeper/internal/notify"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the metrics
// endpoint and the poll scheduler, and blocks until the context is cancelled.
// On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting keeper",
		slog.String("backend", a.cfg.Chain.Backend),
		slog.String("chain", a.cfg.Chain.Name),
		slog.String("vault", a.cfg.Chain.Vault),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	_ = deps.Notifier.Notify(ctx, notify.EventKeeperStarted,
		"Keeper started",
		fmt.Sprintf("watching vault %s on %s as %s",
			a.cfg.Chain.Vault, deps.Client.ChainName(), deps.Client.KeeperAddress()),
	)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		g.Go(func() error {
			return deps.Metrics.Serve(ctx, a.cfg.Metrics.Addr)
		})
	}

	g.Go(func() error {
		return deps.Scheduler.Run(ctx)
	})

	err = g.Wait()

	// The run context is gone by now; give the stop notification its own
	// deadline so it can still go out.
	stopCtx, cancel := context.WithTimeout(context.Background(), notifyStopTimeout)
	_ = deps.Notifier.Notify(stopCtx, notify.EventKeeperStopped,
		"Keeper stopped",
		fmt.Sprintf("vault %s on %s", a.cfg.Chain.Vault, deps.Client.ChainName()),
	)
	cancel()

	return err
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down keeper")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
