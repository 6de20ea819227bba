// Package app wires the Live Price Cache, Venue Stream Clients, Event
// Registry, Subscription Manager, Safety Gates, Arbitrage Evaluator, and the
// Worker Lifecycle into one running process, and drives it until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbworker/livearb/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a cleanup closure built by Wire.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the optional HTTP status surface, runs
// the Worker Lifecycle until ctx is cancelled, and returns once the
// lifecycle's shutdown sequence has completed.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application", slog.String("log_level", a.cfg.LogLevel))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup

	if deps.Server != nil {
		go func() {
			if err := deps.Server.Start(); err != nil {
				a.logger.Error("status server exited", slog.String("err", err.Error()))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = deps.Server.Shutdown(shutdownCtx)
		}()
	}

	return deps.Worker.Run(ctx)
}

// Close tears down all resources Wire registered. Safe to call multiple
// times; subsequent calls are no-ops.
func (a *App) Close() {
	if a.cleanup == nil {
		return
	}
	a.logger.Info("shutting down application")
	a.cleanup()
	a.cleanup = nil
}
