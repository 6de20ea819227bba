// Command arbworker is the process entry point: it loads configuration,
// wires dependencies, and runs the Worker Lifecycle until signalled to
// stop, enforcing a shutdown-grace watchdog that force-exits if the
// lifecycle's own shutdown sequence overruns it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbworker/livearb/internal/app"
	"github.com/arbworker/livearb/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbworker starting", slog.String("config", *configPath))

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Error("arbworker exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		grace := cfg.Lifecycle.ShutdownGrace.Duration
		select {
		case err := <-done:
			if err != nil && err != context.Canceled {
				logger.Error("arbworker exited with error during shutdown", slog.String("error", err.Error()))
				os.Exit(1)
			}
		case <-time.After(grace):
			logger.Error("shutdown grace period exceeded, forcing exit", slog.Duration("grace", grace))
			os.Exit(1)
		}
	}

	logger.Info("arbworker stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
