package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-now/internal/api/http"
	"github.com/i474232898/weather-now/internal/config"
	"github.com/i474232898/weather-now/internal/logger"
	"github.com/i474232898/weather-now/internal/metrics"
	"github.com/i474232898/weather-now/internal/scheduler"
	"github.com/i474232898/weather-now/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("telemetry: shutdown failed", "err", err)
		}
	}()

	s := newStack(cfg, metrics.New(), log)

	if cfg.WarmCache {
		sched := scheduler.New(s.cache, cfg.Location, cfg.WarmAt, log)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// Canceled once shutdown returns, so lookups that outlive the drain
	// deadline are aborted instead of leaking.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	app := httpapi.NewApp(httpapi.Deps{
		Lookup:      s.resolver,
		Cache:       s.cache,
		Today:       s.resolver.Today,
		Metrics:     s.metrics,
		Log:         log,
		BaseContext: baseCtx,
	}, os.Stdout)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Addr())
		listenErr <- app.Listen(cfg.Addr())
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-listenErr:
		return fmt.Errorf("http server stopped: %w", err)
	}

	log.Info("shutting down", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = app.ShutdownWithContext(shutdownCtx)
	cancelBase()
	if err != nil {
		log.Error("error during shutdown", "err", err)
		return err
	}
	return nil
}
