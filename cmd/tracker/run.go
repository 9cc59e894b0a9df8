package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-tracker-service/internal/ledger"
	"github.com/helixir/citation-tracker-service/internal/observability"
	httpserver "github.com/helixir/citation-tracker-service/internal/server/http"
)

func newRunCmd(c *cli) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run monitoring cycles every tracker.check_interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTracker(cmd.Context(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func (c *cli) runTracker(parent context.Context, once bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := c.cfg
	logger := c.logger.With().Str("component", "tracker").Logger()
	logger.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Str("ledger_driver", cfg.Ledger.Driver).
		Bool("once", once).
		Msg("citation tracker starting")

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	a, err := buildApp(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to release resources")
		}
	}()

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	if cfg.Server.Enabled && !once {
		statusStore, err := ledger.Open(ctx, cfg.Ledger, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("open ledger for status API: %w", err)
		}
		defer statusStore.Close()

		metricsPath := ""
		if cfg.Metrics.Enabled {
			metricsPath = cfg.Metrics.Path
		}
		srv := httpserver.NewServer(httpserver.Config{
			Address:         cfg.Server.HTTPAddress(),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			MetricsPath:     metricsPath,
		}, statusStore, a.orchestrator, logger)

		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP server shutdown error")
			}
		}()
	}

	if once {
		report, err := a.orchestrator.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle %s: %w", report.CycleID, err)
		}
		return nil
	}

	runErr := a.orchestrator.Run(ctx, cfg.Tracker.CheckInterval)

	select {
	case srvErr := <-errCh:
		return srvErr
	default:
	}
	if runErr != nil {
		return fmt.Errorf("monitoring loop stopped: %w", runErr)
	}
	logger.Info().Msg("citation tracker stopped")
	return nil
}
