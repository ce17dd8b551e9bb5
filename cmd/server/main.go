// Package main provides the entry point for the recruitment service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trialkit/recruitment-service/internal/catalogue"
	"github.com/trialkit/recruitment-service/internal/config"
	"github.com/trialkit/recruitment-service/internal/database"
	"github.com/trialkit/recruitment-service/internal/engine"
	"github.com/trialkit/recruitment-service/internal/enrollment"
	"github.com/trialkit/recruitment-service/internal/events"
	"github.com/trialkit/recruitment-service/internal/observability"
	"github.com/trialkit/recruitment-service/internal/repository"
	httpserver "github.com/trialkit/recruitment-service/internal/server/http"
	"github.com/trialkit/recruitment-service/internal/sweeper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("recruitment-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("recruitment_service")

	// Pick the recruitment store: PostgreSQL when configured, otherwise the
	// in-memory store for demo deployments.
	var store repository.RecruitmentStore
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			defer func() {
				if closeErr := migrator.Close(); closeErr != nil {
					logger.Error().Err(closeErr).Msg("failed to close migrator")
				}
			}()

			if err := migrator.Up(); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}

		store = repository.NewPgRecruitmentStore(db)
	} else {
		logger.Warn().Msg("database disabled, using in-memory store")
		store = repository.NewMemoryStore()
	}

	// Lifecycle event publisher.
	var publisher events.Publisher = events.NewNoopPublisher()
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.PublisherConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.EventsTopic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, metrics, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.EventsTopic).Msg("kafka event publisher enabled")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	// Study catalogue client, optional.
	var studyCatalogue engine.StudyCatalogue
	if cfg.Catalogue.BaseURL != "" {
		studyCatalogue = catalogue.NewClient(cfg.Catalogue, metrics, logger)
		logger.Info().Str("base_url", cfg.Catalogue.BaseURL).Msg("study catalogue client enabled")
	}

	eng := engine.New(engine.Options{
		Store:          store,
		Source:         enrollment.NewGeneratedSource(),
		Catalogue:      studyCatalogue,
		Publisher:      publisher,
		Metrics:        metrics,
		Logger:         logger,
		WindowDuration: cfg.Recruitment.WindowDuration,
	})

	// Channel to collect server errors.
	errCh := make(chan error, 3)

	// Enrollment signup listener, consuming waitlist conversions from Kafka.
	if cfg.Kafka.Enabled && cfg.Kafka.EnrollmentTopic != "" {
		listener := enrollment.NewListener(enrollment.ListenerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EnrollmentTopic,
			GroupID: cfg.Kafka.GroupID,
		}, eng, logger)
		defer func() {
			if closeErr := listener.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close enrollment listener")
			}
		}()
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("enrollment listener error: %w", err)
			}
		}()
	}

	// Optional window-expiry sweep.
	if cfg.Sweeper.Enabled {
		sw := sweeper.New(store, eng, cfg.Sweeper.Interval, logger)
		go func() {
			if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("sweeper error: %w", err)
			}
		}()
	}

	// Simulation command surface is mounted only when explicitly enabled.
	var sim engine.Simulator
	if cfg.Recruitment.SimulationEnabled {
		logger.Warn().Msg("simulation routes enabled")
		sim = eng
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, eng, sim, db, logger)

	// Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("recruitment-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down recruitment-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("recruitment-service shutdown complete")
	return nil
}
