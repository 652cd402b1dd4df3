// Package main is the entry point for the Pulse product-qualified-account
// scoring engine. Pulse ingests behavioral signals from product telemetry,
// converts them into account fit scores using weighted rules with time decay,
// and serves scores, trends and scoring insights over a REST API.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaycrm/pulse/internal/config"
	"github.com/relaycrm/pulse/internal/di"
	"github.com/relaycrm/pulse/internal/server"
	"github.com/relaycrm/pulse/pkg/logger"
)

// main orchestrates the system startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes the structured logger
// 3. Wires all dependencies via the DI container (databases, repositories,
//    services, scheduled jobs)
// 4. Starts the HTTP server for API endpoints
// 5. Waits for a shutdown signal and performs graceful shutdown
//
// The application uses a 4-database architecture:
// - signals.db: Behavioral signal stream (append-heavy audit trail)
// - scores.db: Live score snapshots, one row per account
// - config.db: Scoring configurations and the account directory
// - history.db: Append-only score history for trend analysis
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.PrettyLogs,
		Service: "pulse",
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting Pulse")

	// Wire all dependencies using DI container
	// This initializes the four databases, repositories, services and the
	// job scheduler. Optional integrations (Redis leaderboard cache, Kafka
	// event publishing, S3 backups) are attached when configured and
	// skipped with a warning when not.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Close clients and databases on exit. Databases must be closed so WAL
	// checkpoints are written and integrity is maintained; defer ensures
	// cleanup even on panic.
	defer container.Close()

	// Initialize HTTP server
	// The HTTP server provides REST API endpoints for:
	// - Signal ingestion (single and batch)
	// - Account and score queries (current scores, trends, history)
	// - Scoring configuration management (versioned rule sets, preview)
	// - Live score updates over websocket
	// - System operations (health checks, database stats, backups)
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		SignalsDB: container.SignalsDB,
		ScoresDB:  container.ScoresDB,
		ConfigDB:  container.ConfigDB,
		HistoryDB: container.HistoryDB,
		Config:    cfg,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	// Start server in goroutine so the main thread can wait for signals.
	// ErrServerClosed is the normal result of Shutdown, not a failure.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	// The application blocks here until it receives SIGINT (Ctrl+C) or
	// SIGTERM (kill command).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no recompute or backup job starts while
	// the databases are being closed. Stop waits for running jobs.
	if container.Scheduler != nil {
		container.Scheduler.Stop()
	}

	// Graceful shutdown
	// The HTTP server is given up to 10 seconds to finish in-flight
	// requests before being forced to close.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
