// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/clients/kafka"
	redisclient "github.com/relaycrm/pulse/internal/clients/redis"
	"github.com/relaycrm/pulse/internal/config"
	"github.com/relaycrm/pulse/internal/database"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/modules/scores"
	"github.com/relaycrm/pulse/internal/modules/scoring"
	"github.com/relaycrm/pulse/internal/modules/signals"
	"github.com/relaycrm/pulse/internal/observability"
	"github.com/relaycrm/pulse/internal/reliability"
	"github.com/relaycrm/pulse/internal/workers"
)

// clientConnectTimeout bounds the startup handshake with optional external
// services (Redis ping, S3 credential resolution)
const clientConnectTimeout = 5 * time.Second

// InitializeServices creates all services and stores them in the container.
// This is the SINGLE SOURCE OF TRUTH for all service creation.
// Services are created in dependency order to ensure all dependencies exist.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Initialize Cross-Cutting Services
	// ==========================================

	container.EventBus = events.NewBus(log)
	container.Metrics = observability.NewMetrics()
	container.Verifier = auth.NewVerifier(cfg.JWTSecret, cfg.DevMode, cfg.DefaultOrgID, log)

	// ==========================================
	// STEP 2: Initialize Scoring Configuration Manager
	// ==========================================

	defaults, err := scoring.LoadDefaults(cfg.DefaultConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load default scoring config: %w", err)
	}
	container.ScoringManager = scoring.NewManager(container.ConfigRepo, defaults, container.EventBus, log)

	// ==========================================
	// STEP 3: Initialize Redis Leaderboard (optional)
	// ==========================================

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), clientConnectTimeout)
		client, err := redisclient.Connect(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).
				Msg("Failed to connect to Redis - leaderboard cache disabled")
		} else {
			container.RedisClient = client
			container.Leaderboard = redisclient.NewLeaderboard(client, log)
			log.Info().Str("addr", cfg.RedisAddr).Msg("Redis leaderboard cache initialized")
		}
	} else {
		log.Debug().Msg("Redis address not configured - leaderboard cache disabled")
	}

	// ==========================================
	// STEP 4: Initialize Scoring Pipeline
	// ==========================================

	container.WorkerPool = workers.NewWorkerPool(cfg.WorkerCount)

	// The leaderboard parameters are interfaces; a typed nil pointer must
	// never reach them, so the nil branch passes a true nil
	if container.Leaderboard != nil {
		container.ComputeService = scores.NewComputeService(
			container.SignalRepo,
			container.ScoreRepo,
			container.HistoryRepo,
			container.ScoringManager,
			container.Leaderboard,
			container.EventBus,
			container.Metrics,
			cfg.TrendBand,
			log,
		)
	} else {
		container.ComputeService = scores.NewComputeService(
			container.SignalRepo,
			container.ScoreRepo,
			container.HistoryRepo,
			container.ScoringManager,
			nil,
			container.EventBus,
			container.Metrics,
			cfg.TrendBand,
			log,
		)
	}

	container.SignalService = signals.NewService(
		container.SignalRepo,
		container.AccountRepo,
		container.EventBus,
		container.Metrics,
		log,
	)

	var board scoring.Leaderboard
	if container.Leaderboard != nil {
		board = container.Leaderboard
	}
	container.ScoringService = scoring.NewService(
		container.ScoringManager,
		container.AccountRepo,
		container.SignalRepo,
		container.ComputeService,
		container.ScoreRepo,
		container.WorkerPool,
		board,
		container.EventBus,
		container.Metrics,
		log,
	)

	// ==========================================
	// STEP 5: Initialize Kafka Bridge (optional)
	// ==========================================

	if len(cfg.KafkaBrokers) > 0 {
		writer, err := kafka.NewWriter(cfg.KafkaBrokers, log)
		if err != nil {
			log.Warn().Err(err).Strs("brokers", cfg.KafkaBrokers).
				Msg("Failed to initialize Kafka writer - event publishing disabled")
		} else {
			container.KafkaBridge = kafka.NewBridge(container.EventBus, writer, log)
			container.KafkaBridge.Start()
			log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("Kafka event bridge initialized")
		}
	} else {
		log.Debug().Msg("Kafka brokers not configured - event publishing disabled")
	}

	// ==========================================
	// STEP 6: Initialize Backup Services (optional)
	// ==========================================

	databases := map[string]*database.DB{
		"signals": container.SignalsDB,
		"scores":  container.ScoresDB,
		"config":  container.ConfigDB,
		"history": container.HistoryDB,
	}
	container.BackupService = reliability.NewBackupService(databases, log)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), clientConnectTimeout)
		store, err := reliability.NewS3Client(
			ctx,
			cfg.Backup.Endpoint,
			cfg.Backup.Region,
			cfg.Backup.AccessKeyID,
			cfg.Backup.SecretAccessKey,
			cfg.Backup.Bucket,
			log,
		)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client - cloud backup disabled")
		} else {
			container.ObjectStore = store
			container.S3BackupService = reliability.NewS3BackupService(
				store,
				container.BackupService,
				cfg.DataDir,
				container.EventBus,
				log,
			)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backup service initialized")
		}
	} else {
		log.Debug().Msg("Backups not enabled - cloud backup disabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}
