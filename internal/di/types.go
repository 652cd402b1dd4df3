/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to services.
 */
package di

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/clients/kafka"
	redisclient "github.com/relaycrm/pulse/internal/clients/redis"
	"github.com/relaycrm/pulse/internal/database"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/modules/accounts"
	"github.com/relaycrm/pulse/internal/modules/scores"
	"github.com/relaycrm/pulse/internal/modules/scoring"
	"github.com/relaycrm/pulse/internal/modules/signals"
	"github.com/relaycrm/pulse/internal/observability"
	"github.com/relaycrm/pulse/internal/reliability"
	"github.com/relaycrm/pulse/internal/scheduler"
	"github.com/relaycrm/pulse/internal/workers"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and handed to the HTTP server.
 *
 * Architecture:
 * - Databases: 4-database architecture (signals, scores, config, history)
 * - Clients: Optional external integrations (Redis leaderboard, Kafka, S3)
 * - Repositories: Data access layer (signals, accounts, scores, configs)
 * - Services: Business logic layer (ingestion, scoring, recompute, backups)
 * - Scheduler: Cron-driven background jobs
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases (4-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	SignalsDB *database.DB // Behavioral signal stream (append-heavy)
	ScoresDB  *database.DB // Live score snapshots, one row per account
	ConfigDB  *database.DB // Scoring configurations and the account directory
	HistoryDB *database.DB // Append-only score history for trends

	// Clients - optional external integrations (nil when not configured)
	RedisClient *goredis.Client          // Raw Redis connection, closed on shutdown
	Leaderboard *redisclient.Leaderboard // Per-org score rankings
	KafkaBridge *kafka.Bridge            // Bus-to-Kafka event forwarding
	ObjectStore *reliability.S3Client    // S3-compatible backup storage

	// Repositories - data access layer
	SignalRepo  *signals.Repository
	AccountRepo *accounts.Repository
	ScoreRepo   *scores.Repository
	HistoryRepo *scores.HistoryRepository
	ConfigRepo  *scoring.Repository

	// Services - business logic layer
	EventBus        *events.Bus                  // Event bus for pub/sub
	Metrics         *observability.Metrics       // Prometheus instrumentation
	Verifier        *auth.Verifier               // Request org resolution (JWT / dev headers)
	ScoringManager  *scoring.Manager             // Per-org scoring config management
	SignalService   *signals.Service             // Signal ingestion
	ComputeService  *scores.ComputeService       // Per-account score computation
	ScoringService  *scoring.Service             // Bulk recompute, preview, reset, insights
	WorkerPool      *workers.WorkerPool          // Bounded concurrency for recompute runs
	BackupService   *reliability.BackupService   // Local database snapshots (VACUUM INTO)
	S3BackupService *reliability.S3BackupService // Cloud backup upload and rotation (optional)

	// Scheduler - cron-driven background jobs
	Scheduler *scheduler.Scheduler
}

// Close releases everything the container owns. Safe to call on a partially
// initialized container; nil members are skipped.
func (c *Container) Close() {
	if c == nil {
		return
	}

	if c.KafkaBridge != nil {
		_ = c.KafkaBridge.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}

	for _, db := range []*database.DB{c.SignalsDB, c.ScoresDB, c.ConfigDB, c.HistoryDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}
