// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/config"
	"github.com/relaycrm/pulse/internal/database"
	"github.com/relaycrm/pulse/internal/scheduler"
)

// Fixed schedules for the housekeeping jobs (with-seconds cron format).
// The recompute and backup schedules are configurable; these two are not
// worth an env var.
const (
	// 03:45 daily, after the default 03:00 recompute has finished
	trimHistorySchedule = "0 45 3 * * *"
	// 04:00 daily
	maintenanceSchedule = "0 0 4 * * *"
)

// RegisterJobs creates the cron scheduler, registers all background jobs
// and starts the scheduler.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)

	// ==========================================
	// Job 1: Nightly Score Recompute
	// ==========================================
	// Scores decay between signals, so stored values drift stale without a
	// periodic recompute across every organization.
	recompute := scheduler.NewRecomputeScoresJob(container.AccountRepo, container.ScoringService)
	recompute.SetLogger(log)
	if err := container.Scheduler.AddJob(cfg.RecomputeSchedule, recompute); err != nil {
		return fmt.Errorf("failed to register recompute job: %w", err)
	}

	// ==========================================
	// Job 2: Score History Trim
	// ==========================================
	trim := scheduler.NewTrimHistoryJob(container.HistoryRepo, cfg.HistoryRetentionDays)
	trim.SetLogger(log)
	if err := container.Scheduler.AddJob(trimHistorySchedule, trim); err != nil {
		return fmt.Errorf("failed to register history trim job: %w", err)
	}

	// ==========================================
	// Job 3: Database Maintenance
	// ==========================================
	databases := map[string]*database.DB{
		"signals": container.SignalsDB,
		"scores":  container.ScoresDB,
		"config":  container.ConfigDB,
		"history": container.HistoryDB,
	}
	maintenance := scheduler.NewMaintenanceJob(databases, cfg.DataDir)
	maintenance.SetLogger(log)
	if err := container.Scheduler.AddJob(maintenanceSchedule, maintenance); err != nil {
		return fmt.Errorf("failed to register maintenance job: %w", err)
	}

	jobCount := 3

	// ==========================================
	// Job 4: Cloud Backup (optional - only if configured)
	// ==========================================
	if container.S3BackupService != nil {
		backup := scheduler.NewBackupJob(container.S3BackupService, cfg.Backup.Keep)
		backup.SetLogger(log)
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, backup); err != nil {
			return fmt.Errorf("failed to register backup job: %w", err)
		}
		jobCount++
		log.Info().Str("schedule", cfg.Backup.Schedule).Msg("Cloud backup job registered")
	} else {
		log.Debug().Msg("S3 backup service not available - backup job not registered")
	}

	container.Scheduler.Start()

	log.Info().Int("jobs", jobCount).Msg("Jobs registered with scheduler")

	return nil
}
