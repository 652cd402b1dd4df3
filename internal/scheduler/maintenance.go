package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/relaycrm/pulse/internal/database"
)

// MaintenanceJob performs nightly database upkeep: integrity checks, WAL
// checkpoints to prevent bloat, size reporting, and a disk space check.
type MaintenanceJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
	dataDir   string
}

// NewMaintenanceJob creates a new MaintenanceJob over the given databases,
// keyed by logical name.
func NewMaintenanceJob(databases map[string]*database.DB, dataDir string) *MaintenanceJob {
	return &MaintenanceJob{
		log:       zerolog.Nop(),
		databases: databases,
		dataDir:   dataDir,
	}
}

// SetLogger sets the logger for the job
func (j *MaintenanceJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance pass. Database corruption fails the job;
// checkpoint problems are logged and skipped.
func (j *MaintenanceJob) Run() error {
	for name, db := range j.databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := j.checkIntegrity(name, db); err != nil {
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("WAL checkpoint failed")
			continue
		}

		if stats, err := db.GetStats(); err == nil {
			j.log.Info().
				Str("database", name).
				Int64("size_bytes", stats.SizeBytes).
				Int64("wal_size_bytes", stats.WALSizeBytes).
				Int64("freelist_pages", stats.FreelistCount).
				Msg("Database maintenance completed")
		}
	}

	return j.checkDiskSpace()
}

// checkIntegrity runs SQLite's PRAGMA integrity_check
func (j *MaintenanceJob) checkIntegrity(name string, db *database.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}

	j.log.Debug().Str("database", name).Msg("Database integrity OK")
	return nil
}

// checkDiskSpace verifies the data directory's filesystem has headroom.
// Under 500MB free is an error; under 5GB logs a warning.
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")

	if freeGB < 0.5 {
		return fmt.Errorf("only %.2f GB free on data directory filesystem", freeGB)
	}
	if freeGB < 5.0 {
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	}

	return nil
}
