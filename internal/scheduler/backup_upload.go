package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// backupTimeout bounds one backup run including the upload.
const backupTimeout = 15 * time.Minute

// BackupJob archives the databases to object storage and rotates old
// archives. Rotation failures are logged but do not fail the job; the new
// backup already landed.
type BackupJob struct {
	log     zerolog.Logger
	backups BackupRunner
	keep    int
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backups BackupRunner, keep int) *BackupJob {
	return &BackupJob{
		log:     zerolog.Nop(),
		backups: backups,
		keep:    keep,
	}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup_upload"
}

// Run creates and uploads a backup, then rotates old archives
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	result, err := j.backups.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	j.log.Info().
		Str("key", result.Key).
		Int64("size_bytes", result.SizeBytes).
		Msg("Backup uploaded")

	if err := j.backups.RotateOldBackups(ctx, j.keep); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
