package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/pulse/internal/reliability"
)

type stubBackups struct {
	result      *reliability.BackupResult
	backupErr   error
	rotateErr   error
	backupCalls int
	rotateKeeps []int
}

func (s *stubBackups) CreateAndUploadBackup(_ context.Context) (*reliability.BackupResult, error) {
	s.backupCalls++
	if s.backupErr != nil {
		return nil, s.backupErr
	}
	return s.result, nil
}

func (s *stubBackups) RotateOldBackups(_ context.Context, keep int) error {
	s.rotateKeeps = append(s.rotateKeeps, keep)
	return s.rotateErr
}

func TestBackupJob_Name(t *testing.T) {
	job := NewBackupJob(&stubBackups{}, 7)
	assert.Equal(t, "backup_upload", job.Name())
}

func TestBackupJob_Run(t *testing.T) {
	backups := &stubBackups{result: &reliability.BackupResult{Key: "pulse-backup-2026-08-23-043000.tar.gz"}}
	job := NewBackupJob(backups, 7)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())

	assert.Equal(t, 1, backups.backupCalls)
	assert.Equal(t, []int{7}, backups.rotateKeeps)
}

func TestBackupJob_Run_BackupFails(t *testing.T) {
	backups := &stubBackups{backupErr: errors.New("bucket unreachable")}
	job := NewBackupJob(backups, 7)
	job.SetLogger(zerolog.Nop())

	require.Error(t, job.Run())
	assert.Empty(t, backups.rotateKeeps, "no rotation after a failed backup")
}

func TestBackupJob_Run_RotationFailureIsNotFatal(t *testing.T) {
	backups := &stubBackups{
		result:    &reliability.BackupResult{Key: "pulse-backup-2026-08-23-043000.tar.gz"},
		rotateErr: errors.New("bucket unreachable"),
	}
	job := NewBackupJob(backups, 7)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run(), "the backup itself succeeded")
}
