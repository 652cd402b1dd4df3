package scheduler

import (
	"context"
	"time"

	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/reliability"
)

// RecomputeService defines the contract for triggering score recomputes.
// Implemented by scoring.Service; jobs test against mocks.
type RecomputeService interface {
	Recompute(ctx context.Context, orgID string, override *domain.ScoringConfig, trigger string) (*domain.RecomputeResult, error)
}

// OrgDirectory defines the contract for enumerating organizations.
// Implemented by accounts.Repository.
type OrgDirectory interface {
	ListOrgIDs(ctx context.Context) ([]string, error)
}

// HistoryTrimmer defines the contract for score history retention.
// Implemented by scores.HistoryRepository.
type HistoryTrimmer interface {
	TrimOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// BackupRunner defines the contract for cloud backups.
// Implemented by reliability.S3BackupService.
type BackupRunner interface {
	CreateAndUploadBackup(ctx context.Context) (*reliability.BackupResult, error)
	RotateOldBackups(ctx context.Context, keep int) error
}
