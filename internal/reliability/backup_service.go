// Package reliability provides database backup services: consistent sqlite
// snapshots, tar.gz archives shipped to S3-compatible storage, and retention
// rotation of old archives.
package reliability

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/database"
)

// BackupService produces consistent on-disk snapshots of the sqlite databases.
// Snapshots use VACUUM INTO, which copies a transactionally consistent image
// without blocking readers or writers on the source.
type BackupService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewBackupService creates a backup service over the given databases, keyed by
// logical name (signals, scores, config, history).
func NewBackupService(databases map[string]*database.DB, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the logical database names in sorted order, so
// archive layouts stay deterministic across runs.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupDatabase snapshots one database to destPath. The destination must not
// already exist; VACUUM INTO refuses to overwrite.
func (s *BackupService) BackupDatabase(ctx context.Context, name, destPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("unknown database %q", name)
	}

	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to clear stale snapshot %s: %w", destPath, err)
		}
	}

	if _, err := db.Conn().ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", name, err)
	}

	s.log.Debug().Str("database", name).Str("path", destPath).Msg("Database snapshot created")
	return nil
}
