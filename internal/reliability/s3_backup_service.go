package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/version"
)

const (
	backupPrefix        = "pulse-backup-"
	backupTimestampFmt  = "2006-01-02-150405"
	backupFormatVersion = "1.0.0"
)

// S3BackupService archives the sqlite databases and ships them to
// S3-compatible object storage.
type S3BackupService struct {
	store         ObjectStore
	backupService *BackupService
	dataDir       string
	bus           *events.Bus
	log           zerolog.Logger
}

// BackupMetadata describes the contents of one backup archive.
type BackupMetadata struct {
	Timestamp    time.Time          `json:"timestamp"`
	Version      string             `json:"version"`
	PulseVersion string             `json:"pulse_version"`
	Databases    []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database file inside a backup archive.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupResult summarizes a completed backup run.
type BackupResult struct {
	Key        string             `json:"key"`
	SizeBytes  int64              `json:"size_bytes"`
	Checksum   string             `json:"checksum"`
	Databases  []DatabaseMetadata `json:"databases"`
	DurationMS int64              `json:"duration_ms"`
}

// BackupInfo describes a backup archive stored in the bucket.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewS3BackupService creates the cloud backup service. The bus may be nil in
// stripped-down setups; completed backups then go unannounced.
func NewS3BackupService(
	store ObjectStore,
	backupService *BackupService,
	dataDir string,
	bus *events.Bus,
	log zerolog.Logger,
) *S3BackupService {
	return &S3BackupService{
		store:         store,
		backupService: backupService,
		dataDir:       dataDir,
		bus:           bus,
		log:           log.With().Str("service", "s3_backup").Logger(),
	}
}

// CreateAndUploadBackup snapshots every database, bundles the snapshots with a
// metadata manifest into a tar.gz archive, and uploads the archive. Staging
// files are removed before returning.
func (s *S3BackupService) CreateAndUploadBackup(ctx context.Context) (*BackupResult, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	dbNames := s.backupService.DatabaseNames()
	metadata := BackupMetadata{
		Timestamp:    startTime.UTC(),
		Version:      backupFormatVersion,
		PulseVersion: version.Version,
		Databases:    make([]DatabaseMetadata, 0, len(dbNames)),
	}

	archiveFiles := make([]string, 0, len(dbNames)+1)
	for _, dbName := range dbNames {
		filename := dbName + ".db"
		dbPath := filepath.Join(stagingDir, filename)

		s.log.Debug().Str("database", dbName).Msg("Snapshotting database")

		if err := s.backupService.BackupDatabase(ctx, dbName, dbPath); err != nil {
			return nil, fmt.Errorf("failed to snapshot %s: %w", dbName, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s snapshot: %w", dbName, err)
		}

		checksum, err := s.checksumFile(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s snapshot: %w", dbName, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      dbName,
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		archiveFiles = append(archiveFiles, filename)
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := s.writeMetadata(metadataPath, metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	archiveFiles = append(archiveFiles, "backup-metadata.json")

	archiveName := backupPrefix + startTime.UTC().Format(backupTimestampFmt) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := s.createArchive(archivePath, stagingDir, archiveFiles); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveChecksum, err := s.checksumFile(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile); err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	duration := time.Since(startTime)
	result := &BackupResult{
		Key:        archiveName,
		SizeBytes:  archiveInfo.Size(),
		Checksum:   archiveChecksum,
		Databases:  metadata.Databases,
		DurationMS: duration.Milliseconds(),
	}

	if s.bus != nil {
		s.bus.Emit(events.BackupCompleted, "reliability", map[string]any{
			"key":         result.Key,
			"size_bytes":  result.SizeBytes,
			"checksum":    result.Checksum,
			"duration_ms": result.DurationMS,
		})
	}

	s.log.Info().
		Dur("duration_ms", duration).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed")

	return result, nil
}

// ListBackups lists all backup archives in the bucket, newest first.
func (s *S3BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		filename := *obj.Key
		if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(filename, backupPrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse(backupTimestampFmt, timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Failed to parse timestamp from filename")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes archives beyond the newest keep. A keep of zero or
// less disables rotation entirely.
func (s *S3BackupService) RotateOldBackups(ctx context.Context, keep int) error {
	if keep <= 0 {
		s.log.Debug().Msg("Backup rotation disabled")
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups for rotation: %w", err)
	}

	if len(backups) <= keep {
		s.log.Debug().Int("count", len(backups)).Int("keep", keep).Msg("No backups to rotate")
		return nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().
				Err(err).
				Str("filename", backup.Filename).
				Msg("Failed to delete old backup")
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return nil
}

// checksumFile computes the SHA256 checksum of a file.
func (s *S3BackupService) checksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes the backup manifest to a JSON file.
func (s *S3BackupService) writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive bundles the named files from sourceDir into a tar.gz archive.
func (s *S3BackupService) createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := s.addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive appends a single file to a tar stream.
func (s *S3BackupService) addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}
