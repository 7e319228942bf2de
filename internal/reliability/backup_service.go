package reliability

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/rs/zerolog"
)

const backupPrefix = "courtedge-ledger-"

// minBackupsToKeep backups survive rotation regardless of age
const minBackupsToKeep = 3

// BackupService creates consistent snapshots of the decision ledger and ships
// them to R2. The snapshot uses sqlite VACUUM INTO, which produces a compact,
// transactionally consistent copy without blocking writers.
type BackupService struct {
	ledgerDB *database.DB
	client   *R2Client
	dataDir  string
	retain   int
	log      zerolog.Logger
}

// BackupInfo describes one remote backup
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewBackupService creates a ledger backup service
func NewBackupService(ledgerDB *database.DB, client *R2Client, dataDir string, retain int, log zerolog.Logger) *BackupService {
	return &BackupService{
		ledgerDB: ledgerDB,
		client:   client,
		dataDir:  dataDir,
		retain:   retain,
		log:      log.With().Str("service", "backup").Logger(),
	}
}

// Run creates a snapshot, uploads it and prunes old remote backups
func (s *BackupService) Run(ctx context.Context) error {
	startTime := time.Now()
	s.log.Info().Msg("Starting ledger backup")

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	snapshotPath := filepath.Join(stagingDir, "ledger.db")
	if err := s.snapshot(snapshotPath); err != nil {
		return err
	}

	checksum, err := s.checksum(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to checksum snapshot: %w", err)
	}

	archivePath := snapshotPath + ".gz"
	if err := s.compress(snapshotPath, archivePath); err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	key := fmt.Sprintf("%s%s.db.gz", backupPrefix, time.Now().UTC().Format("2006-01-02-150405"))

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	info, err := archive.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := s.client.Upload(ctx, key, archive, info.Size()); err != nil {
		return err
	}

	s.log.Info().
		Str("key", key).
		Str("checksum", checksum).
		Int64("size_bytes", info.Size()).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Ledger backup uploaded")

	if err := s.Rotate(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate old backups")
	}

	return nil
}

// snapshot writes a consistent copy of the ledger to the given path
func (s *BackupService) snapshot(path string) error {
	// sqlite does not allow parameters in VACUUM INTO; the path is
	// locally constructed, never user input
	escaped := strings.ReplaceAll(path, "'", "''")
	if _, err := s.ledgerDB.Exec(fmt.Sprintf("VACUUM INTO '%s'", escaped)); err != nil {
		return fmt.Errorf("failed to snapshot ledger: %w", err)
	}

	return nil
}

// ListBackups lists remote backups, newest first
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.client.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		timestampStr := strings.TrimPrefix(obj.Key, backupPrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".db.gz")

		timestamp, err := time.Parse("2006-01-02-150405", timestampStr)
		if err != nil {
			s.log.Warn().Str("key", obj.Key).Msg("Failed to parse timestamp from backup key")
			continue
		}

		backups = append(backups, BackupInfo{
			Key:       obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.Size,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// Rotate deletes remote backups beyond the retention count, always keeping
// the newest minBackupsToKeep
func (s *BackupService) Rotate(ctx context.Context) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	keep := s.retain
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}
	if len(backups) <= keep {
		return nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if err := s.client.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return nil
}

func (s *BackupService) checksum(path string) (string, error) {
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

func (s *BackupService) compress(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		return err
	}

	return gz.Close()
}
