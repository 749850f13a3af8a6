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

	"github.com/holdiq/holdiq/internal/database"
)

const backupNamePrefix = "holdiq-backup-"

// BackupService creates compressed database backups and uploads them
// to S3.
type BackupService struct {
	db      *database.DB
	client  *S3Client
	dataDir string
	log     zerolog.Logger
}

// BackupMetadata describes the contents of one backup archive.
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupInfo describes a backup stored in the bucket.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, client *S3Client, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:      db,
		client:  client,
		dataDir: dataDir,
		log:     log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup checkpoints the WAL, snapshots the database
// file into a tar.gz archive with a metadata record and uploads it.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	// Fold the WAL into the main file so the copy is self-contained.
	if err := s.db.CheckpointWAL(); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	dbCopyPath := filepath.Join(stagingDir, s.db.Name()+".db")
	if err := copyFile(s.db.Path(), dbCopyPath); err != nil {
		return fmt.Errorf("failed to copy database: %w", err)
	}

	info, err := os.Stat(dbCopyPath)
	if err != nil {
		return fmt.Errorf("failed to stat database copy: %w", err)
	}

	checksum, err := fileChecksum(dbCopyPath)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Database:  s.db.Name(),
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02-150405")
	archiveName := fmt.Sprintf("%s%s.tar.gz", backupNamePrefix, timestamp)
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := createArchive(archivePath, []string{dbCopyPath, metadataPath}); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.client.Upload(ctx, archiveName, archiveFile); err != nil {
		return err
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed successfully")

	return nil
}

// ListBackups lists the backups stored in the bucket, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.client.List(ctx, backupNamePrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		filename := filepath.Base(*obj.Key)
		if !strings.HasPrefix(filename, backupNamePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimSuffix(strings.TrimPrefix(filename, backupNamePrefix), ".tar.gz")
		timestamp, err := time.Parse("2006-01-02-150405", timestampStr)
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

// RotateOldBackups deletes backups older than the retention period.
// The newest three are kept regardless of age; retentionDays of 0
// keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	deletedCount := 0

	for i, backup := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if !backup.Timestamp.Before(cutoffTime) {
			continue
		}

		if err := s.client.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deletedCount++
	}

	s.log.Info().
		Int("deleted", deletedCount).
		Int("remaining", len(backups)-deletedCount).
		Msg("Backup rotation completed")

	return nil
}

func fileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
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

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath string, files []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filePath := range files {
		if err := addFileToArchive(tarWriter, filePath, filepath.Base(filePath)); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filePath, err)
		}
	}

	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
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

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
