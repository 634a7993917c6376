// Package reliability implements off-site backups: consistent SQLite
// snapshots bundled into tar.gz archives and shipped to S3-compatible
// object storage, with age-based rotation.
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

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/jtallis/ballast/internal/database"
)

const (
	archivePrefix    = "ballast-backup-"
	archiveTimeFmt   = "2006-01-02-150405"
	metadataFilename = "backup-metadata.json"
)

// ObjectStore is the slice of object storage the backup service needs.
// Implemented by S3Client.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

var _ ObjectStore = (*S3Client)(nil)

// BackupService snapshots every configured database, archives the snapshots
// and uploads the archive to object storage.
type BackupService struct {
	store         ObjectStore
	databases     map[string]*database.DB
	dataDir       string
	retentionDays int
	log           zerolog.Logger
}

// BackupMetadata describes the contents of a backup archive.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database file inside a backup.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes a backup archive stored remotely.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a backup service. The staging directory for
// snapshots lives under dataDir. retentionDays 0 disables age-based
// rotation.
func NewBackupService(
	store ObjectStore,
	databases map[string]*database.DB,
	dataDir string,
	retentionDays int,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		store:         store,
		databases:     databases,
		dataDir:       dataDir,
		retentionDays: retentionDays,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// Backup runs one full cycle: snapshot, archive, upload, rotate. A rotation
// failure is logged but does not fail the cycle since the new archive is
// already uploaded at that point.
func (s *BackupService) Backup(ctx context.Context) error {
	if err := s.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := s.RotateOldBackups(ctx, s.retentionDays); err != nil {
		s.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

// CreateAndUploadBackup snapshots every database into a staging directory,
// bundles the snapshots with a metadata file into a tar.gz archive and
// uploads the archive.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	// VACUUM INTO refuses to overwrite, so clear any staging left behind
	// by an interrupted run.
	stagingDir := filepath.Join(s.dataDir, "backup-staging")
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	dbNames := s.databaseNames()
	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Databases: make([]DatabaseMetadata, 0, len(dbNames)),
	}

	for _, dbName := range dbNames {
		dbPath := filepath.Join(stagingDir, dbName+".db")

		s.log.Debug().Str("database", dbName).Msg("Snapshotting database")

		if err := s.databases[dbName].BackupTo(ctx, dbPath); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", dbName, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s snapshot: %w", dbName, err)
		}

		checksum, err := calculateChecksum(dbPath)
		if err != nil {
			return fmt.Errorf("failed to calculate checksum for %s: %w", dbName, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      dbName,
			Filename:  dbName + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(stagingDir, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	files := make([]string, 0, len(dbNames)+1)
	for _, dbName := range dbNames {
		files = append(files, dbName+".db")
	}
	files = append(files, metadataFilename)

	archiveName := archivePrefix + time.Now().Format(archiveTimeFmt) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := createArchive(archivePath, stagingDir, files); err != nil {
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

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	s.log.Info().
		Dur("took", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Int("databases", len(dbNames)).
		Msg("Backup completed")

	return nil
}

// ListBackups returns the backups currently in object storage, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
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
		if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
			continue
		}

		timestampStr := strings.TrimPrefix(filename, archivePrefix)
		timestampStr = strings.TrimSuffix(timestampStr, ".tar.gz")

		timestamp, err := time.Parse(archiveTimeFmt, timestampStr)
		if err != nil {
			s.log.Warn().Str("filename", filename).Msg("Skipping object with unparseable timestamp")
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

// RotateOldBackups deletes backups older than the retention period. The
// newest three are always kept and retentionDays 0 keeps everything.
func (s *BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	const minBackupsToKeep = 3
	if len(backups) <= minBackupsToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	deleted := 0
	failures := 0
	for i, backup := range backups {
		if i < minBackupsToKeep {
			continue
		}
		if !backup.Timestamp.Before(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().
				Err(err).
				Str("filename", backup.Filename).
				Msg("Failed to delete old backup")
			failures++
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	if deleted > 0 {
		s.log.Info().
			Int("deleted", deleted).
			Int("remaining", len(backups)-deleted).
			Msg("Backup rotation completed")
	}
	if failures > 0 {
		return fmt.Errorf("backup rotation finished with %d failures", failures)
	}

	return nil
}

// databaseNames returns the configured database names in stable order.
func (s *BackupService) databaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name, db := range s.databases {
		if db == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// calculateChecksum computes the SHA256 checksum of a file.
func calculateChecksum(path string) (string, error) {
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

// writeMetadata writes backup metadata to a JSON file.
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

// createArchive bundles the named files from sourceDir into a tar.gz
// archive at archivePath.
func createArchive(archivePath, sourceDir string, filenames []string) error {
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
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive appends a single file to a tar archive.
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
