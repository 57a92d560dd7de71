package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/storage"
)

// CreateOptions contains options for creating a backup
type CreateOptions struct {
	Mode      Mode
	Repo      repository.RecordRepository
	Blobs     storage.StorageBackend // required for ModeFull
	OutputDir string

	// ProgressCallback is called before each blob is copied (optional)
	ProgressCallback func(current, total int, name string)
}

func validateCreateOptions(opts *CreateOptions) error {
	if !opts.Mode.IsValid() {
		return fmt.Errorf("invalid backup mode: %q (must be records or full)", opts.Mode)
	}
	if opts.Repo == nil {
		return errors.New("record store is required")
	}
	if opts.Mode == ModeFull && opts.Blobs == nil {
		return errors.New("blob storage is required for full backups")
	}
	if opts.OutputDir == "" {
		return errors.New("output directory is required")
	}
	return nil
}

// Create writes a new backup directory under opts.OutputDir
func Create(ctx context.Context, opts CreateOptions) (*Result, error) {
	start := time.Now()
	result := &Result{}

	fail := func(err error) (*Result, error) {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		result.DurationString = result.Duration.String()
		return result, err
	}

	if err := validateCreateOptions(&opts); err != nil {
		return fail(err)
	}

	if err := os.MkdirAll(opts.OutputDir, BackupDirPerms); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	// Create backup directory atomically (fails if exists)
	backupPath := filepath.Join(opts.OutputDir, GetBackupDirName(start))
	if err := os.Mkdir(backupPath, BackupDirPerms); err != nil {
		if !os.IsExist(err) {
			return fail(fmt.Errorf("failed to create backup directory: %w", err))
		}
		backupPath = fmt.Sprintf("%s-%d", backupPath, time.Now().UnixNano())
		if err := os.Mkdir(backupPath, BackupDirPerms); err != nil {
			return fail(fmt.Errorf("failed to create backup directory: %w", err))
		}
	}
	result.BackupPath = backupPath

	manifest, err := createIn(ctx, backupPath, opts)
	if err != nil {
		os.RemoveAll(backupPath)
		return fail(err)
	}

	result.Success = true
	result.Manifest = manifest
	result.Duration = time.Since(start)
	result.DurationString = result.Duration.String()
	return result, nil
}

func createIn(ctx context.Context, backupPath string, opts CreateOptions) (*Manifest, error) {
	records, err := opts.Repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	manifest := NewManifest(opts.Mode, opts.Repo.Type())
	manifest.Stats.Records = len(records)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	sum := sha256.Sum256(data)
	if err := os.WriteFile(filepath.Join(backupPath, RecordsFilename), data, BackupFilePerms); err != nil {
		return nil, fmt.Errorf("failed to write records: %w", err)
	}
	manifest.Checksums[RecordsFilename] = hex.EncodeToString(sum[:])
	manifest.Stats.RecordsSizeBytes = int64(len(data))

	if opts.Mode == ModeFull {
		manifest.StorageBackend = opts.Blobs.Type()

		var names []string
		for _, r := range records {
			if r.OwnsBlob() {
				names = append(names, r.ServerPath)
			}
		}

		if len(names) > 0 {
			if err := os.Mkdir(filepath.Join(backupPath, BlobsDirname), BackupDirPerms); err != nil {
				return nil, fmt.Errorf("failed to create blobs directory: %w", err)
			}
		}

		for i, name := range names {
			if opts.ProgressCallback != nil {
				opts.ProgressCallback(i+1, len(names), name)
			}

			size, checksum, err := copyBlobOut(ctx, opts.Blobs, name, backupPath)
			if storage.IsNotFound(err) {
				manifest.Stats.BlobsMissing++
				manifest.Warnings = append(manifest.Warnings, fmt.Sprintf("blob %s is missing from storage", name))
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to back up blob %s: %w", name, err)
			}

			manifest.Checksums[blobEntry(name)] = checksum
			manifest.Stats.BlobsBackedUp++
			manifest.Stats.BlobsSizeBytes += size
		}
	}

	manifest.Stats.TotalSizeBytes = manifest.Stats.RecordsSizeBytes + manifest.Stats.BlobsSizeBytes

	if err := WriteManifest(backupPath, manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifest, nil
}

// copyBlobOut copies one blob into the backup and returns its size and checksum
func copyBlobOut(ctx context.Context, blobs storage.StorageBackend, name, backupPath string) (int64, string, error) {
	dest, err := safeJoin(backupPath, blobEntry(name))
	if err != nil {
		return 0, "", err
	}

	src, err := blobs.Retrieve(ctx, name)
	if err != nil {
		return 0, "", err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), BackupDirPerms); err != nil {
		return 0, "", err
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, BackupFilePerms)
	if err != nil {
		return 0, "", err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// List returns the backups found directly under dir, newest first
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	backups := []Info{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		m, err := ReadManifest(path)
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:      e.Name(),
			Path:      path,
			CreatedAt: m.CreatedAt,
			Mode:      m.Mode,
			Records:   m.Stats.Records,
			SizeBytes: m.Stats.TotalSizeBytes,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}
