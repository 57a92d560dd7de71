package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/storage"
)

// RestoreOptions contains options for restoring a backup
type RestoreOptions struct {
	InputDir string
	Repo     repository.RecordRepository
	Blobs    storage.StorageBackend // optional for records-only backups
	Orphans  OrphanHandling

	// Force overwrites a destination registry that already has records
	Force  bool
	DryRun bool
}

func validateRestoreOptions(opts *RestoreOptions) error {
	if opts.InputDir == "" {
		return errors.New("backup directory is required")
	}
	if opts.Repo == nil {
		return errors.New("record store is required")
	}
	if opts.Orphans == "" {
		opts.Orphans = OrphanKeep
	}
	if !opts.Orphans.IsValid() {
		return fmt.Errorf("invalid orphan handling: %q (must be keep or remove)", opts.Orphans)
	}
	return nil
}

// Restore verifies a backup and writes its records, and blobs when present,
// into the destination store and storage
func Restore(ctx context.Context, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()
	result := &RestoreResult{DryRun: opts.DryRun}

	fail := func(err error) (*RestoreResult, error) {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		result.DurationString = result.Duration.String()
		return result, err
	}

	if err := validateRestoreOptions(&opts); err != nil {
		return fail(err)
	}

	verified := Verify(opts.InputDir)
	if !verified.Valid {
		return fail(fmt.Errorf("backup integrity check failed: %s", strings.Join(verified.Errors, "; ")))
	}
	manifest := verified.Manifest

	if manifest.Mode == ModeFull && manifest.Stats.BlobsBackedUp > 0 && opts.Blobs == nil {
		return fail(errors.New("blob storage is required to restore a full backup"))
	}

	if !opts.Force {
		existing, err := opts.Repo.Load(ctx)
		if err != nil {
			return fail(fmt.Errorf("failed to read destination store: %w", err))
		}
		if len(existing) > 0 {
			return fail(fmt.Errorf("destination store already has %d records (use -force to overwrite)", len(existing)))
		}
	}

	records, err := readRecords(opts.InputDir)
	if err != nil {
		return fail(err)
	}

	backedUp := make(map[string]bool)
	for entry := range manifest.Checksums {
		if name, ok := blobName(entry); ok {
			backedUp[name] = true
		}
	}

	restoredRecords := make([]models.FileRecord, 0, len(records))
	for _, r := range records {
		// without destination storage there is nothing to check orphans against
		if !r.OwnsBlob() || backedUp[r.ServerPath] || opts.Blobs == nil {
			restoredRecords = append(restoredRecords, r)
			continue
		}

		if ok, err := opts.Blobs.Exists(ctx, r.ServerPath); err == nil && ok {
			restoredRecords = append(restoredRecords, r)
			continue
		}

		if opts.Orphans == OrphanRemove {
			result.OrphansRemoved++
			result.Warnings = append(result.Warnings, fmt.Sprintf("removed %s: blob %s not found", r.ID, r.ServerPath))
			continue
		}
		result.OrphansKept++
		result.Warnings = append(result.Warnings, fmt.Sprintf("kept %s without its blob %s", r.ID, r.ServerPath))
		restoredRecords = append(restoredRecords, r)
	}

	if !opts.DryRun {
		for name := range backedUp {
			restored, err := restoreBlob(ctx, opts, name, opts.Force)
			if err != nil {
				return fail(fmt.Errorf("failed to restore blob %s: %w", name, err))
			}
			if restored {
				result.BlobsRestored++
			} else {
				result.BlobsSkipped++
			}
		}

		if err := opts.Repo.Save(ctx, restoredRecords); err != nil {
			return fail(fmt.Errorf("failed to save records: %w", err))
		}
	}

	result.RecordsRestored = len(restoredRecords)
	result.Success = true
	result.Duration = time.Since(start)
	result.DurationString = result.Duration.String()
	return result, nil
}

// restoreBlob copies a blob from the backup into storage. An existing blob
// is left alone unless overwrite is set.
func restoreBlob(ctx context.Context, opts RestoreOptions, name string, overwrite bool) (bool, error) {
	if !overwrite {
		exists, err := opts.Blobs.Exists(ctx, name)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	path, err := safeJoin(opts.InputDir, blobEntry(name))
	if err != nil {
		return false, err
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}

	if _, _, err := opts.Blobs.Store(ctx, name, f, info.Size()); err != nil {
		return false, err
	}
	return true, nil
}
