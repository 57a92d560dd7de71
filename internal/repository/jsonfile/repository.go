// Package jsonfile stores the registry snapshot as a pretty-printed JSON array.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
)

// Repository keeps the snapshot in a single file.
type Repository struct {
	path string
	mu   sync.Mutex
}

var _ repository.RecordRepository = (*Repository)(nil)

// New returns a repository backed by path. The file is created on first Save.
func New(path string) *Repository {
	return &Repository{path: path}
}

// Path returns the snapshot file location
func (r *Repository) Path() string {
	return r.path
}

// Load reads the snapshot. A missing file yields an empty registry.
func (r *Repository) Load(ctx context.Context) ([]models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.FileRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var records []models.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrCorruptSnapshot, r.path, err)
	}
	if records == nil {
		records = []models.FileRecord{}
	}
	return records, nil
}

// Save writes the snapshot atomically: temp file, fsync, rename.
func (r *Repository) Save(ctx context.Context, records []models.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []models.FileRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Ping checks that the snapshot directory is reachable
func (r *Repository) Ping(ctx context.Context) error {
	dir := filepath.Dir(r.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (r *Repository) Type() string { return repository.BackendJSON }

func (r *Repository) Close() error { return nil }
