// Package filesystem implements the StorageBackend interface for local filesystem storage.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tradefoox/deckvault/internal/storage"
)

// FilesystemStorage implements StorageBackend for local filesystem storage.
type FilesystemStorage struct {
	baseDir    string // Base directory for all storage operations
	absBaseDir string // Absolute path of baseDir for path validation
}

var _ storage.StorageBackend = (*FilesystemStorage)(nil)

// NewFilesystemStorage creates a new FilesystemStorage with the given base directory.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
	}, nil
}

// validatePath validates that the filename doesn't escape the base directory.
// Returns the safe full path or an error if path traversal is detected.
func (fs *FilesystemStorage) validatePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: empty filename", storage.ErrInvalidPath)
	}

	cleanFilename := filepath.Clean(filepath.FromSlash(filename))

	if filepath.IsAbs(cleanFilename) {
		return "", fmt.Errorf("%w: absolute paths not allowed: %s", storage.ErrInvalidPath, filename)
	}

	if cleanFilename == ".." || strings.HasPrefix(cleanFilename, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal not allowed: %s", storage.ErrInvalidPath, filename)
	}

	fullPath := filepath.Join(fs.baseDir, cleanFilename)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// Must start with baseDir + separator; the base directory itself is not a file
	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escape attempt: %s", storage.ErrInvalidPath, filename)
	}

	return fullPath, nil
}

// Store writes data from the reader to storage with the given filename.
// Uses atomic write pattern (temp file, fsync, rename).
func (fs *FilesystemStorage) Store(ctx context.Context, filename string, reader io.Reader, size int64) (string, string, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return "", "", storage.NewStorageErrorWithMessage("Store", filename, err, "path validation failed")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}
	tempPath := tempFile.Name()

	var succeeded bool
	defer func() {
		tempFile.Close()
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(tempFile, io.TeeReader(reader, hasher))
	if err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}

	if size > 0 && written != size {
		return "", "", storage.NewStorageErrorWithMessage("Store", filename, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d bytes", size, written))
	}

	if err := ctx.Err(); err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}

	hash := hex.EncodeToString(hasher.Sum(nil))

	if err := tempFile.Sync(); err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}
	if err := tempFile.Close(); err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}

	succeeded = true
	slog.Debug("file stored",
		"filename", filename,
		"size", written,
		"hash", hash[:16]+"...",
	)

	return filename, hash, nil
}

// Retrieve returns a reader for the stored file.
func (fs *FilesystemStorage) Retrieve(ctx context.Context, filename string) (io.ReadCloser, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", filename, err, "path validation failed")
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewStorageErrorWithMessage("Retrieve", filename, storage.ErrNotFound, "file not found")
		}
		return nil, storage.NewStorageError("Retrieve", filename, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, storage.NewStorageError("Retrieve", filename, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, storage.NewStorageErrorWithMessage("Retrieve", filename, storage.ErrNotFound, "file not found")
	}

	return file, nil
}

// Delete removes a file from storage.
func (fs *FilesystemStorage) Delete(ctx context.Context, filename string) error {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", filename, err, "path validation failed")
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			// Already gone
			return nil
		}
		return storage.NewStorageError("Delete", filename, err)
	}

	slog.Debug("file deleted", "filename", filename)
	return nil
}

// Exists checks if a regular file exists in storage.
func (fs *FilesystemStorage) Exists(ctx context.Context, filename string) (bool, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", filename, err, "path validation failed")
	}

	info, err := os.Stat(filePath)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storage.NewStorageError("Exists", filename, err)
}

// GetSize returns the size of a stored file in bytes.
func (fs *FilesystemStorage) GetSize(ctx context.Context, filename string) (int64, error) {
	filePath, err := fs.validatePath(filename)
	if err != nil {
		return 0, storage.NewStorageErrorWithMessage("GetSize", filename, err, "path validation failed")
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, storage.NewStorageErrorWithMessage("GetSize", filename, storage.ErrNotFound, "file not found")
		}
		return 0, storage.NewStorageError("GetSize", filename, err)
	}
	if info.IsDir() {
		return 0, storage.NewStorageErrorWithMessage("GetSize", filename, storage.ErrNotFound, "file not found")
	}

	return info.Size(), nil
}

// GetAvailableSpace returns the available storage space in bytes.
func (fs *FilesystemStorage) GetAvailableSpace(ctx context.Context) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(fs.baseDir, &stat); err != nil {
		return 0, storage.NewStorageError("GetAvailableSpace", fs.baseDir, err)
	}

	// Available to non-root users
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// GetUsedSpace returns the storage space currently used in bytes.
func (fs *FilesystemStorage) GetUsedSpace(ctx context.Context) (int64, error) {
	var totalSize int64

	err := filepath.Walk(fs.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Skip files/directories we can't access
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, storage.NewStorageError("GetUsedSpace", fs.baseDir, err)
	}

	return totalSize, nil
}

func (fs *FilesystemStorage) Type() string { return "filesystem" }

// GetBaseDir returns the base directory.
func (fs *FilesystemStorage) GetBaseDir() string {
	return fs.baseDir
}
