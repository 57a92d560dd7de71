// Package storage provides abstraction for blob storage operations.
// Server-uploaded decks live in a StorageBackend (local filesystem or S3);
// the static site root is exposed through the same interface so local PDFs
// resolve with the same path checks.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is wrapped by StorageError when the requested object is missing.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidPath is wrapped when a name would escape the storage root.
	ErrInvalidPath = errors.New("invalid path")
)

// StorageBackend defines the interface for blob storage operations.
type StorageBackend interface {
	// Store writes data from the reader to storage with the given filename.
	// Returns the storage path (may differ from filename) and SHA256 hash of the stored content.
	// A positive size is checked against the number of bytes written.
	Store(ctx context.Context, filename string, reader io.Reader, size int64) (path string, hash string, err error)

	// Retrieve returns a reader for the stored file.
	// The caller is responsible for closing the returned ReadCloser.
	Retrieve(ctx context.Context, filename string) (io.ReadCloser, error)

	// Delete removes a file from storage. Deleting a missing file is not an error.
	Delete(ctx context.Context, filename string) error

	// Exists checks if a file exists in storage.
	Exists(ctx context.Context, filename string) (bool, error)

	// GetSize returns the size of a stored file in bytes.
	GetSize(ctx context.Context, filename string) (int64, error)

	// GetAvailableSpace returns the available storage space in bytes.
	// For S3 this is the configured quota minus usage, or -1 when unlimited.
	GetAvailableSpace(ctx context.Context) (int64, error)

	// GetUsedSpace returns the storage space currently used in bytes.
	GetUsedSpace(ctx context.Context) (int64, error)

	// Type returns the backend name ("filesystem", "s3", "mock").
	Type() string
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "Store", "Retrieve", "Delete")
	Path    string // Path or filename involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err == nil {
		return e.Op + " " + e.Path
	}
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, path string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Path:    path,
		Err:     err,
		Message: message,
	}
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
