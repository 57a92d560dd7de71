// Package repository defines how the registry snapshot is persisted.
// The in-memory registry is authoritative; a RecordRepository only has to
// load the last snapshot at startup and overwrite it after each mutation.
// Implementations live in the jsonfile, sqlite, postgres and mock subpackages.
package repository

import (
	"context"
	"errors"

	"github.com/tradefoox/deckvault/internal/models"
)

// Common errors returned by repository operations.
var (
	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")

	// ErrCorruptSnapshot is returned when stored data cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt registry snapshot")
)

// Backend names reported by Type.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMock     = "mock"
)

// RecordRepository persists the ordered list of file records as a whole.
type RecordRepository interface {
	// Load returns the stored records in insertion order. A backend with
	// nothing stored yet returns an empty slice and a nil error.
	Load(ctx context.Context) ([]models.FileRecord, error)

	// Save replaces the stored snapshot with records.
	Save(ctx context.Context, records []models.FileRecord) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Type returns the backend name.
	Type() string

	Close() error
}
