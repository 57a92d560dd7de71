// Package sqlite stores the registry snapshot in an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_records (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    upload_date TEXT NOT NULL DEFAULT '',
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed TEXT NOT NULL DEFAULT '',
    server_path TEXT NOT NULL DEFAULT '',
    secure_token TEXT NOT NULL DEFAULT '',
    file_url TEXT NOT NULL DEFAULT '',
    is_local_file INTEGER NOT NULL DEFAULT 0,
    mime_type TEXT NOT NULL DEFAULT '',
    supplied TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_file_records_position ON file_records(position);
`

// Repository is the SQLite RecordRepository.
type Repository struct {
	db *sql.DB
}

var _ repository.RecordRepository = (*Repository)(nil)

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Repository, error) {
	db, err := Initialize(dbPath)
	if err != nil {
		return nil, err
	}
	return New(db)
}

// Initialize opens the SQLite database and creates the schema
func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000", // 5 second busy timeout
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// New wraps an initialized database
func New(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}
	return &Repository{db: db}, nil
}

// Load returns all records ordered by insertion position
func (r *Repository) Load(ctx context.Context) ([]models.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, size, upload_date, access_count, last_accessed,
		       server_path, secure_token, file_url, is_local_file, mime_type, supplied
		FROM file_records
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.FileRecord{}
	for rows.Next() {
		var (
			rec                      models.FileRecord
			uploadDate, lastAccessed string
			supplied                 string
			isLocal                  int
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Size, &uploadDate, &rec.AccessCount, &lastAccessed,
			&rec.ServerPath, &rec.SecureToken, &rec.FileURL, &isLocal, &rec.MimeType, &supplied); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if rec.UploadDate, err = parseTime(uploadDate); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", repository.ErrCorruptSnapshot, rec.ID, err)
		}
		if rec.LastAccessed, err = parseTime(lastAccessed); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", repository.ErrCorruptSnapshot, rec.ID, err)
		}
		rec.IsLocalFile = isLocal != 0
		if err := rec.DecodeSupplied(supplied); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", repository.ErrCorruptSnapshot, rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Save replaces the stored snapshot inside a single transaction
func (r *Repository) Save(ctx context.Context, records []models.FileRecord) error {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM file_records"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_records (id, position, name, size, upload_date, access_count, last_accessed,
		                          server_path, secure_token, file_url, is_local_file, mime_type, supplied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		supplied, err := rec.EncodeSupplied()
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, i, rec.Name, rec.Size, formatTime(rec.UploadDate),
			rec.AccessCount, formatTime(rec.LastAccessed), rec.ServerPath, rec.SecureToken,
			rec.FileURL, boolToInt(rec.IsLocalFile), rec.MimeType, supplied); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Type() string { return repository.BackendSQLite }

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

// beginImmediateTx starts a transaction, retrying while the database is busy.
func beginImmediateTx(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	const maxRetries = 5
	baseDelay := 50 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		tx, err := db.BeginTx(ctx, nil)
		if err == nil {
			return tx, nil
		}

		lastErr = err
		if !isSQLiteBusyError(err) {
			return nil, err
		}

		if attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed to begin transaction after %d attempts: %w", maxRetries, lastErr)
}

// isSQLiteBusyError checks if an error is an SQLITE_BUSY or SQLITE_LOCKED error.
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "sqlite_busy") ||
		strings.Contains(errStr, "sqlite_locked")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
