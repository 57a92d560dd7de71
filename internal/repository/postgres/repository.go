package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
)

const maxSaveRetries = 3

// Repository is the PostgreSQL RecordRepository.
type Repository struct {
	pool *Pool
}

var _ repository.RecordRepository = (*Repository)(nil)

// Open connects to connString, optionally migrates, and returns a repository
// that owns the pool.
func Open(ctx context.Context, connString string, maxConns int32, autoMigrate bool) (*Repository, error) {
	pool, err := NewPool(ctx, connString, maxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if autoMigrate {
		if err := RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
		}
	}

	return &Repository{pool: pool}, nil
}

// NewWithPool wraps an existing pool
func NewWithPool(pool *Pool) (*Repository, error) {
	if pool == nil {
		return nil, repository.ErrNilDatabase
	}
	return &Repository{pool: pool}, nil
}

// Load returns all records ordered by insertion position
func (r *Repository) Load(ctx context.Context) ([]models.FileRecord, error) {
	rows, err := r.pool.Query(ctx, `
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
			uploadDate, lastAccessed *time.Time
			supplied                 string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Size, &uploadDate, &rec.AccessCount, &lastAccessed,
			&rec.ServerPath, &rec.SecureToken, &rec.FileURL, &rec.IsLocalFile, &rec.MimeType, &supplied); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := rec.DecodeSupplied(supplied); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", repository.ErrCorruptSnapshot, rec.ID, err)
		}
		if uploadDate != nil {
			rec.UploadDate = uploadDate.UTC()
		}
		if lastAccessed != nil {
			rec.LastAccessed = lastAccessed.UTC()
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Save replaces the stored snapshot in one serializable transaction
func (r *Repository) Save(ctx context.Context, records []models.FileRecord) error {
	return withRetry(ctx, maxSaveRetries, func() error {
		return r.save(ctx, records)
	})
}

func (r *Repository) save(ctx context.Context, records []models.FileRecord) error {
	tx, err := r.pool.BeginTx(ctx, TxOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM file_records"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	batch := &pgx.Batch{}
	for i, rec := range records {
		supplied, err := rec.EncodeSupplied()
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
		batch.Queue(`
			INSERT INTO file_records (id, position, name, size, upload_date, access_count, last_accessed,
			                          server_path, secure_token, file_url, is_local_file, mime_type, supplied)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, rec.ID, i, rec.Name, rec.Size, nullableTime(rec.UploadDate), rec.AccessCount,
			nullableTime(rec.LastAccessed), rec.ServerPath, rec.SecureToken, rec.FileURL,
			rec.IsLocalFile, rec.MimeType, supplied)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Type() string { return repository.BackendPostgres }

// Close releases the connection pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
