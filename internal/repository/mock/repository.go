// Package mock provides an in-memory RecordRepository for tests.
//
// Error injection fields should be set before concurrent use begins; they are
// not protected by the mutex.
package mock

import (
	"context"
	"sync"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
)

// RecordRepository keeps the last saved snapshot in memory.
type RecordRepository struct {
	mu        sync.Mutex
	records   []models.FileRecord
	saveCalls int

	// Error injection
	LoadError error
	SaveError error
	PingError error

	// OnSave, when set, is called with each snapshot before it is stored.
	OnSave func(records []models.FileRecord)
}

var _ repository.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository returns a mock seeded with records
func NewRecordRepository(records ...models.FileRecord) *RecordRepository {
	return &RecordRepository{records: cloneRecords(records)}
}

// Load returns a copy of the stored snapshot
func (r *RecordRepository) Load(ctx context.Context) ([]models.FileRecord, error) {
	if r.LoadError != nil {
		return nil, r.LoadError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneRecords(r.records), nil
}

// Save stores a copy of records unless SaveError is set
func (r *RecordRepository) Save(ctx context.Context, records []models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saveCalls++
	if r.SaveError != nil {
		return r.SaveError
	}
	if r.OnSave != nil {
		r.OnSave(records)
	}
	r.records = cloneRecords(records)
	return nil
}

func (r *RecordRepository) Ping(ctx context.Context) error { return r.PingError }

func (r *RecordRepository) Type() string { return repository.BackendMock }

func (r *RecordRepository) Close() error { return nil }

// Snapshot returns what the last successful Save stored
func (r *RecordRepository) Snapshot() []models.FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneRecords(r.records)
}

// SaveCalls returns how many times Save was called, including failed calls
func (r *RecordRepository) SaveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCalls
}

func cloneRecords(records []models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, len(records))
	copy(out, records)
	return out
}
