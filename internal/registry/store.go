// Package registry holds the pitch-deck file registry and decides how each
// record's content is served.
package registry

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tradefoox/deckvault/internal/metrics"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
	"github.com/tradefoox/deckvault/internal/webhooks"
)

const persistTimeout = 10 * time.Second

// Store is the authoritative in-memory list of file records. Every mutation
// and the snapshot write that follows it happen under one write lock.
type Store struct {
	mu       sync.RWMutex
	records  []models.FileRecord
	repo     repository.RecordRepository
	notifier Notifier
}

// Notifier receives registry events. Emit must not block.
type Notifier interface {
	Emit(event *webhooks.Event)
}

// NewStore returns an empty store persisting through repo
func NewStore(repo repository.RecordRepository) *Store {
	return &Store{
		records: []models.FileRecord{},
		repo:    repo,
	}
}

// SetNotifier routes create, upload, access and delete events to n.
// Bulk replacement emits nothing.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Load replaces the in-memory state with the repository snapshot. A read or
// decode failure is logged and the store starts empty.
func (s *Store) Load(ctx context.Context) {
	records, err := s.repo.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		slog.Error("failed to load registry, starting empty",
			"backend", s.repo.Type(),
			"error", err,
		)
		metrics.ErrorsTotal.WithLabelValues("load").Inc()
		s.records = []models.FileRecord{}
		return
	}

	s.records = records
	slog.Info("registry loaded", "backend", s.repo.Type(), "files", len(records))
}

// List returns a copy of all records in insertion order
func (s *Store) List() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Get returns the record with id
func (s *Store) Get(id string) (models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.records[i], nil
	}
	return models.FileRecord{}, &NotFoundError{Message: "File not found"}
}

// ReplaceAll swaps the whole collection. A nil slice is rejected; an empty
// one clears the registry. Ids must be non-empty and unique.
func (s *Store) ReplaceAll(ctx context.Context, records []models.FileRecord) error {
	if records == nil {
		return &ValidationError{Message: "Invalid files data"}
	}

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return &ValidationError{Message: "Invalid files data: every file needs an id"}
		}
		if _, dup := seen[r.ID]; dup {
			return &ValidationError{Message: "Invalid files data: duplicate id " + r.ID}
		}
		seen[r.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = slices.Clone(records)
	s.persist(ctx)
	return nil
}

// Append adds a record at the end
func (s *Store) Append(ctx context.Context, record models.FileRecord) error {
	if record.ID == "" {
		return &ValidationError{Message: "File id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(record.ID) >= 0 {
		return &ValidationError{Message: "File id already exists"}
	}

	s.records = append(s.records, record)
	s.persist(ctx)

	if record.OwnsBlob() {
		s.emit(webhooks.EventDeckUploaded, record)
	} else {
		s.emit(webhooks.EventDeckCreated, record)
	}
	return nil
}

// RemoveByID deletes the record with id and returns it
func (s *Store) RemoveByID(ctx context.Context, id string) (models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.FileRecord{}, &NotFoundError{Message: "File not found"}
	}

	removed := s.records[i]
	s.records = slices.Delete(s.records, i, i+1)
	s.persist(ctx)
	s.emit(webhooks.EventDeckDeleted, removed)
	return removed, nil
}

// RecordAccess increments accessCount and sets lastAccessed for id
func (s *Store) RecordAccess(ctx context.Context, id string, at time.Time) (models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.FileRecord{}, &NotFoundError{Message: "File not found"}
	}

	s.records[i].AccessCount++
	s.records[i].LastAccessed = at.UTC()
	s.persist(ctx)
	s.emit(webhooks.EventDeckAccessed, s.records[i])
	return s.records[i], nil
}

// Stats counts records per access mode
func (s *Store) Stats() models.RegistryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.RegistryStats{Files: len(s.records)}
	for i := range s.records {
		switch s.records[i].Mode() {
		case models.ModeExternal:
			stats.External++
		case models.ModeLocalPDF:
			stats.LocalPDF++
		case models.ModeServerUpload:
			stats.ServerUpload++
		}
		stats.TotalAccesses += int64(s.records[i].AccessCount)
	}
	return stats
}

// Ping reports whether the persistence backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Backend returns the persistence backend name
func (s *Store) Backend() string {
	return s.repo.Type()
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.records, func(r models.FileRecord) bool { return r.ID == id })
}

// emit hands an event to the notifier. Callers hold the write lock.
func (s *Store) emit(t webhooks.EventType, record models.FileRecord) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(webhooks.NewEvent(t, record, time.Now()))
}

// persist writes the snapshot. Callers hold the write lock. Failures are
// logged and counted, never returned. The write ignores request cancellation.
func (s *Store) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, s.records); err != nil {
		slog.Error("failed to persist registry",
			"backend", s.repo.Type(),
			"files", len(s.records),
			"error", err,
		)
		metrics.ErrorsTotal.WithLabelValues("persist").Inc()
	}
}
