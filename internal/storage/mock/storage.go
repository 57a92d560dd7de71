// Package mock provides an in-memory storage.StorageBackend for tests.
package mock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tradefoox/deckvault/internal/storage"
)

// StorageBackend stores all data in memory and supports error injection.
// Error fields and hooks should be set before concurrent use begins.
type StorageBackend struct {
	mu sync.RWMutex

	files          map[string][]byte
	availableSpace int64
	deleted        []string

	// Error injection
	StoreError             error
	RetrieveError          error
	DeleteError            error
	ExistsError            error
	GetSizeError           error
	GetAvailableSpaceError error
	GetUsedSpaceError      error

	// OnRetrieve, when set, replaces the default Retrieve behaviour.
	OnRetrieve func(ctx context.Context, filename string) (io.ReadCloser, error)
}

var _ storage.StorageBackend = (*StorageBackend)(nil)

// NewStorageBackend creates a new mock with 100GB of free space.
func NewStorageBackend() *StorageBackend {
	return &StorageBackend{
		files:          make(map[string][]byte),
		availableSpace: 100 * 1024 * 1024 * 1024,
	}
}

// SetAvailableSpace sets the available space for testing quota scenarios.
func (s *StorageBackend) SetAvailableSpace(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availableSpace = bytes
}

// AddFile directly adds a file to the mock storage for test setup.
func (s *StorageBackend) AddFile(filename string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filename] = bytes.Clone(content)
}

// GetFileContent returns the content of a file (for test assertions).
func (s *StorageBackend) GetFileContent(filename string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, exists := s.files[filename]
	if !exists {
		return nil, false
	}
	return bytes.Clone(content), true
}

// GetAllFiles returns all filenames in storage, sorted.
func (s *StorageBackend) GetAllFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filenames := make([]string, 0, len(s.files))
	for name := range s.files {
		filenames = append(filenames, name)
	}
	sort.Strings(filenames)
	return filenames
}

// DeletedFiles returns every filename passed to a successful Delete, in order.
func (s *StorageBackend) DeletedFiles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deleted...)
}

// Store implements storage.StorageBackend.Store
func (s *StorageBackend) Store(ctx context.Context, filename string, reader io.Reader, size int64) (string, string, error) {
	if s.StoreError != nil {
		return "", "", s.StoreError
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", storage.NewStorageError("Store", filename, err)
	}

	if size > 0 && int64(len(data)) != size {
		return "", "", storage.NewStorageErrorWithMessage("Store", filename, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d bytes", size, len(data)))
	}

	s.mu.Lock()
	s.files[filename] = data
	s.mu.Unlock()

	sum := sha256.Sum256(data)
	return filename, hex.EncodeToString(sum[:]), nil
}

// Retrieve implements storage.StorageBackend.Retrieve
func (s *StorageBackend) Retrieve(ctx context.Context, filename string) (io.ReadCloser, error) {
	if s.OnRetrieve != nil {
		return s.OnRetrieve(ctx, filename)
	}
	if s.RetrieveError != nil {
		return nil, s.RetrieveError
	}

	content, ok := s.GetFileContent(filename)
	if !ok {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", filename, storage.ErrNotFound, "file not found")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Delete implements storage.StorageBackend.Delete
func (s *StorageBackend) Delete(ctx context.Context, filename string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, filename)
	s.deleted = append(s.deleted, filename)
	return nil
}

// Exists implements storage.StorageBackend.Exists
func (s *StorageBackend) Exists(ctx context.Context, filename string) (bool, error) {
	if s.ExistsError != nil {
		return false, s.ExistsError
	}
	_, ok := s.GetFileContent(filename)
	return ok, nil
}

// GetSize implements storage.StorageBackend.GetSize
func (s *StorageBackend) GetSize(ctx context.Context, filename string) (int64, error) {
	if s.GetSizeError != nil {
		return 0, s.GetSizeError
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[filename]
	if !ok {
		return 0, storage.NewStorageErrorWithMessage("GetSize", filename, storage.ErrNotFound, "file not found")
	}
	return int64(len(content)), nil
}

// GetAvailableSpace implements storage.StorageBackend.GetAvailableSpace
func (s *StorageBackend) GetAvailableSpace(ctx context.Context) (int64, error) {
	if s.GetAvailableSpaceError != nil {
		return 0, s.GetAvailableSpaceError
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableSpace, nil
}

// GetUsedSpace implements storage.StorageBackend.GetUsedSpace
func (s *StorageBackend) GetUsedSpace(ctx context.Context) (int64, error) {
	if s.GetUsedSpaceError != nil {
		return 0, s.GetUsedSpaceError
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, content := range s.files {
		total += int64(len(content))
	}
	return total, nil
}

func (s *StorageBackend) Type() string { return "mock" }
