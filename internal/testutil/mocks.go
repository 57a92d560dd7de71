package testutil

import (
	"context"
	"testing"

	"github.com/tradefoox/deckvault/internal/auth"
	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/models"
	repoMock "github.com/tradefoox/deckvault/internal/repository/mock"
	"github.com/tradefoox/deckvault/internal/registry"
	storageMock "github.com/tradefoox/deckvault/internal/storage/mock"
)

// MockTestEnv wires a registry over in-memory persistence and storage.
type MockTestEnv struct {
	Config        *config.Config
	Repo          *repoMock.RecordRepository
	Blobs         *storageMock.StorageBackend
	Static        *storageMock.StorageBackend
	Store         *registry.Store
	Resolver      *registry.Resolver
	Authenticator auth.Authenticator
}

// NewMockTestEnv creates a mock environment seeded with records.
// The sample upload blob and local PDF are present in storage.
func NewMockTestEnv(t *testing.T, records ...models.FileRecord) *MockTestEnv {
	t.Helper()

	cfg := SetupTestConfig(t)
	repo := repoMock.NewRecordRepository(records...)

	store := registry.NewStore(repo)
	store.Load(context.Background())

	blobs := storageMock.NewStorageBackend()
	blobs.AddFile(SampleUploadRecord().ServerPath, SamplePDF)

	static := storageMock.NewStorageBackend()
	static.AddFile("decks/q3.pdf", SamplePDF)

	return &MockTestEnv{
		Config:        cfg,
		Repo:          repo,
		Blobs:         blobs,
		Static:        static,
		Store:         store,
		Resolver:      registry.NewResolver(store, blobs, static),
		Authenticator: auth.NewStatic(TestAdminToken),
	}
}
