package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/repository"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "deckvault.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoad_Empty(t *testing.T) {
	repo := setupTestRepo(t)

	records, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Load() = %v, want empty non-nil slice", records)
	}
}

func TestSaveLoad_PreservesOrderAndFields(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	uploaded := time.Date(2024, 5, 2, 8, 30, 0, 123000000, time.UTC)
	accessed := uploaded.Add(time.Hour)
	want := []models.FileRecord{
		{ID: "pitch_c", Name: "Third alphabetically", UploadDate: uploaded, SecureToken: "t1", FileURL: "/decks/c.pdf", IsLocalFile: true},
		{ID: "pitch_a", Name: "First alphabetically", Size: 2048, UploadDate: uploaded, AccessCount: 4, LastAccessed: accessed,
			SecureToken: "t2", ServerPath: "a.pdf", MimeType: "application/pdf"},
	}

	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(got))
	}
	if got[0].ID != "pitch_c" || got[1].ID != "pitch_a" {
		t.Errorf("order = [%s %s], want [pitch_c pitch_a]", got[0].ID, got[1].ID)
	}
	if !got[0].IsLocalFile || got[0].FileURL != "/decks/c.pdf" {
		t.Errorf("record 0 = %+v", got[0])
	}
	if !got[0].LastAccessed.IsZero() {
		t.Errorf("record 0 LastAccessed = %v, want zero", got[0].LastAccessed)
	}
	if got[1].AccessCount != 4 || got[1].Size != 2048 || got[1].MimeType != "application/pdf" {
		t.Errorf("record 1 = %+v", got[1])
	}
	if !got[1].UploadDate.Equal(uploaded) || !got[1].LastAccessed.Equal(accessed) {
		t.Errorf("record 1 times = %v / %v", got[1].UploadDate, got[1].LastAccessed)
	}
}

func TestSave_ReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	if err := repo.Save(ctx, []models.FileRecord{{ID: "pitch_1", Name: "a"}, {ID: "pitch_2", Name: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, []models.FileRecord{{ID: "pitch_2", Name: "b"}}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "pitch_2" {
		t.Errorf("Load() = %+v, want only pitch_2", got)
	}
}

func TestSave_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	if err := repo.Save(ctx, []models.FileRecord{{ID: "pitch_keep", Name: "keep"}}); err != nil {
		t.Fatal(err)
	}

	err := repo.Save(ctx, []models.FileRecord{{ID: "dup", Name: "a"}, {ID: "dup", Name: "b"}})
	if err == nil {
		t.Fatal("Save() with duplicate ids should fail")
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "pitch_keep" {
		t.Errorf("failed Save() changed the snapshot: %+v", got)
	}
}

func TestSaveLoad_KeepsSuppliedShape(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	var rec models.FileRecord
	if err := json.Unmarshal([]byte(`{"id":"a","name":"A","createdAt":"2024-01-01T00:00:00Z"}`), &rec); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, []models.FileRecord{rec, {ID: "pitch_b", Name: "B"}}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(got))
	}
	if got[1].Supplied != nil {
		t.Errorf("server record Supplied = %v, want nil", got[1].Supplied)
	}

	out, err := json.Marshal(got[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"createdAt":"2024-01-01T00:00:00Z","id":"a","name":"A"}` {
		t.Errorf("reloaded record = %s", out)
	}
}

func TestNew_NilDatabase(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, repository.ErrNilDatabase) {
		t.Errorf("New(nil) error = %v, want ErrNilDatabase", err)
	}
}

func TestPingAndType(t *testing.T) {
	repo := setupTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
	if repo.Type() != repository.BackendSQLite {
		t.Errorf("Type() = %q", repo.Type())
	}
}

func TestIsSQLiteBusyError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: retry"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := isSQLiteBusyError(tt.err); got != tt.want {
			t.Errorf("isSQLiteBusyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
