package registry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/storage"
	storagemock "github.com/tradefoox/deckvault/internal/storage/mock"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type resolverFixture struct {
	store    *Store
	blobs    *storagemock.StorageBackend
	static   *storagemock.StorageBackend
	resolver *Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	store, _ := newLoadedStore(t, sampleRecords()...)

	blobs := storagemock.NewStorageBackend()
	blobs.AddFile("c.pdf", []byte("uploaded deck"))

	static := storagemock.NewStorageBackend()
	static.AddFile("decks/b.pdf", []byte("%PDF-1.4 local"))

	r := NewResolver(store, blobs, static)
	r.now = func() time.Time { return fixedNow }

	return &resolverFixture{store: store, blobs: blobs, static: static, resolver: r}
}

func TestResolver_Authorize(t *testing.T) {
	f := newResolverFixture(t)

	tests := []struct {
		name    string
		id      string
		header  string
		wantErr error
		wantMsg string
	}{
		{"valid", "pitch_1", "Bearer tok1", nil, ""},
		{"unknown id wins over bad header", "nope", "", ErrNotFound, "File not found"},
		{"unknown id with valid token", "nope", "Bearer tok1", ErrNotFound, "File not found"},
		{"missing header", "pitch_1", "", ErrUnauthorized, "Invalid authorization"},
		{"wrong scheme", "pitch_1", "Basic tok1", ErrUnauthorized, "Invalid authorization"},
		{"empty bearer", "pitch_1", "Bearer ", ErrUnauthorized, "Invalid authorization"},
		{"wrong token", "pitch_1", "Bearer tok2", ErrUnauthorized, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := f.resolver.Authorize(tt.id, tt.header)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Authorize() error = %v", err)
				}
				if rec.ID != tt.id {
					t.Errorf("Authorize() record id = %q, want %q", rec.ID, tt.id)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authorize() error = %v, want %v", err, tt.wantErr)
			}
			if msg := PublicMessage(err); msg != tt.wantMsg {
				t.Errorf("PublicMessage() = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestResolver_MetadataDoesNotCount(t *testing.T) {
	f := newResolverFixture(t)

	tests := []struct {
		id       string
		wantType string
	}{
		{"pitch_1", TypeExternal},
		{"pitch_2", TypePDF},
		{"pitch_3", TypeOctet},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec, _ := f.store.Get(tt.id)
			meta := f.resolver.Metadata(rec)
			if meta.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", meta.Type, tt.wantType)
			}
			if meta.Name != rec.Name || meta.Size != rec.Size {
				t.Errorf("Metadata() = %+v does not describe %+v", meta, rec)
			}
			after, _ := f.store.Get(tt.id)
			if after.AccessCount != rec.AccessCount {
				t.Error("Metadata() changed accessCount")
			}
		})
	}
}

func TestResolver_MetadataUsesMimeType(t *testing.T) {
	f := newResolverFixture(t)
	meta := f.resolver.Metadata(models.FileRecord{ID: "x", ServerPath: "x.png", MimeType: "image/png"})
	if meta.Type != "image/png" {
		t.Errorf("Type = %q, want image/png", meta.Type)
	}
}

func TestResolver_MetadataLocalFlagWithoutURL(t *testing.T) {
	f := newResolverFixture(t)
	meta := f.resolver.Metadata(models.FileRecord{ID: "x", IsLocalFile: true, MimeType: "image/png"})
	if meta.Type != TypePDF {
		t.Errorf("Type = %q, want %q", meta.Type, TypePDF)
	}
}

func TestResolver_OpenExternal(t *testing.T) {
	f := newResolverFixture(t)
	rec, _ := f.store.Get("pitch_1")

	access, err := f.resolver.Open(context.Background(), rec)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if access.Mode != models.ModeExternal || access.RedirectURL != "https://ex.com/a.pdf" {
		t.Errorf("Open() = %+v, want redirect to https://ex.com/a.pdf", access)
	}
	if access.Content != nil {
		t.Error("external access should not carry content")
	}
	if access.Record.AccessCount != 1 || !access.Record.LastAccessed.Equal(fixedNow) {
		t.Errorf("access not counted: %+v", access.Record)
	}
}

func TestResolver_OpenLocalPDF(t *testing.T) {
	f := newResolverFixture(t)
	rec, _ := f.store.Get("pitch_2")

	access, err := f.resolver.Open(context.Background(), rec)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer access.Content.Close()

	body, _ := io.ReadAll(access.Content)
	if string(body) != "%PDF-1.4 local" {
		t.Errorf("content = %q", body)
	}
	if access.ContentType != TypePDF {
		t.Errorf("ContentType = %q, want %q", access.ContentType, TypePDF)
	}
	if access.Disposition != `inline; filename=Local` {
		t.Errorf("Disposition = %q", access.Disposition)
	}
	if access.Size != int64(len(body)) {
		t.Errorf("Size = %d, want %d", access.Size, len(body))
	}

	after, _ := f.store.Get("pitch_2")
	if after.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", after.AccessCount)
	}
}

func TestResolver_OpenServerUpload(t *testing.T) {
	f := newResolverFixture(t)
	rec, _ := f.store.Get("pitch_3")

	access, err := f.resolver.Open(context.Background(), rec)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer access.Content.Close()

	body, _ := io.ReadAll(access.Content)
	if string(body) != "uploaded deck" {
		t.Errorf("content = %q", body)
	}
	if access.ContentType != TypeOctet {
		t.Errorf("ContentType = %q, want %q", access.ContentType, TypeOctet)
	}
	if access.Disposition != `attachment; filename=Upload` {
		t.Errorf("Disposition = %q", access.Disposition)
	}
	if access.Record.AccessCount != 6 {
		t.Errorf("AccessCount = %d, want 6", access.Record.AccessCount)
	}
}

func TestResolver_OpenFailuresDoNotCount(t *testing.T) {
	tests := []struct {
		name    string
		record  models.FileRecord
		setup   func(f *resolverFixture)
		wantErr error
		wantMsg string
	}{
		{
			name:    "local pdf missing from static root",
			record:  models.FileRecord{ID: "pitch_2", Name: "Local", FileURL: "/decks/gone.pdf", IsLocalFile: true},
			wantErr: ErrNotFound,
			wantMsg: "File not found on server",
		},
		{
			name:    "local pdf traversal",
			record:  models.FileRecord{ID: "pitch_2", Name: "Local", FileURL: "/../etc/passwd", IsLocalFile: true},
			setup:   func(f *resolverFixture) { f.static.GetSizeError = storage.NewStorageError("GetSize", "../etc/passwd", storage.ErrInvalidPath) },
			wantErr: ErrNotFound,
			wantMsg: "File not found on server",
		},
		{
			name:    "upload without server path",
			record:  models.FileRecord{ID: "pitch_3", Name: "Upload"},
			wantErr: ErrNotFound,
			wantMsg: "File not available for download",
		},
		{
			name:    "upload blob missing",
			record:  models.FileRecord{ID: "pitch_3", Name: "Upload", ServerPath: "missing.pdf"},
			wantErr: ErrNotFound,
			wantMsg: "File not found on server",
		},
		{
			name:    "backend failure",
			record:  models.FileRecord{ID: "pitch_3", Name: "Upload", ServerPath: "c.pdf"},
			setup:   func(f *resolverFixture) { f.blobs.RetrieveError = errors.New("connection reset") },
			wantErr: ErrInternal,
			wantMsg: "Download failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			before, _ := f.store.Get(tt.record.ID)

			access, err := f.resolver.Open(context.Background(), tt.record)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
			if access != nil {
				t.Error("Open() returned access alongside an error")
			}
			if msg := PublicMessage(err); msg != tt.wantMsg {
				t.Errorf("PublicMessage() = %q, want %q", msg, tt.wantMsg)
			}

			after, _ := f.store.Get(tt.record.ID)
			if after.AccessCount != before.AccessCount {
				t.Errorf("AccessCount changed from %d to %d on failure", before.AccessCount, after.AccessCount)
			}
		})
	}
}

func TestResolver_OpenDeletedRecordClosesContent(t *testing.T) {
	f := newResolverFixture(t)
	rec, _ := f.store.Get("pitch_3")

	closed := false
	f.blobs.OnRetrieve = func(ctx context.Context, name string) (io.ReadCloser, error) {
		return &trackingCloser{Reader: nil, closed: &closed}, nil
	}

	if _, err := f.store.RemoveByID(context.Background(), "pitch_3"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.resolver.Open(context.Background(), rec); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
	if !closed {
		t.Error("content was not closed after the record disappeared")
	}
}

type trackingCloser struct {
	io.Reader
	closed *bool
}

func (c *trackingCloser) Close() error {
	*c.closed = true
	return nil
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/decks/q3.pdf", "decks/q3.pdf"},
		{"decks/q3.pdf", "decks/q3.pdf"},
		{"/decks/q3.pdf?v=2", "decks/q3.pdf"},
		{"/decks/q3.pdf#page=2", "decks/q3.pdf"},
		{"/decks/Q3%20Deck.pdf", "decks/Q3 Deck.pdf"},
		{"//double.pdf", "double.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := localPath(tt.in); got != tt.want {
				t.Errorf("localPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
