package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/storage"
	"github.com/tradefoox/deckvault/internal/utils"
)

// Content types reported by Metadata
const (
	TypePDF      = "application/pdf"
	TypeExternal = "external"
	TypeOctet    = "application/octet-stream"
)

// Access is a resolved download. Exactly one of RedirectURL or Content is set.
// The caller must close Content.
type Access struct {
	Record      models.FileRecord // state after the access was counted
	Mode        models.AccessMode
	RedirectURL string
	Content     io.ReadCloser
	ContentType string
	Disposition string
	Size        int64
}

// Resolver authorizes per-record bearer tokens and opens record content.
type Resolver struct {
	store  *Store
	blobs  storage.StorageBackend // server uploads
	static storage.StorageBackend // public site root for local PDFs
	now    func() time.Time
}

// NewResolver wires a resolver over the store and both storage roots
func NewResolver(store *Store, blobs, static storage.StorageBackend) *Resolver {
	return &Resolver{
		store:  store,
		blobs:  blobs,
		static: static,
		now:    time.Now,
	}
}

// Authorize looks up id and checks the presented Authorization header
// against the record's secure token. Lookup happens first, so an unknown id
// is 404 regardless of credentials.
func (r *Resolver) Authorize(id, authorization string) (models.FileRecord, error) {
	record, err := r.store.Get(id)
	if err != nil {
		return models.FileRecord{}, err
	}

	token, ok := utils.ExtractBearerToken(authorization)
	if !ok {
		return models.FileRecord{}, &UnauthorizedError{Message: "Invalid authorization"}
	}

	if !utils.ValidateSecureToken(token, record.SecureToken) {
		return models.FileRecord{}, &UnauthorizedError{Message: "Invalid token"}
	}

	return record, nil
}

// Metadata describes a record without counting an access
func (r *Resolver) Metadata(record models.FileRecord) models.FileMetadata {
	meta := models.FileMetadata{
		Name:        record.Name,
		ServerPath:  record.ServerPath,
		FileURL:     record.FileURL,
		IsLocalFile: record.IsLocalFile,
		Size:        record.Size,
	}

	// the local flag decides the type even when the record has no fileUrl
	switch {
	case record.IsLocalFile:
		meta.Type = TypePDF
	case record.FileURL != "":
		meta.Type = TypeExternal
	default:
		meta.Type = TypeOctet
		if record.MimeType != "" {
			meta.Type = record.MimeType
		}
	}
	return meta
}

// Open resolves the record's content and counts the access. The count is
// recorded once the content is known to exist, before any bytes are sent.
func (r *Resolver) Open(ctx context.Context, record models.FileRecord) (*Access, error) {
	access := &Access{Mode: record.Mode()}

	switch access.Mode {
	case models.ModeExternal:
		access.RedirectURL = record.FileURL

	case models.ModeLocalPDF:
		content, size, err := r.openBlob(ctx, r.static, localPath(record.FileURL), "File not found on server")
		if err != nil {
			return nil, err
		}
		access.Content = content
		access.Size = size
		access.ContentType = TypePDF
		access.Disposition = utils.ContentDisposition("inline", record.Name)

	case models.ModeServerUpload:
		if record.ServerPath == "" {
			return nil, &NotFoundError{Message: "File not available for download"}
		}
		content, size, err := r.openBlob(ctx, r.blobs, record.ServerPath, "File not found on server")
		if err != nil {
			return nil, err
		}
		access.Content = content
		access.Size = size
		access.ContentType = TypeOctet
		if record.MimeType != "" {
			access.ContentType = record.MimeType
		}
		access.Disposition = utils.ContentDisposition("attachment", record.Name)
	}

	updated, err := r.store.RecordAccess(ctx, record.ID, r.now())
	if err != nil {
		// deleted between Authorize and Open
		if access.Content != nil {
			access.Content.Close()
		}
		return nil, err
	}
	access.Record = updated

	slog.Info("file accessed",
		"file_id", record.ID,
		"mode", string(access.Mode),
		"access_count", updated.AccessCount,
	)

	return access, nil
}

func (r *Resolver) openBlob(ctx context.Context, backend storage.StorageBackend, name, missing string) (io.ReadCloser, int64, error) {
	if backend == nil || name == "" {
		return nil, 0, &NotFoundError{Message: missing}
	}

	size, err := backend.GetSize(ctx, name)
	if err != nil {
		return nil, 0, blobError(err, name, missing)
	}

	content, err := backend.Retrieve(ctx, name)
	if err != nil {
		return nil, 0, blobError(err, name, missing)
	}
	return content, size, nil
}

// blobError treats missing objects and rejected paths as 404; anything else is a 500.
func blobError(err error, name, missing string) error {
	if storage.IsNotFound(err) || errors.Is(err, storage.ErrInvalidPath) {
		return &NotFoundError{Message: missing}
	}
	slog.Error("failed to open file content", "path", name, "error", err)
	return &InternalError{Message: "Download failed", Err: err}
}

// localPath maps a site-relative URL like "/decks/q3.pdf" to a static-root path
func localPath(fileURL string) string {
	p := fileURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return strings.TrimLeft(p, "/")
}
