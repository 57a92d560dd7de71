package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/metrics"
	"github.com/tradefoox/deckvault/internal/middleware"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/registry"
	"github.com/tradefoox/deckvault/internal/storage"
	"github.com/tradefoox/deckvault/internal/utils"
)

const (
	// multipartOverhead leaves room for boundaries and the name field
	multipartOverhead = 1 << 20

	// multipartMemory is held in memory before parts spill to temp files
	multipartMemory = 10 << 20
)

// UploadHandler stores a file in blob storage and registers it as a server upload
func UploadHandler(store *registry.Store, blobs storage.StorageBackend, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tooLarge := fmt.Sprintf("File too large. Maximum size is %dMB.", cfg.MaxUploadSize/(1<<20))

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				metrics.UploadsTotal.WithLabelValues("too_large").Inc()
				sendError(w, tooLarge, "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge)
				return
			}
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Invalid form data", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "No file provided", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxUploadSize {
			metrics.UploadsTotal.WithLabelValues("too_large").Inc()
			sendError(w, tooLarge, "PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}

		name := strings.TrimSpace(r.FormValue("name"))
		if name == "" {
			name = utils.SanitizeFilename(header.Filename)
		}

		available, err := blobs.GetAvailableSpace(r.Context())
		if err != nil {
			slog.Warn("failed to check available space", "error", err)
		} else if available >= 0 && available < header.Size {
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Insufficient storage space", "INSUFFICIENT_STORAGE", http.StatusInsufficientStorage)
			return
		}

		mimeType, err := detectMimeType(file)
		if err != nil {
			slog.Error("failed to read upload", "error", err)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Upload failed", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		record, err := newRecord(name)
		if err != nil {
			slog.Error("failed to generate record credentials", "error", err)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Upload failed", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		storedName := uuid.New().String() + strings.ToLower(filepath.Ext(header.Filename))
		if _, _, err := blobs.Store(r.Context(), storedName, file, header.Size); err != nil {
			slog.Error("failed to store upload",
				"path", storedName,
				"size", header.Size,
				"error", err,
			)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendError(w, "Upload failed", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		record.Size = header.Size
		record.ServerPath = storedName
		record.MimeType = mimeType

		if err := store.Append(r.Context(), record); err != nil {
			if delErr := blobs.Delete(r.Context(), storedName); delErr != nil {
				slog.Error("failed to clean up orphaned upload", "path", storedName, "error", delErr)
			}
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			metrics.RegistryMutationsTotal.WithLabelValues("upload", "failure").Inc()
			writeRegistryError(w, err)
			return
		}

		metrics.UploadsTotal.WithLabelValues("success").Inc()
		metrics.UploadSizeBytes.Observe(float64(header.Size))
		metrics.RegistryMutationsTotal.WithLabelValues("upload", "success").Inc()

		slog.Info("file uploaded",
			"file_id", record.ID,
			"path", storedName,
			"size", header.Size,
			"mime_type", mimeType,
			"client_ip", middleware.ClientIP(r),
		)

		sendJSON(w, http.StatusOK, models.CreateFileResponse{
			Success:     true,
			FileID:      record.ID,
			SecureToken: record.SecureToken,
			ShareURL:    buildShareURL(r, cfg, record.SecureToken, record.ID),
			Size:        record.Size,
			Message:     "File uploaded successfully",
		})
	}
}

// detectMimeType sniffs the upload's content type and rewinds it
func detectMimeType(file multipart.File) (string, error) {
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mtype.String(), nil
}
