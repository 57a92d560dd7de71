package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/metrics"
	"github.com/tradefoox/deckvault/internal/middleware"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/registry"
	"github.com/tradefoox/deckvault/internal/storage"
	"github.com/tradefoox/deckvault/internal/utils"
)

// ListFilesHandler returns every record in insertion order
func ListFilesHandler(store *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files := store.List()
		if files == nil {
			files = []models.FileRecord{}
		}
		sendJSON(w, http.StatusOK, files)
	}
}

// CreateFileHandler registers an external or local PDF record
func CreateFileHandler(store *registry.Store, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.FileURL = strings.TrimSpace(req.FileURL)
		if req.Name == "" || req.FileURL == "" {
			sendError(w, "File name and URL are required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		record, err := newRecord(req.Name)
		if err != nil {
			slog.Error("failed to generate record credentials", "error", err)
			metrics.RegistryMutationsTotal.WithLabelValues("create", "failure").Inc()
			sendError(w, "Failed to add file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		record.FileURL = req.FileURL
		record.IsLocalFile = req.IsLocalFile

		if err := store.Append(r.Context(), record); err != nil {
			metrics.RegistryMutationsTotal.WithLabelValues("create", "failure").Inc()
			writeRegistryError(w, err)
			return
		}
		metrics.RegistryMutationsTotal.WithLabelValues("create", "success").Inc()

		message := "External file added successfully"
		if record.IsLocalFile {
			message = "Local PDF added successfully"
		}

		slog.Info("file registered",
			"file_id", record.ID,
			"mode", string(record.Mode()),
			"token", utils.MaskToken(record.SecureToken),
			"client_ip", middleware.ClientIP(r),
		)

		sendJSON(w, http.StatusOK, models.CreateFileResponse{
			Success:     true,
			FileID:      record.ID,
			SecureToken: record.SecureToken,
			ShareURL:    buildShareURL(r, cfg, record.SecureToken, record.ID),
			Message:     message,
		})
	}
}

// BulkReplaceHandler swaps the whole registry for the supplied list
func BulkReplaceHandler(store *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Files []models.FileRecord `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metrics.RegistryMutationsTotal.WithLabelValues("bulk_replace", "failure").Inc()
			sendError(w, "Invalid files data", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		if err := store.ReplaceAll(r.Context(), req.Files); err != nil {
			metrics.RegistryMutationsTotal.WithLabelValues("bulk_replace", "failure").Inc()
			writeRegistryError(w, err)
			return
		}
		metrics.RegistryMutationsTotal.WithLabelValues("bulk_replace", "success").Inc()

		slog.Info("registry replaced",
			"files", len(req.Files),
			"client_ip", middleware.ClientIP(r),
		)

		sendJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "Files list updated"})
	}
}

// DeleteFileHandler removes a record and, for server uploads, its blob
func DeleteFileHandler(store *registry.Store, blobs storage.StorageBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		record, err := store.Get(id)
		if err != nil {
			metrics.RegistryMutationsTotal.WithLabelValues("delete", "failure").Inc()
			writeRegistryError(w, err)
			return
		}

		// external and local PDF content is never ours to delete
		if record.OwnsBlob() && blobs != nil {
			if err := blobs.Delete(r.Context(), record.ServerPath); err != nil {
				slog.Error("failed to delete uploaded blob",
					"file_id", id,
					"path", record.ServerPath,
					"error", err,
				)
				metrics.ErrorsTotal.WithLabelValues("blob_delete").Inc()
			}
		}

		if _, err := store.RemoveByID(r.Context(), id); err != nil {
			metrics.RegistryMutationsTotal.WithLabelValues("delete", "failure").Inc()
			writeRegistryError(w, err)
			return
		}
		metrics.RegistryMutationsTotal.WithLabelValues("delete", "success").Inc()

		slog.Info("file deleted",
			"file_id", id,
			"mode", string(record.Mode()),
			"client_ip", middleware.ClientIP(r),
		)

		sendJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "File deleted"})
	}
}

// newRecord issues an id and secure token for a new record
func newRecord(name string) (models.FileRecord, error) {
	id, err := utils.GenerateFileID()
	if err != nil {
		return models.FileRecord{}, err
	}
	token, err := utils.GenerateSecureToken(id)
	if err != nil {
		return models.FileRecord{}, err
	}
	return models.FileRecord{
		ID:          id,
		Name:        name,
		UploadDate:  time.Now().UTC(),
		SecureToken: token,
	}, nil
}
