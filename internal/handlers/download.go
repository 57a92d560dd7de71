package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tradefoox/deckvault/internal/metrics"
	"github.com/tradefoox/deckvault/internal/middleware"
	"github.com/tradefoox/deckvault/internal/registry"
)

// MetadataHandler describes a record to a token holder without counting an access
func MetadataHandler(resolver *registry.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := resolver.Authorize(r.PathValue("id"), r.Header.Get("Authorization"))
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		w.Header().Set("Cache-Control", "private, no-store")
		sendJSON(w, http.StatusOK, resolver.Metadata(record))
	}
}

// DownloadHandler redirects to external content or streams local and uploaded files
func DownloadHandler(resolver *registry.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		record, err := resolver.Authorize(id, r.Header.Get("Authorization"))
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues("unknown", "denied").Inc()
			writeRegistryError(w, err)
			return
		}

		mode := string(record.Mode())

		access, err := resolver.Open(r.Context(), record)
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues(mode, "failure").Inc()
			writeRegistryError(w, err)
			return
		}

		if access.RedirectURL != "" {
			metrics.DownloadsTotal.WithLabelValues(mode, "success").Inc()
			http.Redirect(w, r, access.RedirectURL, http.StatusFound)
			return
		}
		defer access.Content.Close()

		w.Header().Set("Content-Type", access.ContentType)
		w.Header().Set("Content-Disposition", access.Disposition)
		w.Header().Set("Cache-Control", "private, no-store")
		if access.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(access.Size, 10))
		}
		w.WriteHeader(http.StatusOK)

		written, err := io.Copy(w, access.Content)
		metrics.DownloadSizeBytes.Observe(float64(written))
		if err != nil {
			// the access is already counted; the client went away mid-stream
			slog.Warn("download interrupted",
				"file_id", id,
				"bytes_sent", written,
				"client_ip", middleware.ClientIP(r),
				"error", err,
			)
			metrics.DownloadsTotal.WithLabelValues(mode, "interrupted").Inc()
			return
		}

		metrics.DownloadsTotal.WithLabelValues(mode, "success").Inc()
	}
}
