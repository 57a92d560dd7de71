package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/tradefoox/deckvault/internal/auth"
	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/middleware"
	"github.com/tradefoox/deckvault/internal/registry"
	"github.com/tradefoox/deckvault/internal/static"
	"github.com/tradefoox/deckvault/internal/storage"
)

// Deps are the services the HTTP layer is built on
type Deps struct {
	Config        *config.Config
	Store         *registry.Store
	Resolver      *registry.Resolver
	Blobs         storage.StorageBackend
	Authenticator auth.Authenticator
	Metrics       http.Handler // optional
	StartTime     time.Time
}

// RegisterRoutes mounts the API under /api and again without the prefix,
// plus health, metrics and the static site root.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	admin := middleware.AdminAuth(d.Authenticator)

	routes := []struct {
		pattern string
		handler http.Handler
	}{
		{"GET /files", ListFilesHandler(d.Store)},
		{"POST /files", admin(CreateFileHandler(d.Store, d.Config))},
		{"POST /files/bulk", admin(BulkReplaceHandler(d.Store))},
		{"POST /pitch-deck/files", admin(BulkReplaceHandler(d.Store))},
		{"POST /files/upload", admin(UploadHandler(d.Store, d.Blobs, d.Config))},
		{"DELETE /files/{id}", admin(DeleteFileHandler(d.Store, d.Blobs))},
		{"GET /download/{id}", MetadataHandler(d.Resolver)},
		{"GET /download/{id}/download", DownloadHandler(d.Resolver)},
	}

	for _, rt := range routes {
		method, path, _ := strings.Cut(rt.pattern, " ")
		mux.Handle(method+" /api"+path, rt.handler)
		mux.Handle(rt.pattern, rt.handler)
	}

	mux.Handle("GET /health", HealthHandler(d.Store, d.Blobs, d.Config, d.StartTime))
	mux.Handle("GET /health/live", HealthLivenessHandler())
	mux.Handle("GET /health/ready", HealthReadinessHandler(d.Store, d.Blobs))

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	if d.Config.StaticDir != "" {
		mux.Handle("GET /", static.Handler(d.Config.StaticDir))
	}
}
