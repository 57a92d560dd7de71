package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tradefoox/deckvault/internal/config"
	"github.com/tradefoox/deckvault/internal/metrics"
	"github.com/tradefoox/deckvault/internal/models"
	"github.com/tradefoox/deckvault/internal/registry"
	"github.com/tradefoox/deckvault/internal/storage"
	"github.com/tradefoox/deckvault/internal/utils"
)

const (
	// Health status thresholds
	criticalDiskFreeBytes   = 500 * 1024 * 1024      // 500MB
	warningDiskFreeBytes    = 2 * 1024 * 1024 * 1024 // 2GB
	criticalDiskUsedPercent = 98.0
	warningDiskUsedPercent  = 90.0

	// Health check timeout for external dependencies
	healthCheckTimeout = 5 * time.Second
)

// healthChecker is implemented by storage backends that can probe their remote
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// setHealthCacheHeaders sets cache-control headers so probes are never cached
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthHandler reports registry counts, persistence reachability and disk headroom
func HealthHandler(store *registry.Store, blobs storage.StorageBackend, cfg *config.Config, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("health").Observe(time.Since(start).Seconds())
		}()

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		response, status, httpCode := getHealth(ctx, store, blobs, cfg, startTime)

		metrics.HealthChecksTotal.WithLabelValues("health", status).Inc()
		updateHealthStatusGauge(status)

		setHealthCacheHeaders(w)
		sendJSON(w, httpCode, response)
	}
}

// HealthLivenessHandler answers as long as the process can serve requests
func HealthLivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.HealthChecksTotal.WithLabelValues("live", "healthy").Inc()

		setHealthCacheHeaders(w)
		sendJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// HealthReadinessHandler reports whether the persistence and blob backends are reachable
func HealthReadinessHandler(store *registry.Store, blobs storage.StorageBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("ready").Observe(time.Since(start).Seconds())
		}()

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		setHealthCacheHeaders(w)

		if err := checkBackends(ctx, store, blobs); err != nil {
			slog.Error("readiness check failed", "error", err)
			metrics.HealthChecksTotal.WithLabelValues("ready", "unhealthy").Inc()
			sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}

		metrics.HealthChecksTotal.WithLabelValues("ready", "healthy").Inc()
		sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func checkBackends(ctx context.Context, store *registry.Store, blobs storage.StorageBackend) error {
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("%s store unreachable: %w", store.Backend(), err)
	}
	if hc, ok := blobs.(healthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s storage unreachable: %w", blobs.Type(), err)
		}
	}
	return nil
}

// getHealth performs all health checks and returns response, status, and HTTP code
func getHealth(ctx context.Context, store *registry.Store, blobs storage.StorageBackend, cfg *config.Config, startTime time.Time) (*models.HealthResponse, string, int) {
	stats := store.Stats()

	response := &models.HealthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC(),
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		FilesCount:     stats.Files,
		ExternalFiles:  stats.External,
		LocalFiles:     stats.LocalPDF,
		ServerFiles:    stats.ServerUpload,
		TotalAccesses:  stats.TotalAccesses,
		StoreBackend:   store.Backend(),
		StorageBackend: blobs.Type(),
	}

	var details []string

	if err := checkBackends(ctx, store, blobs); err != nil {
		slog.Error("health check failed", "error", err)
		response.Status = "unhealthy"
		response.Errors = append(details, err.Error())
		return response, "unhealthy", http.StatusServiceUnavailable
	}

	// disk headroom only matters when uploads land on local disk
	if cfg.StorageBackend == config.StorageBackendFilesystem {
		diskInfo, err := utils.GetDiskSpace(cfg.UploadDir)
		if err != nil {
			slog.Error("failed to get disk space", "error", err)
			response.Status = "unhealthy"
			response.Errors = append(details, "disk space check failed")
			return response, "unhealthy", http.StatusServiceUnavailable
		}

		response.DiskTotalBytes = diskInfo.TotalBytes
		response.DiskFreeBytes = diskInfo.FreeBytes
		response.DiskAvailableBytes = diskInfo.AvailableBytes
		response.DiskUsedPercent = diskInfo.UsedPercent

		response.Status = determineHealthStatus(diskInfo, &details)
	}

	if len(details) > 0 {
		response.Errors = details
	}

	httpCode := http.StatusOK
	if response.Status == "unhealthy" {
		httpCode = http.StatusServiceUnavailable
	}

	return response, response.Status, httpCode
}

// determineHealthStatus analyzes disk metrics and returns status with details
func determineHealthStatus(diskInfo *utils.DiskSpaceInfo, details *[]string) string {
	if diskInfo.AvailableBytes < criticalDiskFreeBytes {
		*details = append(*details, fmt.Sprintf("critical: disk space < 500MB (%s remaining)",
			utils.FormatBytes(diskInfo.AvailableBytes)))
		return "unhealthy"
	}

	if diskInfo.UsedPercent > criticalDiskUsedPercent {
		*details = append(*details, fmt.Sprintf("critical: disk usage > 98%% (%.1f%% used)",
			diskInfo.UsedPercent))
		return "unhealthy"
	}

	degraded := false

	if diskInfo.AvailableBytes < warningDiskFreeBytes {
		*details = append(*details, fmt.Sprintf("warning: disk space low (%s remaining)",
			utils.FormatBytes(diskInfo.AvailableBytes)))
		degraded = true
	}

	if diskInfo.UsedPercent > warningDiskUsedPercent {
		*details = append(*details, fmt.Sprintf("warning: disk usage high (%.1f%% used)",
			diskInfo.UsedPercent))
		degraded = true
	}

	if degraded {
		return "degraded"
	}

	return "healthy"
}

// updateHealthStatusGauge updates the Prometheus gauge based on status string
func updateHealthStatusGauge(status string) {
	switch status {
	case "healthy":
		metrics.HealthStatus.Set(2)
	case "degraded":
		metrics.HealthStatus.Set(1)
	default:
		metrics.HealthStatus.Set(0)
	}
}
