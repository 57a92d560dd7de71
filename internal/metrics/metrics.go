package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// RegistryMutationsTotal counts admin writes by operation (create, bulk_replace, upload, delete) and status
	RegistryMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_registry_mutations_total",
			Help: "Total number of registry mutations",
		},
		[]string{"operation", "status"},
	)

	// UploadsTotal counts server uploads by status (success, failure, too_large)
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_uploads_total",
			Help: "Total number of server file uploads",
		},
		[]string{"status"},
	)

	// DownloadsTotal counts download endpoint outcomes by access mode and status
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_downloads_total",
			Help: "Total number of download attempts",
		},
		[]string{"mode", "status"},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)

	// RateLimitRejectionsTotal counts requests refused by the rate limiter by scope (download, admin)
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_rate_limit_rejections_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"scope"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of uploaded file sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "deckvault_upload_size_bytes",
			Help: "Distribution of uploaded file sizes in bytes",
			Buckets: []float64{
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				5242880,   // 5 MB
				10485760,  // 10 MB
				26214400,  // 25 MB
				52428800,  // 50 MB
				104857600, // 100 MB
			},
		},
	)

	// DownloadSizeBytes tracks distribution of streamed file sizes
	DownloadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "deckvault_download_size_bytes",
			Help: "Distribution of streamed file sizes in bytes",
			Buckets: []float64{
				10240,     // 10 KB
				102400,    // 100 KB
				1048576,   // 1 MB
				5242880,   // 5 MB
				10485760,  // 10 MB
				26214400,  // 25 MB
				52428800,  // 50 MB
				104857600, // 100 MB
			},
		},
	)
)

// Gauge metrics over registry state are defined in collector.go

// Health check metrics
var (
	// HealthStatus is a gauge representing current health status
	// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deckvault_health_status",
			Help: "Current health status (0=unhealthy, 1=degraded, 2=healthy)",
		},
	)

	// HealthCheckDuration tracks health check execution time by endpoint
	HealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckvault_health_check_duration_seconds",
			Help:    "Health check execution time in seconds",
			Buckets: []float64{.001, .002, .005, .01, .025, .05, .1},
		},
		[]string{"endpoint"},
	)

	// HealthChecksTotal counts total health check calls by endpoint and status
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckvault_health_checks_total",
			Help: "Total number of health checks performed",
		},
		[]string{"endpoint", "status"},
	)
)
