package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradefoox/deckvault/internal/models"
)

// StatsSource reports current registry counts
type StatsSource interface {
	Stats() models.RegistryStats
}

// SpaceSource reports blob storage usage
type SpaceSource interface {
	GetUsedSpace(ctx context.Context) (int64, error)
}

// RegistryCollector collects registry and storage gauges on each scrape
type RegistryCollector struct {
	stats StatsSource
	space SpaceSource // optional

	filesCount       *prometheus.Desc
	accessesCount    *prometheus.Desc
	storageUsedBytes *prometheus.Desc
}

// NewRegistryCollector creates a new collector. space may be nil.
func NewRegistryCollector(stats StatsSource, space SpaceSource) *RegistryCollector {
	return &RegistryCollector{
		stats: stats,
		space: space,
		filesCount: prometheus.NewDesc(
			"deckvault_registry_files",
			"Number of registered files by access mode",
			[]string{"mode"}, nil,
		),
		accessesCount: prometheus.NewDesc(
			"deckvault_registry_accesses",
			"Sum of accessCount over all registered files",
			nil, nil,
		),
		storageUsedBytes: prometheus.NewDesc(
			"deckvault_storage_used_bytes",
			"Bytes used by server-uploaded files",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *RegistryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.filesCount
	ch <- c.accessesCount
	if c.space != nil {
		ch <- c.storageUsedBytes
	}
}

// Collect reads the current registry state and sends it to Prometheus
func (c *RegistryCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()

	ch <- prometheus.MustNewConstMetric(c.filesCount, prometheus.GaugeValue, float64(s.External), string(models.ModeExternal))
	ch <- prometheus.MustNewConstMetric(c.filesCount, prometheus.GaugeValue, float64(s.LocalPDF), string(models.ModeLocalPDF))
	ch <- prometheus.MustNewConstMetric(c.filesCount, prometheus.GaugeValue, float64(s.ServerUpload), string(models.ModeServerUpload))
	ch <- prometheus.MustNewConstMetric(c.accessesCount, prometheus.GaugeValue, float64(s.TotalAccesses))

	if c.space == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	used, err := c.space.GetUsedSpace(ctx)
	if err != nil {
		slog.Error("failed to query storage usage for metrics", "error", err)
		// Send zero to avoid scrape failure
		used = 0
	}
	ch <- prometheus.MustNewConstMetric(c.storageUsedBytes, prometheus.GaugeValue, float64(used))
}
