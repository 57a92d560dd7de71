package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradefoox/deckvault/internal/metrics"
)

// MetricsHandler registers the registry collector with reg and returns its
// exposition handler. Registerers that cannot gather fall back to the default gatherer.
func MetricsHandler(reg prometheus.Registerer, stats metrics.StatsSource, space metrics.SpaceSource) (http.Handler, error) {
	if err := reg.Register(metrics.NewRegistryCollector(stats, space)); err != nil {
		return nil, err
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(g, promhttp.HandlerOpts{})), nil
	}
	return promhttp.Handler(), nil
}
