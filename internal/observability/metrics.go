// Package observability exposes Prometheus metrics for the deploy
// service.
package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the deploy pipeline. A nil
// *Metrics is valid and records nothing, so library code can stay
// metric-agnostic.
type Metrics struct {
	deploysTotal   *prometheus.CounterVec
	deployDuration prometheus.Histogram
	bundleDuration prometheus.Histogram
	bundleSize     prometheus.Histogram
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		deploysTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jack_deploys_total",
				Help: "Total number of deploy requests by outcome",
			},
			[]string{"outcome"},
		),
		deployDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jack_deploy_duration_seconds",
				Help:    "End-to-end deploy duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		bundleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jack_bundle_duration_seconds",
				Help:    "Module graph bundling duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		bundleSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jack_bundle_size_bytes",
				Help:    "Size of produced bundles in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
	}
}

// RecordDeploy counts one finished deploy with its outcome ("ok" or the
// failure code) and total duration.
func (m *Metrics) RecordDeploy(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.deploysTotal.WithLabelValues(outcome).Inc()
	m.deployDuration.Observe(seconds)
}

// PrometheusHandler returns a Fiber handler serving the default
// Prometheus registry.
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RecordBundle observes one successful bundling step.
func (m *Metrics) RecordBundle(seconds float64, sizeBytes int) {
	if m == nil {
		return
	}
	m.bundleDuration.Observe(seconds)
	m.bundleSize.Observe(float64(sizeBytes))
}
