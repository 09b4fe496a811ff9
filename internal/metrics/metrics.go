// Package metrics exposes Prometheus counters for the bridge endpoints and cart restores.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ligvideo"

// Metrics records HTTP traffic, catalog exports and per-line restore outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	lines    *prometheus.CounterVec
	exports  *prometheus.CounterVec
	entries  prometheus.Histogram
}

// New registers the bridge metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"handler"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_lines_total",
		Help:      "Cart restore lines by outcome.",
	}, []string{"outcome"})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_exports_total",
		Help:      "Catalog exports by result.",
	}, []string{"result"})
	entries := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "catalog_export_entries",
		Help:      "Number of entries per sealed catalog export.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
	reg.MustRegister(requests, latency, lines, exports, entries)
	return &Metrics{
		requests: requests,
		latency:  latency,
		lines:    lines,
		exports:  exports,
		entries:  entries,
	}
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(handler string, status int, d time.Duration) {
	if m == nil {
		return
	}
	handler = normalizeLabel(handler)
	m.requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(handler).Observe(d.Seconds())
}

// RecordLine counts one cart restore line outcome.
func (m *Metrics) RecordLine(outcome string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RecordExport counts a catalog export. Entries are only observed for sealed exports.
func (m *Metrics) RecordExport(result string, entries int) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(normalizeLabel(result)).Inc()
	if result == "sealed" {
		m.entries.Observe(float64(entries))
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
