// Package metrics collects Prometheus counters for catalog requests and
// downloads. A fetch run is short-lived, so instead of serving /metrics the
// registry is written once to a textfile for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	apiRequests      *prometheus.CounterVec
	downloads        *prometheus.CounterVec
	downloadBytes    prometheus.Counter
	downloadDuration prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	batchTargets     *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_api_requests_total",
			Help: "Catalog API requests by endpoint and HTTP status code (0 for transport failures).",
		}, []string{"endpoint", "code"}),
		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_downloads_total",
			Help: "Mod downloads by result.",
		}, []string{"result"}),
		downloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "cf_download_bytes_total",
			Help: "Bytes written to finalized mod files.",
		}),
		downloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cf_download_duration_seconds",
			Help:    "Duration of a single mod download from resolution to ledger upsert.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_mod_cache_lookups_total",
			Help: "Mod detail cache lookups by result (hit or miss).",
		}, []string{"result"}),
		batchTargets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cf_batch_targets_total",
			Help: "Batch targets by outcome (succeeded or failed).",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveAPIRequest(endpoint string, code int) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

// ObserveDownload records one finished download attempt.
func (m *Metrics) ObserveDownload(result string, bytes int64, seconds float64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.downloadBytes.Add(float64(bytes))
	}
	m.downloadDuration.Observe(seconds)
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) ObserveBatchTarget(succeeded bool) {
	if m == nil {
		return
	}
	if succeeded {
		m.batchTargets.WithLabelValues("succeeded").Inc()
		return
	}
	m.batchTargets.WithLabelValues("failed").Inc()
}

// WriteTextfile writes the registry in the text exposition format. The write
// goes through a temp file and rename, so a scraper never sees a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
