// Package metrics exposes Prometheus collectors for the mirror service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Leaf dispositions recorded by ObserveLeaf.
const (
	LeafEnqueued    = "enqueued"
	LeafDuplicate   = "duplicate"
	LeafOutOfWindow = "out_of_window"
)

// Metadata lookup outcomes recorded by ObserveMetadataLookup.
const (
	LookupRefreshed = "refreshed"
	LookupMissing   = "missing"
	LookupFailed    = "failed"
)

var (
	mirrorCyclesTotal          prometheus.Counter
	mirrorCycleDurationSeconds prometheus.Histogram
	mirrorCursorTimestamp      prometheus.Gauge
	catalogPagesTotal          prometheus.Counter
	catalogPageRetriesTotal    prometheus.Counter
	catalogLeavesTotal         *prometheus.CounterVec
	queueDepth                 prometheus.Gauge
	metadataLookupsTotal       *prometheus.CounterVec
	registrationPagesTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		mirrorCyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mirror_cycles_total",
				Help: "Total number of completed crawl cycles.",
			},
		)

		mirrorCycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mirror_cycle_duration_seconds",
				Help:    "Histogram of crawl cycle wall-clock durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		mirrorCursorTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mirror_cursor_timestamp_seconds",
				Help: "Current cursor position as a Unix timestamp.",
			},
		)

		catalogPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mirror_catalog_pages_total",
				Help: "Total number of catalog pages fetched successfully.",
			},
		)

		catalogPageRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mirror_catalog_page_retries_total",
				Help: "Total number of failed catalog page fetch attempts that were retried.",
			},
		)

		catalogLeavesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_catalog_leaves_total",
				Help: "Total catalog leaves observed, labeled by disposition.",
			},
			[]string{"disposition"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mirror_queue_depth",
				Help: "Number of package identifiers buffered in the work queue.",
			},
		)

		metadataLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_metadata_lookups_total",
				Help: "Total registration index lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		registrationPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mirror_registration_pages_total",
				Help: "Total registration pages fetched to warm the remote cache.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one completed crawl cycle.
func ObserveCycle(duration time.Duration) {
	mirrorCyclesTotal.Inc()
	mirrorCycleDurationSeconds.Observe(duration.Seconds())
}

// SetCursor records the cursor reached after a cycle.
func SetCursor(cursor time.Time) {
	mirrorCursorTimestamp.Set(float64(cursor.Unix()))
}

// ObserveCatalogPage records one successfully fetched catalog page.
func ObserveCatalogPage() {
	catalogPagesTotal.Inc()
}

// ObservePageRetry records one failed catalog page fetch attempt.
func ObservePageRetry() {
	catalogPageRetriesTotal.Inc()
}

// ObserveLeaf records one catalog leaf with its disposition.
func ObserveLeaf(disposition string) {
	catalogLeavesTotal.WithLabelValues(disposition).Inc()
}

// SetQueueDepth records the current queue occupancy.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// ObserveMetadataLookup records one registration index lookup.
func ObserveMetadataLookup(outcome string) {
	metadataLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRegistrationPage records one registration page fetch.
func ObserveRegistrationPage() {
	registrationPagesTotal.Inc()
}
