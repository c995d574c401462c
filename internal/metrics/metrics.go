// Package metrics exposes Prometheus collectors for the fetch and refresh paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ESIRequests counts upstream responses by status code ("error" for transport failures).
	ESIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubcompare",
		Subsystem: "esi",
		Name:      "requests_total",
		Help:      "Upstream requests by HTTP status.",
	}, []string{"status"})

	// ESIRetries counts retry decisions by cause.
	ESIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubcompare",
		Subsystem: "esi",
		Name:      "retries_total",
		Help:      "Upstream retries by cause (transport, server, rate_limit).",
	}, []string{"cause"})

	// ESILatency observes request round-trip time.
	ESILatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hubcompare",
		Subsystem: "esi",
		Name:      "request_seconds",
		Help:      "Upstream request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// PageCache counts page cache outcomes (hit_304, refetch, fetched, oversize, error).
	PageCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubcompare",
		Subsystem: "pages",
		Name:      "outcomes_total",
		Help:      "Conditional page fetch outcomes.",
	}, []string{"outcome"})

	// Refreshes counts refresh requests by outcome.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hubcompare",
		Subsystem: "refresh",
		Name:      "requests_total",
		Help:      "Refresh requests by outcome.",
	}, []string{"outcome"})

	// RefreshDuration observes full rebuild time.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hubcompare",
		Subsystem: "refresh",
		Name:      "duration_seconds",
		Help:      "Snapshot rebuild duration.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	// StaleFallbacks counts (commodity, hub) entries copied from the previous snapshot.
	StaleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hubcompare",
		Subsystem: "refresh",
		Name:      "stale_fallbacks_total",
		Help:      "Entries served from the previous snapshot.",
	})

	// CacheWriteFailures counts aborted chunk swaps.
	CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hubcompare",
		Subsystem: "cache",
		Name:      "write_failures_total",
		Help:      "Aborted snapshot saves.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
