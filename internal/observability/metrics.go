// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stats metrics
	StatsRequests       *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec
	FactsAttributed     prometheus.Counter
	WarningsEmitted     *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	FetchRetries        *prometheus.CounterVec
	SnapshotsPersisted  prometheus.Counter

	// Ingestion metrics
	KillmailsReceived     prometheus.Counter
	KillmailsStored       prometheus.Counter
	KillmailDecodeErrors  prometheus.Counter
	StreamReconnects      prometheus.Counter
	LastKillmailTimestamp prometheus.Gauge

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "killboard_stats"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		StatsRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "requests_total",
			Help:      "Total number of stats computations by report and status",
		}, []string{"report", "status"}),
		AggregationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "aggregation_duration_seconds",
			Help:      "Aggregation engine duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"report"}),
		FactsAttributed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "facts_attributed_total",
			Help:      "Total number of distinct facts attributed to at least one group",
		}),
		WarningsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "warnings_total",
			Help:      "Total number of data warnings by code",
		}, []string{"code"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"outcome"}),
		FetchRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "fetch_retries_total",
			Help:      "Total number of retried fetch attempts by source",
		}, []string{"source"}),
		SnapshotsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "snapshots_persisted_total",
			Help:      "Total number of snapshot rows written",
		}),

		KillmailsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "killmails_received_total",
			Help:      "Total number of killmails received from the stream",
		}),
		KillmailsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "killmails_stored_total",
			Help:      "Total number of killmails stored to database",
		}),
		KillmailDecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "decode_errors_total",
			Help:      "Total number of stream messages that failed to decode",
		}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stream_reconnects_total",
			Help:      "Total number of killstream reconnects",
		}),
		LastKillmailTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_killmail_timestamp",
			Help:      "Unix timestamp of the most recent stored killmail",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordStatsRequest records one stats computation.
func RecordStatsRequest(report, status string, d time.Duration) {
	DefaultMetrics.StatsRequests.WithLabelValues(report, status).Inc()
	if status == "ok" {
		DefaultMetrics.AggregationDuration.WithLabelValues(report).Observe(d.Seconds())
	}
}

// RecordFactsAttributed adds n distinct attributed facts.
func RecordFactsAttributed(n int) {
	DefaultMetrics.FactsAttributed.Add(float64(n))
}

// RecordWarning increments the warning counter for code.
func RecordWarning(code string) {
	DefaultMetrics.WarningsEmitted.WithLabelValues(code).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(outcome).Inc()
}

// RecordFetchRetry increments the retry counter for source.
func RecordFetchRetry(source string) {
	DefaultMetrics.FetchRetries.WithLabelValues(source).Inc()
}

// RecordSnapshotsPersisted adds n persisted snapshot rows.
func RecordSnapshotsPersisted(n int) {
	DefaultMetrics.SnapshotsPersisted.Add(float64(n))
}

// RecordKillmailReceived increments the received counter.
func RecordKillmailReceived() {
	DefaultMetrics.KillmailsReceived.Inc()
}

// RecordKillmailsStored adds n stored killmails and moves the freshness gauge.
func RecordKillmailsStored(n int, latest time.Time) {
	DefaultMetrics.KillmailsStored.Add(float64(n))
	if !latest.IsZero() {
		DefaultMetrics.LastKillmailTimestamp.Set(float64(latest.Unix()))
	}
}

// RecordDecodeError increments the decode error counter.
func RecordDecodeError() {
	DefaultMetrics.KillmailDecodeErrors.Inc()
}

// RecordReconnect increments the stream reconnect counter.
func RecordReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(route string, code int, d time.Duration) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, statusClass(code)).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
