// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Symbol crawler metrics
	CrawlCandidates   *prometheus.CounterVec
	SymbolsDiscovered prometheus.Counter
	CrawlQueueSize    prometheus.Gauge
	LookupRetries     prometheus.Counter
	LookupLatency     prometheus.Histogram

	// Quote and info job metrics
	QuoteDownloads       *prometheus.CounterVec
	BarsDownloaded       prometheus.Counter
	QuoteDownloadLatency *prometheus.HistogramVec
	InfoFetches          *prometheus.CounterVec

	// Remote store metrics
	DoltHubQueries *prometheus.CounterVec
	DoltHubLatency prometheus.Histogram
	DoltCommands   *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "findb"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CrawlCandidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "candidates_total",
			Help:      "Candidates processed by outcome (found, empty, error, terminal)",
		}, []string{"outcome"}),
		SymbolsDiscovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "symbols_discovered_total",
			Help:      "Total number of new symbols written to the sink",
		}),
		CrawlQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "queue_size",
			Help:      "Current number of untried candidates",
		}),
		LookupRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "yahoo",
			Name:      "lookup_retries_total",
			Help:      "Total number of search retries after transient errors",
		}),
		LookupLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "yahoo",
			Name:      "lookup_latency_seconds",
			Help:      "Search request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		QuoteDownloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "downloads_total",
			Help:      "Quote downloads by status (ok, delisted, error, skipped)",
		}, []string{"status"}),
		BarsDownloaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "bars_downloaded_total",
			Help:      "Total number of end-of-day bars downloaded",
		}),
		QuoteDownloadLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "download_latency_seconds",
			Help:      "Per-symbol download latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		InfoFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "info",
			Name:      "fetches_total",
			Help:      "Symbol info fetches by status (ok, error)",
		}, []string{"status"}),

		DoltHubQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dolthub",
			Name:      "queries_total",
			Help:      "DoltHub SQL API queries by status",
		}, []string{"status"}),
		DoltHubLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dolthub",
			Name:      "query_latency_seconds",
			Help:      "DoltHub SQL API latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DoltCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dolt",
			Name:      "commands_total",
			Help:      "dolt CLI invocations by command and status",
		}, []string{"command", "status"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run per job",
		}, []string{"job"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// SetCrawlQueueSize updates the crawler queue gauge.
func SetCrawlQueueSize(n int) {
	DefaultMetrics.CrawlQueueSize.Set(float64(n))
}

// RecordCrawlCandidate counts one processed candidate.
func RecordCrawlCandidate(outcome string) {
	DefaultMetrics.CrawlCandidates.WithLabelValues(outcome).Inc()
}

// RecordSymbolsDiscovered adds n newly written symbols.
func RecordSymbolsDiscovered(n int) {
	DefaultMetrics.SymbolsDiscovered.Add(float64(n))
}

// RecordLookup records one search request.
func RecordLookup(seconds float64, retry bool) {
	DefaultMetrics.LookupLatency.Observe(seconds)
	if retry {
		DefaultMetrics.LookupRetries.Inc()
	}
}

// RecordQuoteDownload records the outcome of one symbol download.
func RecordQuoteDownload(source, status string, bars int, seconds float64) {
	DefaultMetrics.QuoteDownloads.WithLabelValues(status).Inc()
	DefaultMetrics.BarsDownloaded.Add(float64(bars))
	if seconds > 0 {
		DefaultMetrics.QuoteDownloadLatency.WithLabelValues(source).Observe(seconds)
	}
}

// RecordInfoFetch records the outcome of one info request.
func RecordInfoFetch(status string) {
	DefaultMetrics.InfoFetches.WithLabelValues(status).Inc()
}

// RecordDoltHubQuery records one DoltHub SQL API call.
func RecordDoltHubQuery(seconds float64, err error) {
	DefaultMetrics.DoltHubLatency.Observe(seconds)
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.DoltHubQueries.WithLabelValues(status).Inc()
}

// RecordDoltCommand records one dolt CLI invocation.
func RecordDoltCommand(command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.DoltCommands.WithLabelValues(command, status).Inc()
}

// RecordHTTPRequest records one API request.
func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
	DefaultMetrics.HTTPLatency.WithLabelValues(route).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRunSuccess stamps the last successful run of job.
func RecordRunSuccess(job string, unix int64) {
	DefaultMetrics.LastSuccessfulRun.WithLabelValues(job).Set(float64(unix))
}
