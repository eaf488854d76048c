// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	sslFailuresTotal           prometheus.Counter
	targetsTotal               *prometheus.CounterVec
	triplesTotal               prometheus.Counter
	oracleCallsTotal           *prometheus.CounterVec
	oracleWaitSeconds          *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_total",
				Help: "Total number of fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_bytes_total",
				Help: "Total number of body bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total number of fetch retries, labeled by failure class.",
			},
			[]string{"reason"},
		)

		sslFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_ssl_failures_total",
				Help: "Total number of certificate verification failures.",
			},
		)

		targetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_targets_total",
				Help: "Total number of targets processed, labeled by routing status.",
			},
			[]string{"status"},
		)

		triplesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_triples_total",
				Help: "Total number of normalized triples accepted above the confidence threshold.",
			},
		)

		oracleCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_oracle_calls_total",
				Help: "Total number of oracle calls, labeled by result.",
			},
			[]string{"result"},
		)

		oracleWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_oracle_rate_limit_wait_seconds",
				Help:    "Histogram of time spent waiting on the oracle rate limiter.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"key"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently processing a target.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests to the status server, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records a terminal fetch outcome.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRetry counts one retry for the given failure class.
func ObserveRetry(reason string) {
	Init()
	fetchRetriesTotal.WithLabelValues(reason).Inc()
}

// ObserveSSLFailure counts one certificate verification failure.
func ObserveSSLFailure() {
	Init()
	sslFailuresTotal.Inc()
}

// ObserveTarget counts a finished target by routing status.
func ObserveTarget(status string) {
	Init()
	targetsTotal.WithLabelValues(status).Inc()
}

// ObserveTriples adds n accepted triples.
func ObserveTriples(n int) {
	Init()
	if n > 0 {
		triplesTotal.Add(float64(n))
	}
}

// ObserveOracleCall counts an oracle call by result ("ok", "error", "panic").
func ObserveOracleCall(result string) {
	Init()
	oracleCallsTotal.WithLabelValues(result).Inc()
}

// ObserveOracleWait records how long a caller waited on the oracle limiter.
func ObserveOracleWait(key string, d time.Duration) {
	Init()
	oracleWaitSeconds.WithLabelValues(key).Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
