// Package metrics exposes the Prometheus registry used by the MyCase client.
// All metrics are defined in their respective packages (client, ratelimit,
// pagination, auth) via promauto and land in the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the MyCase client.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - mycase_rate_limit_waits_total (Counter): Requests that had to wait for a token
//   - mycase_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//   - mycase_rate_limit_tokens (Gauge): Tokens left after the last grant
//
// Request Metrics (pkg/client):
//   - mycase_requests_total{endpoint, status} (Counter): Physical attempts by path and HTTP status
//   - mycase_request_duration_seconds{endpoint} (Histogram): Logical request duration including retries
//   - mycase_errors_total{class} (Counter): Terminal errors by class (client, server, rate_limit, auth, network)
//
// Retry Metrics (pkg/client):
//   - mycase_retries_total{error_class} (Counter): Retries by error class
//   - mycase_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - mycase_retry_exhausted_total{error_class} (Counter): Requests that used up a retry budget
//
// Pagination Metrics (pkg/pagination):
//   - mycase_pagination_pages_total{path} (Counter): Pages fetched
//   - mycase_pagination_walks_total{stop} (Counter): Completed walks by stop reason
//
// Auth Metrics (pkg/auth):
//   - mycase_auth_refresh_total{result} (Counter): Token refreshes by result
//
// Example Prometheus Queries:
//
//   # Throttle pressure
//   rate(mycase_retries_total{error_class="rate_limit"}[5m])
//
//   # Client-side limiter saturation
//   rate(mycase_rate_limit_waits_total[5m])
//
//   # P95 logical request latency
//   histogram_quantile(0.95, rate(mycase_request_duration_seconds_bucket[5m]))
//
//   # Walks cut short by safety bounds
//   sum by (stop) (rate(mycase_pagination_walks_total{stop!="no_next"}[1h]))
