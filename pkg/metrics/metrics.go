// Package metrics documents the Prometheus metrics exposed by the
// webstatus client. All metrics are defined in their respective
// packages (client, pagination, ratelimit) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the webstatus
// client. All metrics are automatically registered via promauto in
// their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - webstatus_requests_total{status} (Counter): Requests by outcome status
//     (HTTP status code, network_error, read_error, rate_limited)
//   - webstatus_request_duration_seconds (Histogram): Logical page request
//     duration, retries included
//   - webstatus_errors_total{class} (Counter): Errors by class
//     (client, server, rate_limit, network, malformed)
//
// Retry Metrics (pkg/client):
//   - webstatus_retries_total{error_class} (Counter): Retry attempts by error class
//   - webstatus_retry_backoff_seconds{error_class} (Histogram): Backoff duration before retries
//   - webstatus_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Traversal Metrics (pkg/pagination):
//   - webstatus_pages_fetched_total (Counter): Pages fetched across all traversals
//   - webstatus_traversals_total{outcome} (Counter): Finished traversals by outcome
//   - webstatus_token_cycles_total (Counter): Traversals stopped by a repeated continuation token
//
// Rate Limit Metrics (pkg/ratelimit):
//   - webstatus_rate_limit_hold_seconds (Gauge): Holdoff set by the most recent 429
//   - webstatus_rate_limit_blocks_total (Counter): Requests blocked by an active holdoff
//   - webstatus_rate_limit_pauses_total (Counter): Requests paused until a holdoff expired
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   sum(rate(webstatus_errors_total[5m])) / sum(rate(webstatus_requests_total[5m]))
//
//   # Retry Pressure by Class
//   rate(webstatus_retries_total[5m])
//
//   # P95 Page Request Latency
//   histogram_quantile(0.95, rate(webstatus_request_duration_seconds_bucket[5m]))
//
//   # Traversal Failure Ratio
//   rate(webstatus_traversals_total{outcome="error"}[5m]) /
//   rate(webstatus_traversals_total[5m])
//
//   # Active Holdoff
//   webstatus_rate_limit_hold_seconds > 0
