// Package metrics provides the centralized Prometheus metrics registry for
// the Jira client. All metrics are defined in their respective packages
// (client, pagination, align, users) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the Jira client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - jira_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - jira_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - jira_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Retry Metrics (pkg/client):
//   - jira_retries_total{error_class} (Counter): Retry attempts by error class
//   - jira_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - jira_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pagination Metrics (pkg/pagination):
//   - jira_search_pages_total (Counter): Search pages fetched
//   - jira_overscan_restarts_total (Counter): Offset walk restarts from total changes
//
// Alignment Metrics (pkg/align):
//   - jira_alignment_failures_total (Counter): Resource URLs with no matching domain mapping
//
// User Cache Metrics (pkg/users):
//   - jira_user_cache_hits_total{scope} (Counter): Cache hits by scope (shared, private)
//   - jira_user_cache_misses_total{scope} (Counter): Cache misses by scope
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(jira_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(jira_request_duration_seconds_bucket[5m]))
//
//   # Overscan Restart Rate
//   rate(jira_overscan_restarts_total[5m])
//
//   # User Cache Hit Rate
//   sum(rate(jira_user_cache_hits_total[5m])) /
//   (sum(rate(jira_user_cache_hits_total[5m])) + sum(rate(jira_user_cache_misses_total[5m])))
