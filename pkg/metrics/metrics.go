// Package metrics documents the Prometheus metrics exported by the dashboard
// client. The metrics themselves are defined next to the code that drives
// them (pkg/client, pkg/ratelimit) to keep the packages self-contained; this
// package provides the registry handle and a reference list.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry used by the dashboard client. All
// metrics are registered automatically via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ukhsa_requests_total{metric, status} (Counter): Requests by metric and HTTP status
//   - ukhsa_request_duration_seconds{metric} (Histogram): Request duration by metric
//   - ukhsa_errors_total{class} (Counter): Errors by class (invalid_argument, transport, protocol)
//   - ukhsa_pages_fetched_total{metric} (Counter): Pages fetched by metric
//   - ukhsa_records_fetched_total{metric} (Counter): Records delivered by metric
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ukhsa_rate_limit_waits_total (Counter): Requests that waited for a slot
//   - ukhsa_rate_limit_wait_seconds (Histogram): Time spent waiting for a slot
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(ukhsa_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ukhsa_request_duration_seconds_bucket[5m]))
//
//   # Share of requests that were throttled locally
//   rate(ukhsa_rate_limit_waits_total[5m]) / rate(ukhsa_requests_total[5m])
