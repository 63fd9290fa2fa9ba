// Package metrics provides the centralized Prometheus metrics registry
// for the harvester. All metrics are defined in their respective packages
// (ratelimit, nasa, cache, fanout, pipeline) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - harvester_ratelimit_acquires_total{limiter} (Counter): Permits granted
//   - harvester_ratelimit_wait_seconds{limiter} (Histogram): Time spent waiting for a permit
//
// Catalog Request Metrics (pkg/nasa):
//   - harvester_catalog_requests_total{kind, status} (Counter): Requests by kind (page, detail) and status
//   - harvester_catalog_request_duration_seconds{kind} (Histogram): Request duration by kind
//
// Retry Metrics (pkg/nasa):
//   - harvester_retries_total{error_class} (Counter): Retry attempts by error class
//   - harvester_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - harvester_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - harvester_cache_hits_total (Counter): Catalog response cache hits
//   - harvester_cache_misses_total (Counter): Catalog response cache misses
//   - harvester_cache_written_bytes_total (Counter): Bytes written to the cache
//   - harvester_cache_errors_total{operation} (Counter): Cache operation errors
//
// Fan-out Metrics (pkg/fanout):
//   - harvester_fanout_tasks_total{driver, outcome} (Counter): Items spawned or skipped per driver
//
// Pipeline Metrics (pkg/pipeline):
//   - harvester_pipeline_items_total{outcome} (Counter): Items persisted, resumed, or dropped
//   - harvester_pipeline_item_duration_seconds (Histogram): Download+classify+persist latency
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   rate(harvester_cache_hits_total[5m]) /
//   (rate(harvester_cache_hits_total[5m]) + rate(harvester_cache_misses_total[5m]))
//
//   # Effective catalog request rate
//   sum(rate(harvester_catalog_requests_total[1m]))
//
//   # P95 rate limiter wait
//   histogram_quantile(0.95, rate(harvester_ratelimit_wait_seconds_bucket{limiter="catalog"}[5m]))
//
//   # Harvest throughput
//   rate(harvester_pipeline_items_total{outcome="persisted"}[5m])
