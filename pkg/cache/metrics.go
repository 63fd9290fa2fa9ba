package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks response cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_cache_hits_total",
			Help: "Total number of catalog response cache hits",
		},
	)

	// CacheMisses tracks response cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_cache_misses_total",
			Help: "Total number of catalog response cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache.
	CacheSize = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_cache_written_bytes_total",
			Help: "Total bytes written to the catalog response cache",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
