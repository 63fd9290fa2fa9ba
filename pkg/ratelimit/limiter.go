// Package ratelimit implements token bucket admission control for outbound
// requests. A Limiter grants at most Burst permits at once and replenishes
// them on a fixed schedule, so the long-run request rate never exceeds the
// configured average even when many goroutines contend for permits.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit admission.
var (
	acquiresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_ratelimit_acquires_total",
		Help: "Total permits granted by limiter name",
	}, []string{"limiter"})

	acquireWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limit permit by limiter name",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"limiter"})
)

// Limiter gates operations against a shared token bucket.
//
// Permits are not returned by callers: a consumed permit re-enters the
// bucket on the refill schedule. One Limiter instance must be shared by
// reference between every component that talks to the same remote service.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// Config holds limiter configuration.
type Config struct {
	// Name identifies the limiter in logs and metrics (e.g. "catalog").
	Name string

	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// Burst is the maximum number of permits available at once.
	// Burst permits refill over Burst/RequestsPerSecond seconds.
	Burst int
}

// New creates a Limiter with the given sustained rate and burst size.
func New(cfg Config) (*Limiter, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests_per_second must be > 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("burst must be > 0 (got %d)", cfg.Burst)
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &Limiter{
		name:    cfg.Name,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// Acquire blocks until a permit is available or the context is cancelled.
// There is no timeout beyond the context deadline; under sustained
// contention callers simply queue.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("acquire rate limit permit: %w", err)
	}

	acquiresTotal.WithLabelValues(l.name).Inc()
	acquireWaitSeconds.WithLabelValues(l.name).Observe(time.Since(start).Seconds())

	return nil
}

// Name returns the limiter's configured name.
func (l *Limiter) Name() string {
	return l.name
}
