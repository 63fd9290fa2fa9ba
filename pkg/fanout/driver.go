// Package fanout implements rate-limited fan-out over a stream of work
// items. A Driver consumes a finite source, skips items already completed
// in a previous run, and spawns one goroutine per remaining item, bounded
// in admission rate by a shared limiter rather than by a fixed pool size.
// Run returns only after every spawned task has finished, propagating the
// first failure.
package fanout

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/astroscope/nasa-harvester/pkg/ratelimit"
)

// Prometheus metrics for fan-out drivers.
var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fanout_tasks_total",
		Help: "Work items seen by fan-out drivers, by driver name and outcome",
	}, []string{"driver", "outcome"}) // outcome: "spawned", "skipped"
)

// Source yields work items one at a time. It returns ok=false once the
// stream is exhausted, or an error if the stream failed. A Source is
// called only from the driver's own goroutine, never concurrently.
type Source[T any] func(ctx context.Context) (item T, ok bool, err error)

// ChannelSource adapts a channel to a Source. The stream ends when the
// channel is closed.
func ChannelSource[T any](ch <-chan T) Source[T] {
	return func(ctx context.Context) (T, bool, error) {
		select {
		case item, ok := <-ch:
			return item, ok, nil
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}
}

// Config holds driver configuration.
type Config[T any] struct {
	// Name identifies the driver in logs and metrics.
	Name string

	// Limiter, when set, is acquired before each worker runs. Leave nil
	// when the worker performs its own admission against a shared limiter.
	Limiter *ratelimit.Limiter

	// Done is the set of item keys already completed in a previous run.
	// Items whose key is present are skipped. The driver marks each
	// newly-spawned key in this map; it is never read by workers.
	Done map[string]struct{}

	// Key extracts the resume identifier of an item.
	Key func(T) string

	// Work processes one item. One goroutine per item; a returned error
	// aborts the whole run after in-flight siblings settle.
	Work func(ctx context.Context, item T) error
}

// Driver fans a stream of work items out to rate-limited goroutines.
type Driver[T any] struct {
	cfg    Config[T]
	logger zerolog.Logger

	spawned int
	skipped int
}

// New creates a Driver.
func New[T any](cfg Config[T]) (*Driver[T], error) {
	if cfg.Key == nil {
		return nil, fmt.Errorf("key function is required")
	}
	if cfg.Work == nil {
		return nil, fmt.Errorf("work function is required")
	}
	if cfg.Name == "" {
		cfg.Name = "fanout"
	}
	if cfg.Done == nil {
		cfg.Done = make(map[string]struct{})
	}

	return &Driver[T]{
		cfg:    cfg,
		logger: log.With().Str("component", cfg.Name).Logger(),
	}, nil
}

// Run drains src, spawning one task per item not already in the done set,
// then waits for every spawned task to finish. The first failure (whether
// from the source or from a task) is returned; remaining tasks are
// cancelled via the group context.
func (d *Driver[T]) Run(ctx context.Context, src Source[T]) error {
	g, gctx := errgroup.WithContext(ctx)

	var srcErr error
	for {
		item, ok, err := src(gctx)
		if err != nil {
			srcErr = err
			break
		}
		if !ok {
			break
		}

		key := d.cfg.Key(item)
		if _, done := d.cfg.Done[key]; done {
			d.skipped++
			tasksTotal.WithLabelValues(d.cfg.Name, "skipped").Inc()
			d.logger.Debug().Str("key", key).Msg("Skipping completed item")
			continue
		}

		// Mark pending before spawning so a duplicate in the same
		// stream is only processed once.
		d.cfg.Done[key] = struct{}{}
		d.spawned++
		tasksTotal.WithLabelValues(d.cfg.Name, "spawned").Inc()

		g.Go(func() error {
			if d.cfg.Limiter != nil {
				if err := d.cfg.Limiter.Acquire(gctx); err != nil {
					return err
				}
			}
			return d.cfg.Work(gctx, item)
		})
	}

	waitErr := g.Wait()

	d.logger.Debug().
		Int("spawned", d.spawned).
		Int("skipped", d.skipped).
		Msg("Fan-out drained")

	// A worker failure cancels the group context, which makes the source
	// report cancellation; the worker's error is the root cause.
	if waitErr != nil {
		return waitErr
	}
	if srcErr != nil {
		return fmt.Errorf("%s source: %w", d.cfg.Name, srcErr)
	}
	return nil
}

// Spawned returns the number of tasks spawned. Valid after Run returns.
func (d *Driver[T]) Spawned() int {
	return d.spawned
}

// Skipped returns the number of items skipped via the done set. Valid
// after Run returns.
func (d *Driver[T]) Skipped() int {
	return d.skipped
}
