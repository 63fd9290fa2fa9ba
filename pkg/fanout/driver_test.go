package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/astroscope/nasa-harvester/pkg/ratelimit"
)

func sliceSource(items []string) Source[string] {
	i := 0
	return func(ctx context.Context) (string, bool, error) {
		if i >= len(items) {
			return "", false, nil
		}
		item := items[i]
		i++
		return item, true, nil
	}
}

func identity(s string) string { return s }

func TestNew_Validation(t *testing.T) {
	work := func(ctx context.Context, s string) error { return nil }

	tests := []struct {
		name        string
		config      Config[string]
		expectError bool
	}{
		{
			name:        "valid config",
			config:      Config[string]{Key: identity, Work: work},
			expectError: false,
		},
		{
			name:        "missing key",
			config:      Config[string]{Work: work},
			expectError: true,
		},
		{
			name:        "missing work",
			config:      Config[string]{Key: identity},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.expectError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestRun_ProcessesEveryItem(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)

	driver, err := New(Config[string]{
		Name: "test",
		Key:  identity,
		Work: func(ctx context.Context, s string) error {
			mu.Lock()
			seen[s]++
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	items := []string{"a", "b", "c", "d"}
	if err := driver.Run(context.Background(), sliceSource(items)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, item := range items {
		if seen[item] != 1 {
			t.Errorf("Item %q processed %d times, want 1", item, seen[item])
		}
	}
	if driver.Spawned() != len(items) {
		t.Errorf("Spawned() = %d, want %d", driver.Spawned(), len(items))
	}
}

func TestRun_SkipsCompletedItems(t *testing.T) {
	var processed atomic.Int32

	driver, err := New(Config[string]{
		Name: "test",
		Done: map[string]struct{}{"a": {}, "c": {}},
		Key:  identity,
		Work: func(ctx context.Context, s string) error {
			if s == "a" || s == "c" {
				t.Errorf("Completed item %q was processed", s)
			}
			processed.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := driver.Run(context.Background(), sliceSource([]string{"a", "b", "c"})); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := processed.Load(); got != 1 {
		t.Errorf("Processed %d items, want 1", got)
	}
	if driver.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", driver.Skipped())
	}
}

func TestRun_FullyProcessedSetSpawnsNothing(t *testing.T) {
	driver, err := New(Config[string]{
		Name: "test",
		Done: map[string]struct{}{"a": {}, "b": {}},
		Key:  identity,
		Work: func(ctx context.Context, s string) error {
			t.Errorf("Unexpected work for %q", s)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	if err := driver.Run(context.Background(), sliceSource([]string{"a", "b"})); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if driver.Spawned() != 0 {
		t.Errorf("Spawned() = %d, want 0", driver.Spawned())
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Fully-resumed run took %v, expected immediate completion", elapsed)
	}
}

func TestRun_DeduplicatesWithinStream(t *testing.T) {
	var processed atomic.Int32

	driver, err := New(Config[string]{
		Name: "test",
		Key:  identity,
		Work: func(ctx context.Context, s string) error {
			processed.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := driver.Run(context.Background(), sliceSource([]string{"a", "a", "a"})); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := processed.Load(); got != 1 {
		t.Errorf("Duplicate item processed %d times, want 1", got)
	}
}

func TestRun_WaitsForAllSpawnedTasks(t *testing.T) {
	var completed atomic.Int32

	driver, err := New(Config[string]{
		Name: "test",
		Key:  identity,
		Work: func(ctx context.Context, s string) error {
			time.Sleep(50 * time.Millisecond)
			completed.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := driver.Run(context.Background(), sliceSource([]string{"a", "b", "c"})); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Run must not return before every spawned task finished.
	if got := completed.Load(); got != 3 {
		t.Errorf("Run returned with %d of 3 tasks complete", got)
	}
}

func TestRun_PropagatesWorkerError(t *testing.T) {
	wantErr := errors.New("boom")

	driver, err := New(Config[string]{
		Name: "test",
		Key:  identity,
		Work: func(ctx context.Context, s string) error {
			if s == "b" {
				return wantErr
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = driver.Run(context.Background(), sliceSource([]string{"a", "b", "c"}))
	if !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
}

func TestRun_PropagatesSourceError(t *testing.T) {
	wantErr := errors.New("stream broke")
	calls := 0
	src := func(ctx context.Context) (string, bool, error) {
		calls++
		if calls > 2 {
			return "", false, wantErr
		}
		return string(rune('a' + calls - 1)), true, nil
	}

	driver, err := New(Config[string]{
		Name: "test",
		Key:  identity,
		Work: func(ctx context.Context, s string) error { return nil },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = driver.Run(context.Background(), src)
	if !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
}

func TestRun_GatedByLimiter(t *testing.T) {
	// 4 items at 10/s with burst 2: at least ~200ms.
	limiter, err := ratelimit.New(ratelimit.Config{
		Name:              "test-fanout",
		RequestsPerSecond: 10,
		Burst:             2,
	})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	driver, err := New(Config[string]{
		Name:    "test",
		Limiter: limiter,
		Key:     identity,
		Work:    func(ctx context.Context, s string) error { return nil },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Now()
	if err := driver.Run(context.Background(), sliceSource([]string{"a", "b", "c", "d"})); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("4 gated tasks finished in %v, limiter not applied", elapsed)
	}
}

func TestChannelSource(t *testing.T) {
	ch := make(chan string, 3)
	ch <- "x"
	ch <- "y"
	close(ch)

	src := ChannelSource(ch)
	ctx := context.Background()

	for _, want := range []string{"x", "y"} {
		item, ok, err := src(ctx)
		if err != nil || !ok || item != want {
			t.Fatalf("src() = (%q, %v, %v), want (%q, true, nil)", item, ok, err, want)
		}
	}

	_, ok, err := src(ctx)
	if ok || err != nil {
		t.Errorf("src() on closed channel = (ok=%v, err=%v), want end of stream", ok, err)
	}
}

func TestChannelSource_ContextCancelled(t *testing.T) {
	ch := make(chan string) // never written
	src := ChannelSource(ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := src(ctx)
	if err == nil {
		t.Error("Expected context error, got nil")
	}
}
