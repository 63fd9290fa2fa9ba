package nasa

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIterator_DeliversThenEnds(t *testing.T) {
	it := newIterator()
	it.total = 2
	ctx := context.Background()

	go func() {
		it.emit(ctx, &Record{NasaID: "A"})
		it.emit(ctx, &Record{NasaID: "B"})
		it.finish(nil)
	}()

	var ids []string
	for it.Next(ctx) {
		ids = append(ids, it.Record().NasaID)
	}

	if err := it.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Got %d records, want 2", len(ids))
	}
	if it.Total() != 2 {
		t.Errorf("Total() = %d, want 2", it.Total())
	}

	// End of stream is terminal.
	if it.Next(ctx) {
		t.Error("Next() after end = true, want false")
	}
	if it.Record() != nil {
		t.Error("Record() after end should be nil")
	}
}

func TestIterator_ErrorRecordedBeforeEnd(t *testing.T) {
	it := newIterator()
	wantErr := errors.New("page fetch failed")
	ctx := context.Background()

	go func() {
		it.emit(ctx, &Record{NasaID: "A"})
		it.finish(wantErr)
	}()

	for it.Next(ctx) {
	}

	// A consumer observing the end must also observe the error: an
	// aborted stream never looks like a clean one.
	if err := it.Err(); !errors.Is(err, wantErr) {
		t.Errorf("Err() = %v, want %v", err, wantErr)
	}
}

func TestIterator_NextBlocksUntilAvailable(t *testing.T) {
	it := newIterator()
	ctx := context.Background()

	go func() {
		time.Sleep(50 * time.Millisecond)
		it.emit(ctx, &Record{NasaID: "late"})
		it.finish(nil)
	}()

	start := time.Now()
	if !it.Next(ctx) {
		t.Fatal("Next() = false, want true")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Next() returned in %v, expected it to block for the record", elapsed)
	}
	if it.Record().NasaID != "late" {
		t.Errorf("Record().NasaID = %q, want %q", it.Record().NasaID, "late")
	}
}

func TestIterator_NextHonorsContext(t *testing.T) {
	it := newIterator() // no producer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if it.Next(ctx) {
		t.Error("Next() = true on cancelled context")
	}
	if err := it.Err(); err == nil {
		t.Error("Err() = nil after cancelled Next")
	}
}

func TestIterator_FirstErrorWins(t *testing.T) {
	it := newIterator()
	first := errors.New("first")

	it.setErr(first)
	it.setErr(errors.New("second"))

	if err := it.Err(); !errors.Is(err, first) {
		t.Errorf("Err() = %v, want first error", err)
	}
}
