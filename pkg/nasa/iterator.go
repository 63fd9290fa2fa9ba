package nasa

import (
	"context"
	"sync"
)

// Iterator is the consumer handle for a streaming search. Records arrive
// in producer completion order, not page order. The stream ends exactly
// once, after every in-flight detail fetch has finished; Err reports the
// first fatal failure, if any. An Iterator is single-consumer and
// single-pass: restarting a search requires a fresh call to Search.
//
// Usage follows the scanner pattern:
//
//	iter, err := session.Search(ctx, params)
//	for iter.Next(ctx) {
//	    rec := iter.Record()
//	    ...
//	}
//	if err := iter.Err(); err != nil {
//	    ...
//	}
type Iterator struct {
	total   int
	results chan *Record
	cur     *Record

	mu  sync.Mutex
	err error
}

func newIterator() *Iterator {
	return &Iterator{
		results: make(chan *Record, resultBuffer),
	}
}

// resultBuffer decouples detail-fetch producers from a slow consumer.
const resultBuffer = 64

// Total returns the total number of results announced by the first page.
// It is valid as soon as Search returns.
func (it *Iterator) Total() int {
	return it.total
}

// Next blocks until the next record is available. It returns false when
// the stream has ended or ctx is cancelled; check Err afterwards to
// distinguish a clean end from a fatal failure.
func (it *Iterator) Next(ctx context.Context) bool {
	select {
	case rec, ok := <-it.results:
		if !ok {
			it.cur = nil
			return false
		}
		it.cur = rec
		return true
	case <-ctx.Done():
		it.setErr(ctx.Err())
		it.cur = nil
		return false
	}
}

// Record returns the record produced by the last successful call to Next.
func (it *Iterator) Record() *Record {
	return it.cur
}

// Err returns the first fatal error observed by the stream, or nil if the
// stream completed (or is still running) cleanly.
func (it *Iterator) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.err
}

// emit delivers one record to the consumer. It blocks if the consumer is
// behind, and gives up if ctx is cancelled so producers never leak.
func (it *Iterator) emit(ctx context.Context, rec *Record) error {
	select {
	case it.results <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish terminates the stream. The error, if any, is recorded before the
// channel closes so a consumer that observes end-of-stream always sees it.
// Called exactly once, after every producer has stopped.
func (it *Iterator) finish(err error) {
	it.setErr(err)
	close(it.results)
}

func (it *Iterator) setErr(err error) {
	if err == nil {
		return
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.err == nil {
		it.err = err
	}
}
