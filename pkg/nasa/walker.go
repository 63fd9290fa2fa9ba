package nasa

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/astroscope/nasa-harvester/pkg/fanout"
)

// walkPages drives one search: it follows the chain of result pages,
// announces the total from the first page via ready, fans each discovered
// entry out to a detail-fetch task, and terminates the iterator after the
// last page and every task have settled. Any page or detail failure
// cancels the siblings and surfaces through the iterator.
func (c *Client) walkPages(ctx context.Context, it *Iterator, firstURL string, ready chan<- error) {
	entries := make(chan SearchEntry)

	// The entry workers call c.get, which performs its own admission
	// against the session limiter, so the driver carries no limiter.
	driver, err := fanout.New(fanout.Config[SearchEntry]{
		Name: "detail-fetch",
		Key:  SearchEntry.ID,
		Work: func(ctx context.Context, entry SearchEntry) error {
			return c.fetchEntry(ctx, it, entry)
		},
	})
	if err != nil {
		ready <- err
		it.finish(err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return driver.Run(gctx, fanout.ChannelSource(entries))
	})

	g.Go(func() error {
		defer close(entries)

		next := firstURL
		first := true
		for next != "" {
			page, err := c.fetchPage(gctx, next)
			if err != nil {
				if first {
					ready <- err
				}
				return err
			}

			if first {
				// The total is announced before any entry is
				// handed out, so consumers can observe it ahead
				// of the first record.
				it.total = page.total
				ready <- nil
				first = false

				c.logger.Info().
					Int("total_hits", page.total).
					Msg("Search started")
			}

			for _, entry := range page.entries {
				select {
				case entries <- entry:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			next = page.next
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		c.logger.Error().Err(err).Msg("Search aborted")
	} else {
		c.logger.Info().
			Int("records", driver.Spawned()).
			Msg("Search complete")
	}
	it.finish(err)
}
