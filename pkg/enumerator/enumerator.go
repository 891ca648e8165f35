// Package enumerator walks the Flickr library page by page and streams the
// items that still need fetching. Pages are requested sequentially starting
// from page 1, and the page count is re-read from every response so a
// library that grows or shrinks mid-run is handled without a restart.
package enumerator

import (
	"context"
	"sync/atomic"

	"flickrdump/pkg/flickr"
	"flickrdump/pkg/logger"
)

// Lister is the slice of the API client the enumerator needs.
type Lister interface {
	ListPage(ctx context.Context, page, perPage int) (*flickr.Page, error)
}

// Filter reports items that are already fully fetched so the enumerator
// can skip them instead of handing them downstream.
type Filter interface {
	IsComplete(id string) bool
}

// Enumerator produces the stream of items to fetch. Nothing is requested
// until Enumerate is called, and each page is only requested once the
// previous page's items have been consumed.
type Enumerator struct {
	client   Lister
	filter   Filter
	pageSize int
	log      logger.Logger

	total      atomic.Int64
	skipped    atomic.Int64
	duplicates atomic.Int64
}

// New creates an enumerator. filter may be nil when no completion state
// exists yet.
func New(client Lister, filter Filter, pageSize int, log logger.Logger) *Enumerator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Enumerator{
		client:   client,
		filter:   filter,
		pageSize: pageSize,
		log:      log,
	}
}

// Total returns the library size reported by the most recent page.
func (e *Enumerator) Total() int64 { return e.total.Load() }

// Skipped returns how many items were dropped because they were already
// complete.
func (e *Enumerator) Skipped() int64 { return e.skipped.Load() }

// Duplicates returns how many items were dropped because the same
// identifier had already been emitted this run. Flickr can repeat an item
// across page boundaries when the library changes between requests.
func (e *Enumerator) Duplicates() int64 { return e.duplicates.Load() }

// Enumerate starts the page walk. Items arrive on the returned channel in
// listing order; the channel is closed when the walk ends. The error
// channel carries at most one value and is closed together with the item
// channel. A page request that fails after retries ends the walk with
// that error; cancellation of ctx ends it with ctx's error.
func (e *Enumerator) Enumerate(ctx context.Context) (<-chan flickr.Item, <-chan error) {
	items := make(chan flickr.Item)
	errc := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errc)

		if err := e.walk(ctx, items); err != nil {
			errc <- err
		}
	}()

	return items, errc
}

func (e *Enumerator) walk(ctx context.Context, items chan<- flickr.Item) error {
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		result, err := e.client.ListPage(ctx, page, e.pageSize)
		if err != nil {
			return err
		}

		e.total.Store(int64(result.Total))
		e.log.DebugWithFields("page listed", map[string]interface{}{
			"page":  result.Index,
			"pages": result.Pages,
			"items": len(result.Items),
			"total": result.Total,
		})

		for _, item := range result.Items {
			if _, dup := seen[item.ID]; dup {
				e.duplicates.Add(1)
				continue
			}
			seen[item.ID] = struct{}{}

			if e.filter != nil && e.filter.IsComplete(item.ID) {
				e.skipped.Add(1)
				continue
			}

			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// The page count comes from this response, not the first one, so
		// a library that changed size mid-run terminates correctly.
		if page >= result.Pages || len(result.Items) == 0 {
			return nil
		}
	}
}
