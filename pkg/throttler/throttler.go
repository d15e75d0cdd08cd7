// Package throttler runs collections of independent operations with a strict
// cap on how many are in flight at once.
//
// Every fan-out in the submit pipeline (per-supplier patches, per-line-item
// patches, attention-flag updates) goes through this package rather than
// spawning goroutines directly, so the pressure on the remote platform is
// bounded regardless of order size.
package throttler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// defaultLimit is used when no WithLimit option is given.
const defaultLimit = 10

type options struct {
	limit     int
	pageSize  int
	pagePause time.Duration
}

// Option configures a single Run or Do call.
type Option func(*options)

// WithLimit caps the number of concurrently in-flight operations.
// Values below 1 are treated as 1.
func WithLimit(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.limit = n
	}
}

// WithPageSize submits items in chunks of n instead of all at once.
// Zero or negative disables chunking.
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithPagePause sleeps d between chunk submissions. Only meaningful
// together with WithPageSize.
func WithPagePause(d time.Duration) Option {
	return func(o *options) { o.pagePause = d }
}

// Run executes fn for every item and returns the produced values, positionally
// aligned with items. At no instant are more than the configured limit of
// operations outstanding. Run waits for every item to finish even when some
// fail; the first error encountered is returned after the wait. Items must be
// independent of each other; there is no ordering guarantee between them.
func Run[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), opts ...Option) ([]R, error) {
	o := options{limit: defaultLimit}
	for _, opt := range opts {
		opt(&o)
	}

	results := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(o.limit)

	submit := func(from, to int) {
		for i := from; i < to; i++ {
			g.Go(func() error {
				r, err := fn(ctx, items[i])
				results[i] = r
				return err
			})
		}
	}

	if o.pageSize <= 0 {
		submit(0, len(items))
		return results, g.Wait()
	}

	for from := 0; from < len(items); from += o.pageSize {
		to := min(from+o.pageSize, len(items))
		submit(from, to)
		if to < len(items) && o.pagePause > 0 {
			select {
			case <-time.After(o.pagePause):
			case <-ctx.Done():
				// Stop submitting new pages; in-flight operations still drain.
				return results, g.Wait()
			}
		}
	}
	return results, g.Wait()
}

// Do is Run for operations that produce no value.
func Do[T any](ctx context.Context, items []T, fn func(context.Context, T) error, opts ...Option) error {
	_, err := Run(ctx, items, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	}, opts...)
	return err
}
