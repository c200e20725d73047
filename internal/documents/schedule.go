package documents

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runEach calls fn for every index in [0, n) according to schedule and
// returns ctx's error if it was cancelled before every item started.
// Cancellation is checked between items only.
func runEach(ctx context.Context, schedule Schedule, limit, n int, fn func(ctx context.Context, i int)) error {
	if schedule != Concurrent {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i)
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	return g.Wait()
}
