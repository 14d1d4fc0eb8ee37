// Basketgraph - B2B Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketgraph

package recommend

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach calls fn(ctx, i) for i in [0, n) on at most workers goroutines.
// workers <= 0 uses runtime.NumCPU(). The first error cancels the remaining
// calls and is returned.
//
// fn must only write to state owned by index i, typically results[i] of a
// pre-sized slice; callers merge in index order so output never depends on
// scheduling.
func ForEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ContextCancelled(gctx) {
			break
		}
		g.Go(func() error {
			if ContextCancelled(gctx) {
				return gctx.Err()
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
