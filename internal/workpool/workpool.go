// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workpool runs independent per-item work on a bounded number of
// goroutines while keeping results in input order.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is used when a non-positive limit is given.
const DefaultLimit = 3

// Map calls fn for every item with at most limit calls in flight and returns
// the results indexed like items, regardless of completion order. fn must
// recover its own per-item failures; Map only fails when ctx is done, in
// which case items not yet started are skipped.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) R) ([]R, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = fn(gctx, i, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
