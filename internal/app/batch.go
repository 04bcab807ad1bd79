package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds batch fan-out when none is configured.
const DefaultConcurrency = 8

// fanOut runs fn for every item with at most limit in flight. fn records its
// own outcome; one unit failing never cancels the others.
func fanOut[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T)) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
