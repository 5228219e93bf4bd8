package retrieval

import (
	"context"
	"errors"

	"github.com/ppiankov/autodd/internal/source"
	"golang.org/x/sync/errgroup"
)

// Coordinator fans one window out over its bulk adapters, one slice per adapter.
type Coordinator struct {
	adapters []source.Adapter
}

// NewCoordinator creates a coordinator. Each adapter owns one egress path and
// is never handed two slices of the same fetch.
func NewCoordinator(adapters []source.Adapter) (*Coordinator, error) {
	if len(adapters) == 0 {
		return nil, errors.New("coordinator: at least one adapter is required")
	}
	return &Coordinator{adapters: adapters}, nil
}

// Workers returns the number of slices a window is split into.
func (c *Coordinator) Workers() int {
	return len(c.adapters)
}

// Fetch returns the union of all slice results, unordered and not deduplicated.
// Any slice failure aborts the whole fetch; partial data is never returned.
// A nil pool runs every slice at once.
func (c *Coordinator) Fetch(ctx context.Context, pool *Pool, forum string, w source.Window, fields []string) ([]source.Post, error) {
	if pool == nil {
		pool = NewPool(len(c.adapters))
	}

	slices := Slice(w, len(c.adapters))
	results := make([][]source.Post, len(slices))

	g, gctx := errgroup.WithContext(ctx)
	for i, sl := range slices {
		adapter := c.adapters[i]
		g.Go(func() error {
			if err := pool.acquire(gctx); err != nil {
				return err
			}
			defer pool.release()

			posts, err := adapter.FetchWindow(gctx, forum, sl, fields)
			if err != nil {
				return err
			}
			results[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	flat := make([]source.Post, 0, total)
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat, nil
}
