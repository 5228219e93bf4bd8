package retrieval

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var errPoolClosed = errors.New("worker pool closed")

// Pool bounds the number of concurrent provider calls. One pool is created per
// retrieval run, sized to the number of egress paths, and closed when the run ends.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	closed atomic.Bool
}

// NewPool creates a pool admitting size concurrent tasks (at least one).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the pool's concurrency limit.
func (p *Pool) Size() int {
	return p.size
}

// Close rejects further acquisitions. In-flight tasks are not interrupted.
func (p *Pool) Close() {
	p.closed.Store(true)
}

func (p *Pool) acquire(ctx context.Context) error {
	if p.closed.Load() {
		return errPoolClosed
	}
	return p.sem.Acquire(ctx, 1)
}

func (p *Pool) release() {
	p.sem.Release(1)
}
