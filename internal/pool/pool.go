// Package pool bounds the number of simultaneous operations against the
// durable store, independently of request concurrency.
//
// When every slot is held, Acquire blocks, but only up to a configured
// ceiling; it then fails with ErrTimeout instead of parking the caller
// forever. A caller that goes away mid-wait gets its own context error.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout reports that no slot freed up within the bounded wait. It is
// transient; callers may retry.
var ErrTimeout = errors.New("pool: acquire timed out")

const defaultMaxWait = 5 * time.Second

// DefaultSize is the recommended pool sizing for a given worker count.
// Guidance, not enforced.
func DefaultSize(workers int) int {
	if workers < 1 {
		workers = 1
	}
	return 2*workers + 1
}

// Pool is a fixed-size slot set. The zero value is not usable; use New.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	maxWait time.Duration
}

// New creates a pool with size slots and a bounded acquire wait.
// maxWait <= 0 selects the default ceiling.
func New(size int, maxWait time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		maxWait: maxWait,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Acquire claims one slot, waiting at most the configured ceiling. It returns
// a release func that must be called unconditionally once the operation
// finishes; calling it more than once is safe.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.maxWait)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() { p.sem.Release(1) })
	}, nil
}
