package store

import (
	"context"

	"github.com/hitokoto-go/hitokoto/internal/pool"
	"github.com/hitokoto-go/hitokoto/internal/quote"
)

// Guarded wraps a Store so every backend operation first claims a pool slot
// and releases it unconditionally afterward, even when the call fails or the
// caller cancels. Nothing leaks a held slot.
type Guarded struct {
	inner Store
	pool  *pool.Pool
}

// Guard returns s with all operations gated by p.
func Guard(s Store, p *pool.Pool) *Guarded {
	return &Guarded{inner: s, pool: p}
}

func (g *Guarded) GetByUUID(ctx context.Context, uuid string) (quote.Quote, error) {
	release, err := g.pool.Acquire(ctx)
	if err != nil {
		return quote.Quote{}, err
	}
	defer release()
	return g.inner.GetByUUID(ctx, uuid)
}

func (g *Guarded) QueryCandidates(ctx context.Context, f quote.FilterSpec, fn func(quote.Quote) error) error {
	release, err := g.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return g.inner.QueryCandidates(ctx, f, fn)
}

func (g *Guarded) Count(ctx context.Context) (int, error) {
	release, err := g.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	return g.inner.Count(ctx)
}

func (g *Guarded) Insert(ctx context.Context, q quote.Quote) (int64, error) {
	release, err := g.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	return g.inner.Insert(ctx, q)
}

func (g *Guarded) BulkInsert(ctx context.Context, qs []quote.Quote) error {
	release, err := g.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return g.inner.BulkInsert(ctx, qs)
}

func (g *Guarded) InitializeSchema(ctx context.Context) error {
	release, err := g.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return g.inner.InitializeSchema(ctx)
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}
