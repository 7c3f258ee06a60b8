// Package selector draws one uniformly-random quote from whatever backend is
// active, subject to a caller-supplied filter.
package selector

import (
	"context"
	"math/rand/v2"

	"github.com/hitokoto-go/hitokoto/internal/quote"
	"github.com/hitokoto-go/hitokoto/internal/store"
)

// Selector holds the immutable active-backend handle, decided at startup.
type Selector struct {
	backend store.Backend
}

// New creates a Selector over the given backend.
func New(b store.Backend) *Selector {
	return &Selector{backend: b}
}

// Pick returns one quote matching f, chosen uniformly at random via
// single-pass reservoir sampling over the streamed candidate set: the n-th
// candidate replaces the reservoir with probability 1/n, so nothing is
// materialized and every candidate is equally likely. Calls are independent;
// there is no seeding contract.
//
// An empty candidate set yields quote.ErrNoMatch, an expected outcome the
// caller handles, not a system error.
func (s *Selector) Pick(ctx context.Context, f quote.FilterSpec) (quote.Quote, error) {
	var (
		chosen quote.Quote
		seen   uint64
	)
	err := s.backend.QueryCandidates(ctx, f, func(q quote.Quote) error {
		seen++
		if rand.Uint64N(seen) == 0 {
			chosen = q
		}
		return nil
	})
	if err != nil {
		return quote.Quote{}, err
	}
	if seen == 0 {
		return quote.Quote{}, quote.ErrNoMatch
	}
	return chosen, nil
}
