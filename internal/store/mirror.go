package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitokoto-go/hitokoto/internal/quote"
)

// Mirror is a fully-loaded in-process read replica of the corpus. It is
// populated once, before serving begins, and read-only afterward, so reads
// take no locks. Corpus changes require a restart.
//
// Rows are bucketed by category so a filtered scan touches only the
// categories the filter names, with a secondary uuid index for point lookups.
type Mirror struct {
	byCategory map[quote.Category][]quote.Quote
	byUUID     map[string]quote.Quote
	total      int
}

// LoadMirror reads every row from src synchronously. Any load failure
// (backend unreachable, malformed row, duplicate uuid, empty corpus) is
// returned as an error; the caller must treat it as fatal to startup rather
// than a degraded mode.
func LoadMirror(ctx context.Context, src Backend) (*Mirror, error) {
	m := &Mirror{
		byCategory: make(map[quote.Category][]quote.Quote),
		byUUID:     make(map[string]quote.Quote),
	}

	err := src.QueryCandidates(ctx, quote.FilterSpec{}, func(q quote.Quote) error {
		if _, dup := m.byUUID[q.UUID]; dup {
			return fmt.Errorf("mirror: duplicate uuid %q in corpus", q.UUID)
		}
		if !q.Category.Valid() {
			return fmt.Errorf("mirror: row %q has invalid category %q", q.UUID, string(q.Category))
		}
		m.byUUID[q.UUID] = q
		m.byCategory[q.Category] = append(m.byCategory[q.Category], q)
		m.total++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: load: %w", err)
	}
	if m.total == 0 {
		return nil, errors.New("mirror: corpus is empty")
	}
	return m, nil
}

// GetByUUID serves the point lookup from the uuid index.
func (m *Mirror) GetByUUID(_ context.Context, uuid string) (quote.Quote, error) {
	q, ok := m.byUUID[uuid]
	if !ok {
		return quote.Quote{}, fmt.Errorf("mirror: uuid %q: %w", uuid, quote.ErrNotFound)
	}
	return q, nil
}

// QueryCandidates streams matching quotes from the category buckets. The scan
// is proportional to the size of the named categories, not the corpus.
func (m *Mirror) QueryCandidates(_ context.Context, f quote.FilterSpec, fn func(quote.Quote) error) error {
	emit := func(bucket []quote.Quote) error {
		for _, q := range bucket {
			if q.Length < f.MinLength {
				continue
			}
			if f.MaxLength > 0 && q.Length > f.MaxLength {
				continue
			}
			if err := fn(q); err != nil {
				return err
			}
		}
		return nil
	}

	if len(f.Categories) == 0 {
		for _, bucket := range m.byCategory {
			if err := emit(bucket); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range f.Categories {
		if err := emit(m.byCategory[c]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of mirrored quotes.
func (m *Mirror) Count(context.Context) (int, error) {
	return m.total, nil
}
