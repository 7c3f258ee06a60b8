// Package store provides quote persistence: a durable relational Store with
// one implementation per engine (SQLite, Postgres), an optional fully-loaded
// in-memory Mirror, and a pool-guarded decorator that bounds concurrent
// backend operations.
//
// Exactly one Backend is active for a process lifetime. It is chosen during
// startup and injected into request-handling code; nothing resolves it at
// request time.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitokoto-go/hitokoto/internal/quote"
)

// Backend is the read side served on the hot path. Both SQL stores and the
// Mirror implement it.
type Backend interface {
	// GetByUUID returns the quote with the given UUID, or quote.ErrNotFound.
	GetByUUID(ctx context.Context, uuid string) (quote.Quote, error)

	// QueryCandidates streams every quote satisfying f to fn, in no
	// particular order. A non-nil error from fn aborts the scan and is
	// returned unchanged.
	QueryCandidates(ctx context.Context, f quote.FilterSpec, fn func(quote.Quote) error) error

	// Count returns the total number of stored quotes.
	Count(ctx context.Context) (int, error)
}

// Store is the durable source of truth.
type Store interface {
	Backend

	// Insert validates and durably writes one quote, returning the
	// store-assigned id. Fails with quote.ErrDuplicateKey or
	// quote.ErrInvalidCategory.
	Insert(ctx context.Context, q quote.Quote) (int64, error)

	// BulkInsert writes a batch inside a single transaction. The policy is
	// all-or-nothing: the first invalid or colliding row rolls back the
	// whole batch and no concurrent reader ever observes a partial one.
	BulkInsert(ctx context.Context, qs []quote.Quote) error

	// InitializeSchema creates the table and indexes if absent. Idempotent,
	// never destroys existing data.
	InitializeSchema(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// prepareForInsert validates q and fills the store-computed fields in place.
func prepareForInsert(q *quote.Quote) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("store: empty quote text")
	}
	if strings.TrimSpace(q.Source) == "" {
		return fmt.Errorf("store: missing source attribution")
	}
	if !q.Category.Valid() {
		return fmt.Errorf("store: category %q: %w", string(q.Category), quote.ErrInvalidCategory)
	}
	if q.UUID == "" {
		q.UUID = quote.NewUUID()
	}
	q.Length = quote.TextLength(q.Text)
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	return nil
}
