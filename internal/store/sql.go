package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitokoto-go/hitokoto/internal/quote"
)

const quoteColumns = "id, uuid, text, type, from_source, from_who, length, created_at"

// sqlStore is the engine-independent core shared by SQLiteStore and
// PostgresStore. Queries are written with ? placeholders; rebind translates
// them for engines that number their parameters.
type sqlStore struct {
	db        *sql.DB
	engine    string
	schema    string
	rebind    func(string) string
	isUnique  func(error) bool
	returning bool // engine reports ids via RETURNING instead of LastInsertId
}

// execQueryer is satisfied by both *sql.DB and *sql.Tx.
type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InitializeSchema creates the hitokoto table and its indexes if absent.
func (s *sqlStore) InitializeSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema); err != nil {
		return fmt.Errorf("%s: initialize schema: %w", s.engine, err)
	}
	return nil
}

// Insert validates and writes one quote, returning the assigned id.
func (s *sqlStore) Insert(ctx context.Context, q quote.Quote) (int64, error) {
	if err := prepareForInsert(&q); err != nil {
		return 0, err
	}
	return s.insertOne(ctx, s.db, q)
}

// BulkInsert writes the batch inside one transaction, all-or-nothing.
func (s *sqlStore) BulkInsert(ctx context.Context, qs []quote.Quote) error {
	if len(qs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin bulk insert: %w", s.engine, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range qs {
		q := qs[i]
		if err := prepareForInsert(&q); err != nil {
			return err
		}
		if _, err := s.insertOne(ctx, tx, q); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit bulk insert: %w", s.engine, err)
	}
	return nil
}

func (s *sqlStore) insertOne(ctx context.Context, db execQueryer, q quote.Quote) (int64, error) {
	const base = `INSERT INTO hitokoto (uuid, text, type, from_source, from_who, length, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		q.UUID, q.Text, string(q.Category), q.Source,
		nullableString(q.FromWho), q.Length,
		q.CreatedAt.UTC().Format(time.RFC3339),
	}

	if s.returning {
		var id int64
		err := db.QueryRowContext(ctx, s.rebind(base+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, s.insertErr(q.UUID, err)
		}
		return id, nil
	}

	res, err := db.ExecContext(ctx, s.rebind(base), args...)
	if err != nil {
		return 0, s.insertErr(q.UUID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: insert id: %w", s.engine, err)
	}
	return id, nil
}

func (s *sqlStore) insertErr(uuid string, err error) error {
	if s.isUnique(err) {
		return fmt.Errorf("%s: insert %q: %w", s.engine, uuid, quote.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: insert %q: %w", s.engine, uuid, err)
}

// GetByUUID returns the quote with the given UUID or quote.ErrNotFound.
func (s *sqlStore) GetByUUID(ctx context.Context, uuid string) (quote.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+quoteColumns+" FROM hitokoto WHERE uuid = ? LIMIT 1"), uuid)
	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return quote.Quote{}, fmt.Errorf("%s: uuid %q: %w", s.engine, uuid, quote.ErrNotFound)
	}
	if err != nil {
		return quote.Quote{}, fmt.Errorf("%s: get %q: %w", s.engine, uuid, err)
	}
	return q, nil
}

// QueryCandidates streams every row satisfying f to fn.
func (s *sqlStore) QueryCandidates(ctx context.Context, f quote.FilterSpec, fn func(quote.Quote) error) error {
	query, args := buildCandidateQuery(f)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: query candidates: %w", s.engine, err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return fmt.Errorf("%s: scan candidate: %w", s.engine, err)
		}
		if err := fn(q); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: query candidates: %w", s.engine, err)
	}
	return nil
}

// Count returns the total number of stored quotes.
func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hitokoto").Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count: %w", s.engine, err)
	}
	return n, nil
}

// Close shuts down the connection pool.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// buildCandidateQuery assembles the filtered scan. Conditions mirror the
// FilterSpec semantics: category membership plus inclusive length bounds.
func buildCandidateQuery(f quote.FilterSpec) (string, []any) {
	var (
		conds = []string{"1=1"}
		args  []any
	)
	if len(f.Categories) > 0 {
		marks := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			marks[i] = "?"
			args = append(args, string(c))
		}
		conds = append(conds, "type IN ("+strings.Join(marks, ",")+")")
	}
	if f.MinLength > 0 {
		conds = append(conds, "length >= ?")
		args = append(args, f.MinLength)
	}
	if f.MaxLength > 0 {
		conds = append(conds, "length <= ?")
		args = append(args, f.MaxLength)
	}
	return "SELECT " + quoteColumns + " FROM hitokoto WHERE " + strings.Join(conds, " AND "), args
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (quote.Quote, error) {
	var (
		q         quote.Quote
		category  string
		fromWho   sql.NullString
		createdAt string
	)
	if err := row.Scan(&q.ID, &q.UUID, &q.Text, &category, &q.Source, &fromWho, &q.Length, &createdAt); err != nil {
		return quote.Quote{}, err
	}
	q.Category = quote.Category(category)
	if fromWho.Valid {
		q.FromWho = fromWho.String
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("malformed created_at %q: %w", createdAt, err)
	}
	q.CreatedAt = t
	return q, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
