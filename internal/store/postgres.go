package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS hitokoto (
	id          BIGSERIAL PRIMARY KEY,
	uuid        TEXT    NOT NULL UNIQUE,
	text        TEXT    NOT NULL,
	type        TEXT    NOT NULL,
	from_source TEXT    NOT NULL,
	from_who    TEXT,
	length      INTEGER NOT NULL,
	created_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hitokoto_type_length ON hitokoto(type, length);`

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore implements Store on Postgres via lib/pq.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to Postgres and verifies the server is reachable.
// A dead backend is a startup failure, not something to discover per request.
func NewPostgresStore(dsn string, maxConns int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &PostgresStore{sqlStore{
		db:        db,
		engine:    "postgres",
		schema:    postgresSchema,
		rebind:    rebindPostgres,
		isUnique:  postgresIsUniqueViolation,
		returning: true,
	}}, nil
}

// rebindPostgres rewrites ? placeholders to $1..$n.
func rebindPostgres(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func postgresIsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
