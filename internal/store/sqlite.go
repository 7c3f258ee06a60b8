package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS hitokoto (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid        TEXT    NOT NULL UNIQUE,
	text        TEXT    NOT NULL,
	type        TEXT    NOT NULL,
	from_source TEXT    NOT NULL,
	from_who    TEXT,
	length      INTEGER NOT NULL,
	created_at  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hitokoto_type_length ON hitokoto(type, length);`

// SQLiteStore implements Store using pure-Go SQLite (modernc.org/sqlite).
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (or creates) a SQLite-backed quote store.
// Use ":memory:" for an ephemeral in-memory database.
func NewSQLiteStore(path string, maxConns int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// WAL keeps concurrent readers off the writer's back during bulk loads.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if path == ":memory:" {
		// Each pooled connection would otherwise see its own private
		// in-memory database.
		db.SetMaxOpenConns(1)
	} else if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	return &SQLiteStore{sqlStore{
		db:       db,
		engine:   "sqlite",
		schema:   sqliteSchema,
		rebind:   func(q string) string { return q },
		isUnique: sqliteIsUniqueViolation,
	}}, nil
}

func sqliteIsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
