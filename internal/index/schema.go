// Package index provides a SQLite-backed index of trips and their items
// with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS trips (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	start_date TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	day_count  INTEGER NOT NULL DEFAULT 0,
	item_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
	trip_id  TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
	id       TEXT NOT NULL,
	day      INTEGER NOT NULL,
	ord      INTEGER NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	notes    TEXT NOT NULL DEFAULT '',
	lat      REAL,
	lng      REAL,
	PRIMARY KEY (trip_id, id)
);

CREATE INDEX IF NOT EXISTS idx_items_trip_day ON items(trip_id, day, ord);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
