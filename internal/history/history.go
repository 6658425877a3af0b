// Package history provides a SQLite-backed query log for ragline. Every
// answered question is persisted with its answer and the sources that were
// retrieved, keyed by collection, so operators can review what the system
// said and which documents backed it up.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is a single answered question.
type Entry struct {
	// Collection is the vector store collection the question ran against.
	Collection string
	// Question is the user's question verbatim.
	Question string
	// Answer is the model's generated answer.
	Answer string
	// Sources lists the document sources of the retrieved context.
	Sources []string
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// QueryLog persists and retrieves answered questions keyed by collection.
// Implementations must be safe for concurrent use.
type QueryLog interface {
	// Append persists a single answered question.
	Append(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries for the collection, ordered
	// oldest-first. If fewer than n entries exist, all are returned.
	Recent(ctx context.Context, collection string, n int) ([]Entry, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteLog is a QueryLog backed by a local SQLite database.
type SQLiteLog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the query history database.
// It resolves to ~/.ragline/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragline")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteLog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	l := &SQLiteLog{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// migrate creates the schema if it does not already exist.
func (l *SQLiteLog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queries (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection   TEXT    NOT NULL,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      TEXT    NOT NULL DEFAULT '[]',  -- JSON array of source strings
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_queries_collection_created
    ON queries (collection, created_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append persists a single answered question.
func (l *SQLiteLog) Append(ctx context.Context, e Entry) error {
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return fmt.Errorf("history: encode sources: %w", err)
	}
	const q = `INSERT INTO queries (collection, question, answer, sources, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q, e.Collection, e.Question, e.Answer, string(sources), time.Now().Unix()); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries for the collection, ordered
// oldest-first. Uses a subquery to select the tail then re-order for display.
func (l *SQLiteLog) Recent(ctx context.Context, collection string, n int) ([]Entry, error) {
	const q = `
SELECT collection, question, answer, sources, created_at FROM (
    SELECT id, collection, question, answer, sources, created_at
    FROM   queries
    WHERE  collection = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := l.db.QueryContext(ctx, q, collection, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sources string
		var ts int64
		if err := rows.Scan(&e.Collection, &e.Question, &e.Answer, &sources, &ts); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("history: decode sources: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
