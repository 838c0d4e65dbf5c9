// Package sqlite implements the repository interfaces on an embedded
// SQLite database, using the pure-Go modernc.org/sqlite driver (no CGo,
// cross-compiles everywhere Go does).
//
// The store is a process-wide handle created once in the composition root
// and passed down by reference; tests open their own ":memory:" instances
// so they are fully isolated from each other.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the row-shaping
// helpers can run either standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Surface a bad path or permissions problem now rather than on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress; the
	// default rollback journal locks the whole file per write.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. The purge sweep relies
	// on ON DELETE CASCADE to take fragments and categories with the
	// snippet row, so this pragma is load-bearing.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent; column additions go through addColumnIfNotExists so the
// same binary can upgrade older database files in place.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER NOT NULL DEFAULT 0,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL CHECK (length(title) <= 255),
			description TEXT NOT NULL DEFAULT '',
			updated_at  DATETIME NOT NULL,
			user_id     TEXT NOT NULL REFERENCES users(id),
			is_public   INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_user_id ON snippets(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	// expiry_date is the lifecycle column: NULL = active, a future
	// timestamp = in the recycle bin, a past timestamp = awaiting purge.
	// Added as an ALTER so database files from before the recycle bin
	// existed upgrade in place.
	if err := db.addColumnIfNotExists("snippets", "expiry_date",
		"DATETIME DEFAULT NULL"); err != nil {
		return fmt.Errorf("adding expiry_date to snippets: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snippets_expiry_date
			ON snippets(expiry_date) WHERE expiry_date IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating snippets expiry index: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS fragments (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			file_name  TEXT NOT NULL,
			code       TEXT NOT NULL DEFAULT '',
			language   TEXT NOT NULL DEFAULT 'plaintext',
			position   INTEGER NOT NULL CHECK (position >= 0)
		);
		CREATE INDEX IF NOT EXISTS idx_fragments_snippet_id ON fragments(snippet_id);
	`)
	if err != nil {
		return fmt.Errorf("creating fragments table: %w", err)
	}

	// Category labels are stored lowercased and trimmed; the UNIQUE
	// constraint makes the per-snippet set duplicate-free at the storage
	// level, not just in query results.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			name       TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 64),
			UNIQUE (snippet_id, name)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating categories table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS shared_snippets (
			id         TEXT PRIMARY KEY,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_shared_snippets_snippet_id
			ON shared_snippets(snippet_id);
	`)
	if err != nil {
		return fmt.Errorf("creating shared_snippets table: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE migrations idempotent; ALTER
// errors if the column already exists, so check pragma_table_info first.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
