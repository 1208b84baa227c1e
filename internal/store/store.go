// Package store provides the embedded SQLite persistence layer for
// instapaper-to-sqlite.
//
// Tables are not declared up front. Rows are plain column/value maps and
// UpsertAll creates a table on first use, inferring column types from the
// values it sees. With UpsertOptions.Alter set, later rows carrying attributes
// that have no column yet extend the table on the fly.
//
// Layout after a full sync:
//   - folders:   primary key folder_id
//   - bookmarks: primary key bookmark_id, folder_id -> folders.folder_id,
//     index on time
//
// Every UpsertAll call commits on its own, so an interrupted sync keeps all
// batches written before the interruption.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrNoSuchTable is returned when an operation targets a missing table.
	ErrNoSuchTable = errors.New("no such table")
	// ErrNoSuchColumn is returned when an operation targets a missing column.
	ErrNoSuchColumn = errors.New("no such column")
	// ErrForeignKeyExists is returned by AddForeignKey when the column
	// already references a table.
	ErrForeignKeyExists = errors.New("foreign key already exists")
)

// Row is a single record keyed by column name.
type Row map[string]any

// DB wraps the SQLite connection used for one export database.
type DB struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open creates a new database connection at the specified path.
//
// The database file and its parent directory are created when missing.
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open("instapaper.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// One writer, one process. PRAGMAs below are per connection, so keep a
	// single connection to make them stick.
	conn.SetMaxOpenConns(1)

	db := &DB{
		conn:   conn,
		path:   path,
		logger: logger,
	}

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes land in the main file.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("WARNING: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// TableExists reports whether the named table is present.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return count > 0, nil
}

// Count returns the number of rows in table.
func (db *DB) Count(ctx context.Context, table string) (int, error) {
	if err := db.requireTable(ctx, table); err != nil {
		return 0, err
	}

	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// Rows returns every row of table in rowid order.
func (db *DB) Rows(ctx context.Context, table string) ([]Row, error) {
	if err := db.requireTable(ctx, table); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Query runs an arbitrary read query and returns the result as rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows converts a result set into rows keyed by column name.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			// TEXT comes back as []byte from some drivers; keep rows printable.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

func (db *DB) requireTable(ctx context.Context, table string) error {
	ok, err := db.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchTable, table)
	}
	return nil
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
