// Package history persists recent search strings across sessions. The
// store is a small sqlite database: most-recent-first, deduplicated by
// exact string match, capped at 10 entries. It is read once at widget
// mount and written on every list change.
package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// MaxEntries is the hard cap on retained searches.
const MaxEntries = 10

// Store is the durable recent-search store. Safe for concurrent use via
// the underlying database/sql pool.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath. Use ":memory:"
// for an ephemeral store in tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS recent_searches (
			query TEXT PRIMARY KEY,
			searched_at INTEGER NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records a search string as the most recent entry, replacing any
// exact duplicate, and prunes the store beyond MaxEntries. Blank strings
// are ignored.
func (s *Store) Add(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO recent_searches (query, searched_at) VALUES (?, ?)`,
		query, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting search: %w", err)
	}

	_, err = tx.Exec(
		`DELETE FROM recent_searches WHERE query NOT IN (
			SELECT query FROM recent_searches ORDER BY searched_at DESC LIMIT ?
		)`, MaxEntries,
	)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	committed = true
	return nil
}

// Recent returns the stored searches, most recent first.
func (s *Store) Recent() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT query FROM recent_searches ORDER BY searched_at DESC LIMIT ?`,
		MaxEntries,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Clear removes every stored search.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM recent_searches`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
