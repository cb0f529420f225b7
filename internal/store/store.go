// Package store is the persistence layer behind pkg/tempr: a SQLite-backed
// fact store and graph store sharing one database connection, following the
// donor's pkg/core.SQLiteStore (WAL + pragma tuning + FTS5 trigger-synced
// keyword index) and pkg/graph.GraphStore (typed edges over a separate but
// related table) collapsed into one package because tempr's fact and graph
// stores are always opened and closed together.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection used by both the fact store and the
// graph store operations (facts.go, graph.go, entities.go).
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if absent) a SQLite database at path and applies the
// schema, following the donor's pkg/core.Init DSN tuning. path should be a
// real filesystem path (WAL mode requires one); tests use a t.TempDir()
// file rather than ":memory:" so the connection pool doesn't fragment
// across separate anonymous in-memory databases.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("store: use of closed store")
	}
	return nil
}
