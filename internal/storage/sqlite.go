// Package storage persists the wakehold session audit log.
//
// Every run records when holds were acquired, which categories were
// held, which termination condition governed the run, and how it
// ended. The log is history only: nothing in it is ever used to
// resurrect holds across runs.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	// Pure-Go SQLite driver, imported for its driver registration.
	_ "modernc.org/sqlite"
)

// SQLiteStore records wake sessions in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB      // Database connection handle.
	mu sync.RWMutex // Guards all database operations for thread safety.
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// It initializes the schema if the tables don't exist.
// Use ":memory:" for an in-memory database (useful for testing).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// busy_timeout handles the history subcommand running while a
	// wakehold session is still writing.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Printf("storage: session database ready at %s", path)
	return store, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
