// Package db persists projects, measurement cycles and their fitted flux
// statistics in sqlite. The analysis core performs no I/O; everything that
// survives a restart round-trips through this package.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path and applies the
// connection pragmas. Schema creation is the job of the migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
		PRAGMA foreign_keys = ON;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &DB{db}, nil
}

// NewMemoryDB opens an in-memory database, used by tests.
func NewMemoryDB() (*DB, error) {
	return NewDB(":memory:")
}
