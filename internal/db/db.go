// Package db provides SQLite database initialization and access.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// pragmas applied to every connection. The busy timeout covers the window
// where the dispatch loop and the API server write concurrently.
const openPragmas = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"

// DefaultPath returns the default database path: ~/.openhouse/openhouse.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".openhouse", "openhouse.db"), nil
}

// Open opens (or creates) a SQLite database at the given path with WAL mode
// and foreign keys enabled, and brings the schema up to date.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	database, err := sql.Open("sqlite3", path+openPragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(database); err != nil {
		if closeErr := database.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (also failed to close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return database, nil
}
