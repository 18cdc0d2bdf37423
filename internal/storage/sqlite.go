// Package storage is the transactional adapter over the embedded SQLite
// log store: schema migration, connection pool, pragma tuning, batch
// insert, retention trim, and the read queries behind the query API.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultPath is used when no log_db path is configured.
const DefaultPath = "logs.db"

// Config holds the SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string
}

// Open creates or opens the SQLite database file at cfg.Path, enables
// WAL mode for concurrent read throughput while writes are serialized
// through a single connection, and applies the schema.
func Open(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// WAL mode allows concurrent reads while writing; the large cache
	// keeps the hot index pages resident for the admission reconciler
	// and query API reads.
	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=-64000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite only allows one writer at a time; a single pooled
	// connection avoids SQLITE_BUSY churn instead of retrying around it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return store, nil
}

// FileSize returns the on-disk size in bytes of the database file at
// path. WAL and shared-memory sidecar files are not counted — the
// query API reports the size of the logical store, not its journal.
func FileSize(path string) (int64, error) {
	if path == "" {
		path = DefaultPath
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}
