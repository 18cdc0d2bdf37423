package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"gomodel/internal/logrecord"
)

// Store is the SQLite-backed log store. All methods are safe for
// concurrent use; SQLite itself serializes writers through the single
// pooled connection opened by Open.
type Store struct {
	db   *sql.DB
	path string
}

// HashCount pairs a stream hash with its row count, as returned by
// TopHashesWithCounts — the shape the admission cache is reseeded
// from when a retention sweep finds it over its cardinality cap.
type HashCount struct {
	Hash  string
	Count int64
}

// columnsPerRecord is the number of bound parameters one row of the
// logs table consumes in an INSERT.
const columnsPerRecord = 8

// maxSQLiteParams is SQLite's default compiled-in limit on bound
// parameters per statement (SQLITE_MAX_VARIABLE_NUMBER).
const maxSQLiteParams = 999

// maxRecordsPerBatch caps how many rows one INSERT statement can bind
// without tripping maxSQLiteParams.
const maxRecordsPerBatch = maxSQLiteParams / columnsPerRecord

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS logs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			level       TEXT NOT NULL,
			message     TEXT NOT NULL,
			target      TEXT NOT NULL,
			module_path TEXT,
			file        TEXT,
			line        INTEGER,
			hash        TEXT NOT NULL,
			timestamp   TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create logs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_logs_hash_timestamp ON logs (hash, timestamp)`)
	if err != nil {
		return fmt.Errorf("create hash/timestamp index: %w", err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path this store was opened against.
func (s *Store) Path() string {
	return s.path
}

// InsertBatch writes records in a single transaction, chunked to stay
// under SQLite's bound-parameter limit. All records in the batch are
// committed together or not at all; a failure rolls back the whole
// batch rather than partially persisting it.
func (s *Store) InsertBatch(records []logrecord.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(records); start += maxRecordsPerBatch {
		end := start + maxRecordsPerBatch
		if end > len(records) {
			end = len(records)
		}
		if err := insertChunk(tx, records[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func insertChunk(tx *sql.Tx, chunk []logrecord.Record) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO logs (level, message, target, module_path, file, line, hash, timestamp) VALUES ")

	args := make([]interface{}, 0, len(chunk)*columnsPerRecord)
	for i, rec := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, rec.Level, rec.Message, rec.Target, rec.ModulePath, rec.File, rec.Line, rec.Hash, rec.Timestamp)
	}

	if _, err := tx.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert chunk of %d records: %w", len(chunk), err)
	}
	return nil
}

// DistinctHashes returns every hash currently represented in the
// store, in no particular order.
func (s *Store) DistinctHashes() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT hash FROM logs`)
	if err != nil {
		return nil, fmt.Errorf("query distinct hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// TopHashesWithCounts returns the limit hashes with the most rows,
// counts descending. It is the ground truth the admission cache
// reseeds from during retention sweeps.
func (s *Store) TopHashesWithCounts(limit int) ([]HashCount, error) {
	rows, err := s.db.Query(`
		SELECT hash, COUNT(*) AS c FROM logs
		GROUP BY hash
		ORDER BY c DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top hashes: %w", err)
	}
	defer rows.Close()

	var out []HashCount
	for rows.Next() {
		var hc HashCount
		if err := rows.Scan(&hc.Hash, &hc.Count); err != nil {
			return nil, fmt.Errorf("scan hash count: %w", err)
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}

// CountForHash returns the number of rows stored for hash.
func (s *Store) CountForHash(hash string) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM logs WHERE hash = ?`, hash).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count for hash %q: %w", hash, err)
	}
	return count, nil
}

// TrimHash deletes the deleteN oldest rows (by timestamp) for hash.
// SQLite's DELETE does not support ORDER BY/LIMIT without a
// compile-time option, so the oldest rows are selected by id first.
func (s *Store) TrimHash(hash string, deleteN int64) error {
	if deleteN <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM logs WHERE id IN (
			SELECT id FROM logs WHERE hash = ? ORDER BY timestamp ASC LIMIT ?
		)
	`, hash, deleteN)
	if err != nil {
		return fmt.Errorf("trim hash %q: %w", hash, err)
	}
	return nil
}

// SelectByHash returns rows for hash, optionally bounded by
// [start, end] (both inclusive) on the RFC3339 timestamp string and capped at limit
// rows (0 means unbounded), newest first.
func (s *Store) SelectByHash(hash string, start, end *string, limit *int) ([]logrecord.Record, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, level, message, target, module_path, file, line, hash, timestamp FROM logs WHERE hash = ?`)
	args := []interface{}{hash}

	if start != nil {
		sb.WriteString(` AND timestamp >= ?`)
		args = append(args, *start)
	}
	if end != nil {
		sb.WriteString(` AND timestamp <= ?`)
		args = append(args, *end)
	}
	sb.WriteString(` ORDER BY timestamp DESC`)
	if limit != nil && *limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, *limit)
	}

	rows, err := s.db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select by hash %q: %w", hash, err)
	}
	defer rows.Close()

	var out []logrecord.Record
	for rows.Next() {
		var rec logrecord.Record
		if err := rows.Scan(&rec.ID, &rec.Level, &rec.Message, &rec.Target, &rec.ModulePath, &rec.File, &rec.Line, &rec.Hash, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MinTimestamp returns the earliest timestamp stored across all
// streams, or ok=false if the store is empty.
func (s *Store) MinTimestamp() (ts string, ok bool, err error) {
	var v sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(timestamp) FROM logs`).Scan(&v); err != nil {
		return "", false, fmt.Errorf("min timestamp: %w", err)
	}
	return v.String, v.Valid, nil
}

// MaxTimestamp returns the latest timestamp stored across all
// streams, or ok=false if the store is empty.
func (s *Store) MaxTimestamp() (ts string, ok bool, err error) {
	var v sql.NullString
	if err := s.db.QueryRow(`SELECT MAX(timestamp) FROM logs`).Scan(&v); err != nil {
		return "", false, fmt.Errorf("max timestamp: %w", err)
	}
	return v.String, v.Valid, nil
}

// TotalCount returns the total number of rows stored across all
// streams.
func (s *Store) TotalCount() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("total count: %w", err)
	}
	return count, nil
}

// PurgeAll deletes every row in the store. It is invoked only through
// the operator-facing purge endpoint, never by the retention sweeper.
func (s *Store) PurgeAll() error {
	if _, err := s.db.Exec(`DELETE FROM logs`); err != nil {
		return fmt.Errorf("purge all: %w", err)
	}
	return nil
}
