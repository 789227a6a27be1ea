package leakjournal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a journal database.
// The path should be a file path (e.g., "./reclaimed.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: ":memory:" is per connection, and writes serialize anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reclaimed_handlers (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			event_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			handler TEXT NOT NULL,
			reclaimed_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reclaimed_handlers_event_id
		ON reclaimed_handlers(event_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(rec Record) error {
	if !rec.valid() {
		return ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO reclaimed_handlers (id, event_id, event_name, handler, reclaimed_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.EventID, rec.EventName, rec.Handler, rec.ReclaimedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(eventID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, event_name, handler, reclaimed_at
		FROM reclaimed_handlers
		WHERE event_id = ?
		ORDER BY seq
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{EventID: eventID}
		var reclaimedAt string
		if err := rows.Scan(&rec.ID, &rec.EventName, &rec.Handler, &reclaimedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ReclaimedAt, _ = time.Parse(time.RFC3339Nano, reclaimedAt)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reclaimed_handlers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// CountByEvent implements Store.
func (s *SQLiteStore) CountByEvent() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT event_name, COUNT(*)
		FROM reclaimed_handlers
		GROUP BY event_name
	`)
	if err != nil {
		return nil, fmt.Errorf("count records by event: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[name] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM reclaimed_handlers WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
