// Package leakjournal records weak handlers that were reclaimed by the
// garbage collector, for leak diagnostics.
//
// A reclaimed handler usually means a subscriber forgot to keep its
// *Handler alive, or forgot to detach. Watch subscribes a Store to a weak
// event's HandlerFinalized notifications so these can be inspected later.
// Event delivery itself is never persisted.
package leakjournal

import (
	"errors"
	"time"

	"github.com/randalmurphal/typedevent/pkg/typedevent/config"
)

// Store persists reclamation records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save appends a record. Returns ErrInvalidRecord if EventID or ID is
	// empty.
	Save(rec Record) error

	// List returns all records for an event, oldest first.
	// Returns empty slice (not error) if the event has no records.
	List(eventID string) ([]Record, error)

	// Count returns the total number of records.
	Count() (int, error)

	// CountByEvent returns record counts keyed by event name.
	CountByEvent() (map[string]int, error)

	// Delete removes all records for an event.
	// Returns nil if the event has no records.
	Delete(eventID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Record describes one reclaimed handler.
type Record struct {
	ID          string
	EventID     string
	EventName   string
	Handler     string
	ReclaimedAt time.Time
}

// Sentinel errors for journal operations.
var (
	// ErrInvalidRecord indicates a record without an ID or event ID.
	ErrInvalidRecord = errors.New("journal record missing id or event id")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)

func (r Record) valid() bool {
	return r.ID != "" && r.EventID != ""
}

// Open returns a SQLiteStore at path, or a MemoryStore if path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}

// OpenSettings opens the journal named by s.JournalPath.
func OpenSettings(s config.Settings) (Store, error) {
	return Open(s.JournalPath)
}
