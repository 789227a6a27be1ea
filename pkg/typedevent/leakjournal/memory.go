package leakjournal

import (
	"sync"
)

// MemoryStore keeps records in memory.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store.
func (m *MemoryStore) Save(rec Record) error {
	if !rec.valid() {
		return ErrInvalidRecord
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	rec.ReclaimedAt = rec.ReclaimedAt.UTC()
	m.records = append(m.records, rec)
	return nil
}

// List implements Store. Records keep insertion order.
func (m *MemoryStore) List(eventID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var out []Record
	for _, rec := range m.records {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.records), nil
}

// CountByEvent implements Store.
func (m *MemoryStore) CountByEvent() (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	counts := make(map[string]int)
	for _, rec := range m.records {
		counts[rec.EventName]++
	}
	return counts, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	kept := m.records[:0]
	for _, rec := range m.records {
		if rec.EventID != eventID {
			kept = append(kept, rec)
		}
	}
	clear(m.records[len(kept):])
	m.records = kept
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}
