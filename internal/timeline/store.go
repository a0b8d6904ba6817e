package timeline

import "telemetry_dashboard/internal/models"

// DefaultCapacity is the number of records the dashboard keeps in memory.
const DefaultCapacity = 100

// Store is a bounded, newest-first buffer of telemetry records. It is not safe
// for concurrent use; the engine loop is its only writer and hands copies to
// readers.
type Store struct {
	capacity int
	records  []models.TelemetryRecord
}

// NewStore returns an empty store holding at most capacity records
// (DefaultCapacity if capacity <= 0).
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		records:  make([]models.TelemetryRecord, 0, capacity),
	}
}

// ReplaceAll sets the content to records, keeping only the first Capacity
// entries. records must already be newest-first.
func (s *Store) ReplaceAll(records []models.TelemetryRecord) {
	n := min(len(records), s.capacity)
	next := make([]models.TelemetryRecord, n, s.capacity)
	copy(next, records[:n])
	s.records = next
}

// Prepend inserts r at the front and evicts the oldest record on overflow.
func (s *Store) Prepend(r models.TelemetryRecord) {
	if len(s.records) < s.capacity {
		s.records = append(s.records, models.TelemetryRecord{})
	}
	copy(s.records[1:], s.records[:len(s.records)-1])
	s.records[0] = r
}

// Snapshot returns a copy of the current content, newest first.
func (s *Store) Snapshot() []models.TelemetryRecord {
	out := make([]models.TelemetryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of records held.
func (s *Store) Len() int { return len(s.records) }

// Capacity reports the eviction bound.
func (s *Store) Capacity() int { return s.capacity }
