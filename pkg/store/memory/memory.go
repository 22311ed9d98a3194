package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Store keeps readings in memory. Data is lost on restart.
// Useful for testing and development.
type Store struct {
	readings []reading.Reading
	mu       sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Store {
	return &Store{
		readings: make([]reading.Reading, 0, 10000),
	}
}

// Write appends readings. Duplicates are kept until a dedup pass runs.
func (s *Store) Write(ctx context.Context, readings []reading.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings = append(s.readings, readings...)
	return nil
}

// Query retrieves readings matching the request, ordered by timestamp
// ascending. The sort is stable, so readings at the same timestamp keep
// their insertion order.
func (s *Store) Query(ctx context.Context, req store.RangeRequest) ([]reading.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []reading.Reading
	for _, r := range s.readings {
		if !req.InRange(r.Timestamp) {
			continue
		}
		if !req.WantsSource(r.Source) {
			continue
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// Upsert replaces every reading at (r.Source, r.Timestamp) with r.
func (s *Store) Upsert(ctx context.Context, r reading.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.readings[:0]
	for _, existing := range s.readings {
		if existing.Source == r.Source && existing.Timestamp.Equal(r.Timestamp) {
			continue
		}
		kept = append(kept, existing)
	}
	s.readings = append(kept, r)
	return nil
}

// Delete removes all readings at (source, ts).
func (s *Store) Delete(ctx context.Context, source string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.readings[:0]
	for _, r := range s.readings {
		if r.Source == source && r.Timestamp.Equal(ts) {
			continue
		}
		kept = append(kept, r)
	}
	s.readings = kept
	return nil
}

// Close is a no-op for memory storage
func (s *Store) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &store.Stats{
		TotalReadings: uint64(len(s.readings)),
	}

	if len(s.readings) == 0 {
		return stats, nil
	}

	// Count distinct sources and find min/max timestamps in single pass
	sources := make(map[string]bool)
	oldest := s.readings[0].Timestamp
	newest := s.readings[0].Timestamp

	for _, r := range s.readings {
		sources[r.Source] = true

		if r.Timestamp.Before(oldest) {
			oldest = r.Timestamp
		}
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}

	stats.TotalSources = uint64(len(sources))
	stats.OldestReading = oldest
	stats.NewestReading = newest

	// Rough size estimate (each reading ~60 bytes)
	stats.SizeBytes = uint64(len(s.readings)) * 60

	return stats, nil
}
