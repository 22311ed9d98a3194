package store

import (
	"context"
	"errors"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
)

// ErrUnavailable indicates a transient I/O failure from the underlying
// store. Callers may retry; the query façade does so with backoff.
var ErrUnavailable = errors.New("reading store unavailable")

// Store defines the interface for reading storage backends.
// Implementations: memory (testing), badger (production)
type Store interface {
	// Write appends readings. Duplicate (source, timestamp) facts are
	// allowed at this layer; the deduplicator restores canonical form.
	// The badger backend collapses duplicates at write time instead
	// (same key overwrites), which is the same last-write-wins outcome.
	Write(ctx context.Context, readings []reading.Reading) error

	// Query retrieves readings within [Start, End), ordered by timestamp
	// ascending. Readings sharing a timestamp are returned in insertion
	// order, oldest insert first.
	Query(ctx context.Context, req RangeRequest) ([]reading.Reading, error)

	// Upsert replaces every reading at (r.Source, r.Timestamp) with r.
	Upsert(ctx context.Context, r reading.Reading) error

	// Delete removes all readings at (source, ts).
	Delete(ctx context.Context, source string, ts time.Time) error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the storage
	Close() error
}

// RangeRequest specifies which readings to retrieve.
type RangeRequest struct {
	// Time range, [Start, End). A zero Start means from the beginning of
	// the data; a zero End means no upper bound.
	Start time.Time
	End   time.Time

	// Filter by source name (optional, nil = all sources)
	Sources []string

	// Limit number of results (0 = no limit)
	Limit int
}

// Stats provides storage health and usage info.
type Stats struct {
	// Total readings stored, synthetic included
	TotalReadings uint64 `json:"total_readings"`

	// Distinct source names seen
	TotalSources uint64 `json:"total_sources"`

	// Storage size in bytes
	SizeBytes uint64 `json:"size_bytes"`

	// Oldest and newest reading timestamps
	OldestReading time.Time `json:"oldest_reading"`
	NewestReading time.Time `json:"newest_reading"`
}

// InRange reports whether ts falls inside the request's time window.
func (req RangeRequest) InRange(ts time.Time) bool {
	if !req.Start.IsZero() && ts.Before(req.Start) {
		return false
	}
	if !req.End.IsZero() && !ts.Before(req.End) {
		return false
	}
	return true
}

// WantsSource reports whether the request includes the given source.
func (req RangeRequest) WantsSource(name string) bool {
	if len(req.Sources) == 0 {
		return true
	}
	for _, s := range req.Sources {
		if s == name {
			return true
		}
	}
	return false
}
