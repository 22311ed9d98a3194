/*
Package store provides the pluggable storage abstraction for GridTrack
generation readings.

# Store Interface

GridTrack uses an interface-based design to support multiple backends:
  - memory: In-memory storage for testing and ephemeral workloads
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

All backends implement the Store interface:

	type Store interface {
	    Write(ctx context.Context, readings []reading.Reading) error
	    Query(ctx context.Context, req RangeRequest) ([]reading.Reading, error)
	    Upsert(ctx context.Context, r reading.Reading) error
	    Delete(ctx context.Context, source string, ts time.Time) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Ordering Contract

Query returns readings ordered by timestamp ascending. Readings that share
a timestamp come back in insertion order, oldest insert first. The
deduplicator relies on this to apply its last-write-wins policy
deterministically: the final reading of a duplicate run is the most
recently inserted one.

# Writers vs Readers

Write, Upsert, and Delete belong to the single-writer maintenance path
(ingestion, deduplication, interpolation). Aggregation queries only call
Query and never mutate. Each backend provides snapshot-consistent reads,
so a query issued while a maintenance pass is in flight sees either the
pre- or post-maintenance state, never a partially deduplicated mix.

# Usage Example

	store, err := badger.New(badger.Config{Path: "./data"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	err = store.Write(ctx, []reading.Reading{
	    {Source: "solar", Value: 2450.5, Timestamp: time.Now().UTC()},
	})

	results, err := store.Query(ctx, store.RangeRequest{
	    Start:   time.Now().Add(-24 * time.Hour),
	    End:     time.Now(),
	    Sources: []string{"solar", "wind_onshore"},
	})

# See Also

  - memory.New() for in-memory storage
  - badger.New() for persistent BadgerDB storage
  - pkg/dedup and pkg/interpolate for the maintenance passes
*/
package store
