package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Store implements store.Store using BadgerDB (LSM tree).
//
// Keys are [xxhash64(source)][unix-nano], so a (source, timestamp) pair maps
// to exactly one key. Writing a duplicate overwrites in place, which makes
// this backend last-write-wins by construction; the dedup pass over it is a
// no-op, which is the idempotence the maintenance contract asks for.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = defaults).
	// Recommended: 64-128 MB for local dev, 256-512 MB for production
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Conservative memory limits: BadgerDB has multiple unbounded memory
	// consumers and can reach 1-2 GB without them.
	var memTableSize int64
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3 // ~33% for memtable
	} else {
		// 16 MB memtable is the minimum for decent performance; below
		// that flush churn dominates.
		memTableSize = 16 * 1024 * 1024
	}

	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20) // 64 MB value log files instead of default 2GB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// Write stores readings. A reading whose (source, timestamp) key already
// exists replaces the stored value.
func (s *Store) Write(ctx context.Context, readings []reading.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Update(func(txn *badger.Txn) error {
			for i, r := range readings {
				// Check context periodically (every 100 readings)
				if i%100 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				value, err := json.Marshal(r)
				if err != nil {
					return fmt.Errorf("failed to encode reading: %w", err)
				}
				if err := txn.Set(makeKey(r.Source, r.Timestamp), value); err != nil {
					return fmt.Errorf("failed to write reading: %w", err)
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		return wrapUnavailable(err)
	case <-ctx.Done():
		return fmt.Errorf("write operation cancelled: %w", ctx.Err())
	}
}

// Upsert replaces the reading at (r.Source, r.Timestamp).
func (s *Store) Upsert(ctx context.Context, r reading.Reading) error {
	return s.Write(ctx, []reading.Reading{r})
}

// Delete removes the reading at (source, ts).
func (s *Store) Delete(ctx context.Context, source string, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(source, ts))
	})
	return wrapUnavailable(err)
}

// Query retrieves readings matching the request, ordered by timestamp
// ascending. When sources are named, each is scanned by key prefix; a
// request without sources falls back to a full scan.
func (s *Store) Query(ctx context.Context, req store.RangeRequest) ([]reading.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type queryResult struct {
		results []reading.Reading
		err     error
	}
	done := make(chan queryResult, 1)

	go func() {
		var res queryResult
		res.err = s.db.View(func(txn *badger.Txn) error {
			if len(req.Sources) > 0 {
				for _, src := range req.Sources {
					if err := s.scanSource(ctx, txn, src, req, &res.results); err != nil {
						return err
					}
				}
				return nil
			}
			return s.scanAll(ctx, txn, req, &res.results)
		})
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, wrapUnavailable(res.err)
		}
		// Prefix scans return per-source runs; interleave them by time.
		sort.SliceStable(res.results, func(i, j int) bool {
			return res.results[i].Timestamp.Before(res.results[j].Timestamp)
		})
		if req.Limit > 0 && len(res.results) > req.Limit {
			res.results = res.results[:req.Limit]
		}
		return res.results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("query operation cancelled: %w", ctx.Err())
	}
}

// scanSource iterates one source's key range, [hash|start, hash|end).
func (s *Store) scanSource(ctx context.Context, txn *badger.Txn, source string, req store.RangeRequest, out *[]reading.Reading) error {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(source))

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if !req.Start.IsZero() {
		seek = makeKey(source, req.Start)
	}

	var iterCount int
	for it.Seek(seek); it.Valid(); it.Next() {
		iterCount++
		if iterCount%1000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		ts := keyTimestamp(it.Item().Key())
		if !req.End.IsZero() && !ts.Before(req.End) {
			break
		}

		var r reading.Reading
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
		if err != nil {
			return fmt.Errorf("failed to decode reading: %w", err)
		}

		// Hash collisions between source names are possible in theory;
		// the decoded source is authoritative.
		if r.Source != source {
			continue
		}
		*out = append(*out, r)
	}
	return nil
}

// scanAll iterates the full keyspace, filtering by time range.
func (s *Store) scanAll(ctx context.Context, txn *badger.Txn, req store.RangeRequest, out *[]reading.Reading) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100

	it := txn.NewIterator(opts)
	defer it.Close()

	var iterCount int
	for it.Rewind(); it.Valid(); it.Next() {
		iterCount++
		if iterCount%1000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if !req.InRange(keyTimestamp(it.Item().Key())) {
			continue
		}

		var r reading.Reading
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
		if err != nil {
			return fmt.Errorf("failed to decode reading: %w", err)
		}
		*out = append(*out, r)
	}
	return nil
}

// Close shuts down BadgerDB cleanly
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection to reclaim disk space
// from deleted/updated values. discardRatio: run GC if this fraction of a
// file can be discarded (0.5 = 50%).
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &store.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		sources := make(map[uint64]bool)
		var oldest, newest time.Time
		var iterCount int

		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			key := it.Item().Key()
			stats.TotalReadings++
			sources[binary.BigEndian.Uint64(key[0:8])] = true

			ts := keyTimestamp(key)
			if oldest.IsZero() || ts.Before(oldest) {
				oldest = ts
			}
			if newest.IsZero() || ts.After(newest) {
				newest = ts
			}
		}

		stats.TotalSources = uint64(len(sources))
		stats.OldestReading = oldest
		stats.NewestReading = newest
		return nil
	})
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// makeKey creates a sortable key: source_hash + timestamp
// Format: [source_hash (8 bytes)][timestamp (8 bytes)]
func makeKey(source string, ts time.Time) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(source))
	binary.BigEndian.PutUint64(key[8:16], uint64(ts.UnixNano()))
	return key
}

// keyTimestamp extracts the timestamp from a storage key.
func keyTimestamp(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[8:16]))).UTC()
}

// wrapUnavailable maps low-level badger failures onto the store's
// transient-failure sentinel so the façade can retry them.
func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
