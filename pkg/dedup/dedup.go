package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Deduplicator restores the canonical one-reading-per-(source, timestamp)
// invariant. Duplicate facts can accumulate when the upstream feed replays
// a window it already delivered.
//
// Tie-break policy: last write wins. The store's ordering contract returns
// readings at the same timestamp in insertion order, so the final
// occurrence of a duplicate run is the most recently inserted one and is
// the reading that survives.
type Deduplicator struct {
	store store.Store
}

// New creates a deduplicator backed by the given store.
func New(st store.Store) *Deduplicator {
	return &Deduplicator{store: st}
}

// Report summarizes a deduplication pass. A failure on one source does not
// abort the others; it is recorded here instead.
type Report struct {
	SourcesScanned    int               `json:"sources_scanned"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
	Errors            map[string]string `json:"errors,omitempty"`
	Duration          string            `json:"duration"`
}

// Run collapses duplicates in [start, end). Zero start/end bounds mean the
// whole store. Running on an already-canonical store is a no-op, so the
// pass is idempotent and safe to re-run.
func (d *Deduplicator) Run(ctx context.Context, start, end time.Time) (*Report, error) {
	began := time.Now()

	all, err := d.store.Query(ctx, store.RangeRequest{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for dedup: %w", err)
	}

	// Partition into per-source series, preserving query order.
	bySource := make(map[string][]reading.Reading)
	for _, r := range all {
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	report := &Report{Errors: make(map[string]string)}
	for source, series := range bySource {
		report.SourcesScanned++

		removed, err := d.dedupSource(ctx, source, series)
		report.DuplicatesRemoved += removed
		if err != nil {
			// Isolate the failure; other sources still get processed.
			report.Errors[source] = err.Error()
			log.Printf("Dedup failed for source %q: %v", source, err)
		}
	}

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	report.Duration = time.Since(began).Round(time.Millisecond).String()
	return report, nil
}

// dedupSource rewrites one source's duplicate timestamps. series must be in
// store query order (timestamp ascending, ties in insertion order).
func (d *Deduplicator) dedupSource(ctx context.Context, source string, series []reading.Reading) (int, error) {
	counts := make(map[int64]int)
	winners := make(map[int64]reading.Reading)
	for _, r := range series {
		ns := r.Timestamp.UnixNano()
		counts[ns]++
		// Later occurrences overwrite earlier ones: last write wins.
		winners[ns] = r
	}

	var removed int
	for ns, n := range counts {
		if n < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		winner := winners[ns]
		if err := d.store.Delete(ctx, source, winner.Timestamp); err != nil {
			return removed, fmt.Errorf("failed to delete duplicates at %v: %w", winner.Timestamp, err)
		}
		if err := d.store.Upsert(ctx, winner); err != nil {
			return removed, fmt.Errorf("failed to restore canonical reading at %v: %w", winner.Timestamp, err)
		}
		removed += n - 1
	}
	return removed, nil
}
