package interpolate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// ErrInvalidInterval is returned when the nominal sampling interval is not
// a positive duration.
var ErrInvalidInterval = errors.New("sampling interval must be positive")

// Gap is a contiguous run of expected-but-missing samples between two
// observed readings of one source.
type Gap struct {
	Source string `json:"source"`

	// After and Before are the observed readings bracketing the gap.
	After  time.Time `json:"after"`
	Before time.Time `json:"before"`

	// Missing is the number of absent samples between them.
	Missing int `json:"missing"`
}

// DetectGaps scans an ordered single-source series for runs of missing
// samples, given the nominal spacing between consecutive readings. A series
// with fewer than two readings has no gaps to detect.
func DetectGaps(series []reading.Reading, interval time.Duration) []Gap {
	if interval <= 0 || len(series) < 2 {
		return nil
	}

	var gaps []Gap
	for i := 1; i < len(series); i++ {
		prev, next := series[i-1], series[i]
		missing := missingSamples(prev.Timestamp, next.Timestamp, interval)
		if missing <= 0 {
			continue
		}
		gaps = append(gaps, Gap{
			Source:  prev.Source,
			After:   prev.Timestamp,
			Before:  next.Timestamp,
			Missing: missing,
		})
	}
	return gaps
}

// FillSeries synthesizes linearly interpolated readings for every gap of at
// most maxGap missing samples. Wider gaps are left entirely unfilled: each
// maximal run of missing samples is judged against maxGap on its own, never
// partially bridged. The input must be a canonical (deduplicated) series
// ordered by timestamp; the returned slice holds only the synthetic
// readings, in timestamp order.
func FillSeries(series []reading.Reading, interval time.Duration, maxGap int) []reading.Reading {
	if interval <= 0 || maxGap <= 0 || len(series) < 2 {
		return nil
	}

	var synthesized []reading.Reading
	for i := 1; i < len(series); i++ {
		prev, next := series[i-1], series[i]
		missing := missingSamples(prev.Timestamp, next.Timestamp, interval)
		if missing <= 0 || missing > maxGap {
			continue
		}

		span := next.Timestamp.Sub(prev.Timestamp)
		for k := 1; k <= missing; k++ {
			offset := time.Duration(k) * interval
			frac := float64(offset) / float64(span)
			synthesized = append(synthesized, reading.Reading{
				Source:    prev.Source,
				Timestamp: prev.Timestamp.Add(offset),
				Value:     prev.Value + (next.Value-prev.Value)*frac,
				Synthetic: true,
			})
		}
	}
	return synthesized
}

// missingSamples computes how many expected samples are absent between two
// observed timestamps. Rounding tolerates the small jitter the upstream
// feed shows around the nominal spacing.
func missingSamples(t0, t1 time.Time, interval time.Duration) int {
	steps := math.Round(float64(t1.Sub(t0)) / float64(interval))
	return int(steps) - 1
}

// Filler runs store-backed gap-filling passes. It reads each source's
// canonical series, synthesizes interpolated readings, and upserts them so
// later queries see the filled series.
type Filler struct {
	store    store.Store
	interval time.Duration
	maxGap   int
}

// New creates a filler. interval is the nominal sample spacing of the
// upstream feed; maxGap is the widest run of missing samples that will be
// filled.
func New(st store.Store, interval time.Duration, maxGap int) (*Filler, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Filler{store: st, interval: interval, maxGap: maxGap}, nil
}

// Report summarizes a gap-filling pass. Per-source failures are recorded
// here rather than aborting the whole pass.
type Report struct {
	SourcesProcessed int               `json:"sources_processed"`
	GapsFilled       int               `json:"gaps_filled"`
	GapsSkipped      int               `json:"gaps_skipped"`
	ReadingsInserted int               `json:"readings_inserted"`
	Errors           map[string]string `json:"errors,omitempty"`
	Duration         string            `json:"duration"`
}

// Run fills gaps for the given sources in [start, end). Zero bounds mean
// the whole store. Re-running over an already-filled range upserts the same
// synthetic values, so the pass is idempotent.
func (f *Filler) Run(ctx context.Context, sources []string, start, end time.Time) (*Report, error) {
	began := time.Now()
	report := &Report{Errors: make(map[string]string)}

	for _, source := range sources {
		report.SourcesProcessed++
		if err := f.fillSource(ctx, source, start, end, report); err != nil {
			report.Errors[source] = err.Error()
			log.Printf("Gap fill failed for source %q: %v", source, err)
		}
	}

	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	report.Duration = time.Since(began).Round(time.Millisecond).String()
	return report, nil
}

func (f *Filler) fillSource(ctx context.Context, source string, start, end time.Time, report *Report) error {
	series, err := f.store.Query(ctx, store.RangeRequest{
		Start:   start,
		End:     end,
		Sources: []string{source},
	})
	if err != nil {
		return fmt.Errorf("failed to query series: %w", err)
	}

	for _, gap := range DetectGaps(series, f.interval) {
		if gap.Missing > f.maxGap {
			report.GapsSkipped++
		} else {
			report.GapsFilled++
		}
	}

	for _, synth := range FillSeries(series, f.interval, f.maxGap) {
		if err := f.store.Upsert(ctx, synth); err != nil {
			return fmt.Errorf("failed to insert synthetic reading at %v: %w", synth.Timestamp, err)
		}
		report.ReadingsInserted++
	}
	return nil
}
