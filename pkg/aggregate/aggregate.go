package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/gridtrack/gridtrack/pkg/interpolate"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Request describes one aggregation query.
type Request struct {
	// Time range, start inclusive, end exclusive. Start must precede End.
	Start time.Time
	End   time.Time

	// Granularity is the bin width; must be one of the supported widths.
	Granularity time.Duration

	// Sources to aggregate. Must be non-empty and validated against the
	// registry by the caller before reaching the aggregator.
	Sources []string

	// Interpolate applies gap filling as an in-memory overlay for this
	// query only; nothing is written back to the store.
	Interpolate bool

	// AsPercent reports each value as a percentage of total generation
	// across all registered sources at the same timestamp.
	AsPercent bool
}

// Aggregator computes time-binned statistics over the reading store. It
// only reads; identical store contents and request parameters always
// produce identical output.
type Aggregator struct {
	store    store.Store
	registry *reading.Registry

	// Gap-fill parameters for the interpolation overlay.
	interval time.Duration
	maxGap   int
}

// New creates an aggregator. interval and maxGap parameterize the
// query-time interpolation overlay and mirror the maintenance filler.
func New(st store.Store, registry *reading.Registry, interval time.Duration, maxGap int) *Aggregator {
	return &Aggregator{store: st, registry: registry, interval: interval, maxGap: maxGap}
}

// Aggregate partitions the request range into epoch-aligned bins and
// computes avg/high/low/count per source per bin. Bins come back in
// ascending order, contiguous, the last clipped to the range end.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) ([]BinResult, error) {
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		return nil, ErrInvalidRange
	}
	if !GranularitySupported(req.Granularity) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGranularity, req.Granularity)
	}

	series, err := a.fetchSeries(ctx, req)
	if err != nil {
		return nil, err
	}

	bins := tile(req.Start, req.End, req.Granularity)
	results := make([]BinResult, len(bins))
	for i, bin := range bins {
		results[i] = BinResult{Bin: bin, Sources: make(map[string]SourceStat, len(req.Sources))}
	}

	origin := bins[0].Start
	for _, source := range req.Sources {
		accs := make([]statAccumulator, len(bins))
		for _, r := range series[source] {
			idx := int(r.Timestamp.Sub(origin) / req.Granularity)
			if idx < 0 || idx >= len(bins) || !bins[idx].Contains(r.Timestamp) {
				continue
			}
			accs[idx].add(r.Value)
		}
		for i := range bins {
			results[i].Sources[source] = accs[i].stat()
		}
	}

	return results, nil
}

// fetchSeries loads the per-source canonical series feeding the bins,
// applying the interpolation overlay and percent normalization when asked.
func (a *Aggregator) fetchSeries(ctx context.Context, req Request) (map[string][]reading.Reading, error) {
	fetch := req.Sources
	if req.AsPercent {
		// Percent-of-total needs every registered source at each
		// timestamp, even ones the caller did not ask to see.
		fetch = a.registry.Names()
	}

	// The first bin is aligned down from the request start, so fetch from
	// the aligned edge to fill it completely.
	rows, err := a.store.Query(ctx, store.RangeRequest{
		Start:   alignDown(req.Start, req.Granularity),
		End:     req.End,
		Sources: fetch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	series := make(map[string][]reading.Reading)
	for _, r := range rows {
		series[r.Source] = append(series[r.Source], r)
	}

	if req.Interpolate {
		for source, s := range series {
			series[source] = mergeSynthetic(s, interpolate.FillSeries(s, a.interval, a.maxGap))
		}
	}

	if req.AsPercent {
		series = toPercentOfTotal(series)
	}

	return series, nil
}

// mergeSynthetic splices synthetic readings into an ordered series,
// keeping timestamp order.
func mergeSynthetic(series, synth []reading.Reading) []reading.Reading {
	if len(synth) == 0 {
		return series
	}
	merged := make([]reading.Reading, 0, len(series)+len(synth))
	i, j := 0, 0
	for i < len(series) && j < len(synth) {
		if series[i].Timestamp.Before(synth[j].Timestamp) {
			merged = append(merged, series[i])
			i++
		} else {
			merged = append(merged, synth[j])
			j++
		}
	}
	merged = append(merged, series[i:]...)
	merged = append(merged, synth[j:]...)
	return merged
}

// toPercentOfTotal rescales every value to its share of the summed
// generation across sources at the same timestamp. Readings at timestamps
// whose total is zero are dropped rather than divided.
func toPercentOfTotal(series map[string][]reading.Reading) map[string][]reading.Reading {
	totals := make(map[int64]float64)
	for _, s := range series {
		for _, r := range s {
			totals[r.Timestamp.UnixNano()] += r.Value
		}
	}

	out := make(map[string][]reading.Reading, len(series))
	for source, s := range series {
		scaled := make([]reading.Reading, 0, len(s))
		for _, r := range s {
			total := totals[r.Timestamp.UnixNano()]
			if total == 0 {
				continue
			}
			r.Value = r.Value / total * 100
			scaled = append(scaled, r)
		}
		out[source] = scaled
	}
	return out
}

// statAccumulator folds readings into one bin's statistics.
type statAccumulator struct {
	sum   float64
	high  float64
	low   float64
	count int
}

func (s *statAccumulator) add(v float64) {
	if s.count == 0 {
		s.high, s.low = v, v
	} else {
		if v > s.high {
			s.high = v
		}
		if v < s.low {
			s.low = v
		}
	}
	s.sum += v
	s.count++
}

func (s *statAccumulator) stat() SourceStat {
	if s.count == 0 {
		return SourceStat{}
	}
	avg := s.sum / float64(s.count)
	high, low := s.high, s.low
	return SourceStat{Avg: &avg, High: &high, Low: &low, Count: s.count}
}
