package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store/memory"
)

func newTestAggregator(s *memory.Store) *Aggregator {
	return New(s, reading.DefaultRegistry(), 30*time.Minute, 1)
}

func TestAggregate_BasicBinning(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// solar@00:00=2.0, solar@00:30=3.0, solar@01:00=4.0 with hourly bins:
	// [00:00,01:00) holds the first two, [01:00,02:00) the third.
	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 2.0, Timestamp: base},
		{Source: "solar", Value: 3.0, Timestamp: base.Add(30 * time.Minute)},
		{Source: "solar", Value: 4.0, Timestamp: base.Add(60 * time.Minute)},
	})

	results, err := newTestAggregator(s).Aggregate(ctx, Request{
		Start:       base,
		End:         base.Add(2 * time.Hour),
		Granularity: time.Hour,
		Sources:     []string{"solar"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 bins, got %d", len(results))
	}

	first := results[0].Sources["solar"]
	if first.Count != 2 {
		t.Errorf("First bin: expected count 2, got %d", first.Count)
	}
	if *first.Avg != 2.5 || *first.High != 3.0 || *first.Low != 2.0 {
		t.Errorf("First bin: expected avg=2.5 high=3 low=2, got avg=%v high=%v low=%v",
			*first.Avg, *first.High, *first.Low)
	}

	second := results[1].Sources["solar"]
	if second.Count != 1 || *second.Avg != 4.0 {
		t.Errorf("Second bin: expected count=1 avg=4, got count=%d avg=%v", second.Count, second.Avg)
	}
}

func TestAggregate_EmptyBinIsNull(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 2.0, Timestamp: base},
	})

	results, err := newTestAggregator(s).Aggregate(ctx, Request{
		Start:       base,
		End:         base.Add(2 * time.Hour),
		Granularity: time.Hour,
		Sources:     []string{"solar"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	empty := results[1].Sources["solar"]
	if empty.Count != 0 {
		t.Fatalf("Expected empty bin, got count %d", empty.Count)
	}
	if empty.Avg != nil || empty.High != nil || empty.Low != nil {
		t.Error("Empty bin must report null avg/high/low, not zeros")
	}
}

func TestAggregate_StatInvariants(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	values := []float64{7.2, 1.5, 9.9, 3.3, 5.0, 8.8, 2.1, 6.6}
	var batch []reading.Reading
	for i, v := range values {
		batch = append(batch, reading.Reading{
			Source:    "wind_onshore",
			Value:     v,
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
		})
	}
	s.Write(ctx, batch)

	results, err := newTestAggregator(s).Aggregate(ctx, Request{
		Start:       base,
		End:         base.Add(4 * time.Hour),
		Granularity: 2 * time.Hour,
		Sources:     []string{"wind_onshore"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	for i, res := range results {
		stat := res.Sources["wind_onshore"]
		if stat.Count == 0 {
			if stat.Avg != nil || stat.High != nil || stat.Low != nil {
				t.Errorf("Bin %d: null stat with non-nil values", i)
			}
			continue
		}
		if *stat.Low > *stat.Avg || *stat.Avg > *stat.High {
			t.Errorf("Bin %d: low <= avg <= high violated: %v <= %v <= %v",
				i, *stat.Low, *stat.Avg, *stat.High)
		}
	}
}

func TestAggregate_BinTiling(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()

	// A start that is not on a bin boundary: 00:45 with hourly bins.
	// The first bin aligns down to 00:00; the range end clips the last.
	start := time.Date(2024, 6, 1, 0, 45, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 3, 30, 0, 0, time.UTC)

	results, err := newTestAggregator(s).Aggregate(ctx, Request{
		Start:       start,
		End:         end,
		Granularity: time.Hour,
		Sources:     []string{"solar"},
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("Expected 4 bins, got %d", len(results))
	}

	wantFirst := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !results[0].Bin.Start.Equal(wantFirst) {
		t.Errorf("First bin must align to the epoch boundary: got %v", results[0].Bin.Start)
	}

	for i := 1; i < len(results); i++ {
		if !results[i].Bin.Start.Equal(results[i-1].Bin.End) {
			t.Errorf("Bins %d and %d are not contiguous", i-1, i)
		}
	}

	last := results[len(results)-1].Bin
	if !last.End.Equal(end) {
		t.Errorf("Last bin must clip to the range end: got %v", last.End)
	}
	if last.End.Sub(last.Start) >= time.Hour {
		t.Errorf("Clipped last bin should be shorter than the granularity")
	}
}

func TestAggregate_Determinism(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 2.0, Timestamp: base},
		{Source: "nuclear", Value: 8.1, Timestamp: base},
		{Source: "solar", Value: 3.0, Timestamp: base.Add(30 * time.Minute)},
	})

	req := Request{
		Start:       base,
		End:         base.Add(time.Hour),
		Granularity: time.Hour,
		Sources:     []string{"solar", "nuclear"},
	}

	agg := newTestAggregator(s)
	first, err := agg.Aggregate(ctx, req)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	second, err := agg.Aggregate(ctx, req)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("Identical inputs must produce byte-identical output")
	}
}

func TestAggregate_InvalidRange(t *testing.T) {
	s := memory.New()
	defer s.Close()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := newTestAggregator(s).Aggregate(context.Background(), Request{
		Start:       base,
		End:         base,
		Granularity: time.Hour,
		Sources:     []string{"solar"},
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestAggregate_InvalidGranularity(t *testing.T) {
	s := memory.New()
	defer s.Close()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := newTestAggregator(s).Aggregate(context.Background(), Request{
		Start:       base,
		End:         base.Add(time.Hour),
		Granularity: 45 * time.Minute,
		Sources:     []string{"solar"},
	})
	if !errors.Is(err, ErrInvalidGranularity) {
		t.Errorf("Expected ErrInvalidGranularity, got %v", err)
	}
}

func TestAggregate_InterpolationOverlay(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// 00:00=10 and 01:00=14 with 00:30 missing: the overlay synthesizes
	// 00:30=12 for this query without touching the store.
	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 10, Timestamp: base},
		{Source: "solar", Value: 14, Timestamp: base.Add(time.Hour)},
	})

	results, err := newTestAggregator(s).Aggregate(ctx, Request{
		Start:       base,
		End:         base.Add(time.Hour),
		Granularity: time.Hour,
		Sources:     []string{"solar"},
		Interpolate: true,
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	stat := results[0].Sources["solar"]
	if stat.Count != 2 {
		t.Fatalf("Expected overlay to add the synthetic reading, got count %d", stat.Count)
	}
	if *stat.Avg != 11.0 {
		t.Errorf("Expected avg of 10 and synthetic 12 = 11, got %v", *stat.Avg)
	}

	// The store itself stays untouched.
	stats, _ := s.Stats(ctx)
	if stats.TotalReadings != 2 {
		t.Errorf("Overlay must not write to the store, found %d readings", stats.TotalReadings)
	}
}

func TestAggregate_AsPercent(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// solar 25 of 100 total at the only timestamp: 25 percent.
	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 25, Timestamp: base},
		{Source: "wind_onshore", Value: 75, Timestamp: base},
	})

	results, err := newTestAggregator(s).Aggregate(ctx, Request{
		Start:       base,
		End:         base.Add(time.Hour),
		Granularity: time.Hour,
		Sources:     []string{"solar"},
		AsPercent:   true,
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	stat := results[0].Sources["solar"]
	if stat.Count != 1 {
		t.Fatalf("Expected 1 reading, got %d", stat.Count)
	}
	if math.Abs(*stat.Avg-25.0) > 1e-9 {
		t.Errorf("Expected 25 percent, got %v", *stat.Avg)
	}
}
