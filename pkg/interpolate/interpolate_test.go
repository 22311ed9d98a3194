package interpolate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
	"github.com/gridtrack/gridtrack/pkg/store/memory"
)

func solarSeries(base time.Time, offsets []time.Duration, values []float64) []reading.Reading {
	series := make([]reading.Reading, len(offsets))
	for i := range offsets {
		series[i] = reading.Reading{Source: "solar", Timestamp: base.Add(offsets[i]), Value: values[i]}
	}
	return series
}

func TestDetectGaps(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		offsets []time.Duration
		want    []int // missing counts per gap
	}{
		{"no gaps", []time.Duration{0, 30 * time.Minute, 60 * time.Minute}, nil},
		{"single missing sample", []time.Duration{0, 60 * time.Minute}, []int{1}},
		{"two missing samples", []time.Duration{0, 90 * time.Minute}, []int{2}},
		{"two separate gaps", []time.Duration{0, 60 * time.Minute, 150 * time.Minute}, []int{1, 2}},
		{"single reading", []time.Duration{0}, nil},
		{"empty series", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]float64, len(tt.offsets))
			gaps := DetectGaps(solarSeries(base, tt.offsets, values), 30*time.Minute)

			if len(gaps) != len(tt.want) {
				t.Fatalf("Expected %d gaps, got %d", len(tt.want), len(gaps))
			}
			for i, g := range gaps {
				if g.Missing != tt.want[i] {
					t.Errorf("Gap %d: expected %d missing, got %d", i, tt.want[i], g.Missing)
				}
			}
		})
	}
}

func TestDetectGaps_ToleratesJitter(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// 61 minutes apart with a 30-minute interval still rounds to one
	// missing sample.
	series := solarSeries(base, []time.Duration{0, 61 * time.Minute}, []float64{1, 2})
	gaps := DetectGaps(series, 30*time.Minute)

	if len(gaps) != 1 || gaps[0].Missing != 1 {
		t.Fatalf("Expected one gap of one missing sample, got %v", gaps)
	}
}

func TestFillSeries_LinearInterpolation(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Readings at 00:00=10 and 01:00=14 with 00:30 missing yield a
	// synthesized 00:30=12.
	series := solarSeries(base, []time.Duration{0, 60 * time.Minute}, []float64{10, 14})
	synth := FillSeries(series, 30*time.Minute, 1)

	if len(synth) != 1 {
		t.Fatalf("Expected 1 synthetic reading, got %d", len(synth))
	}
	got := synth[0]
	if !got.Timestamp.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("Expected synthetic timestamp 00:30, got %v", got.Timestamp)
	}
	if math.Abs(got.Value-12.0) > 1e-9 {
		t.Errorf("Expected interpolated value 12, got %v", got.Value)
	}
	if !got.Synthetic {
		t.Error("Synthetic reading must be flagged as such")
	}
	if got.Source != "solar" {
		t.Errorf("Expected source solar, got %q", got.Source)
	}
}

func TestFillSeries_RespectsMaxGap(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Gap of exactly maxGap is fully filled.
	exact := solarSeries(base, []time.Duration{0, 90 * time.Minute}, []float64{0, 9})
	if got := FillSeries(exact, 30*time.Minute, 2); len(got) != 2 {
		t.Errorf("Gap of exactly maxGap samples: expected 2 synthetic readings, got %d", len(got))
	}

	// Gap of maxGap+1 is left entirely unfilled, never partially bridged.
	wider := solarSeries(base, []time.Duration{0, 120 * time.Minute}, []float64{0, 9})
	if got := FillSeries(wider, 30*time.Minute, 2); len(got) != 0 {
		t.Errorf("Gap beyond maxGap: expected no synthetic readings, got %d", len(got))
	}
}

func TestFillSeries_EvaluatesGapsIndependently(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// A fillable single-sample gap followed by an unfillable three-sample
	// gap: only the first is bridged.
	series := solarSeries(base,
		[]time.Duration{0, 60 * time.Minute, 180 * time.Minute},
		[]float64{10, 14, 20})
	synth := FillSeries(series, 30*time.Minute, 1)

	if len(synth) != 1 {
		t.Fatalf("Expected only the narrow gap filled, got %d synthetic readings", len(synth))
	}
	if !synth[0].Timestamp.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("Expected fill at 00:30, got %v", synth[0].Timestamp)
	}
}

func TestFillSeries_InterpolatedValuesStayBetweenEndpoints(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	series := solarSeries(base, []time.Duration{0, 120 * time.Minute}, []float64{100, 40})
	synth := FillSeries(series, 30*time.Minute, 3)

	if len(synth) != 3 {
		t.Fatalf("Expected 3 synthetic readings, got %d", len(synth))
	}
	want := []float64{85, 70, 55}
	for i, s := range synth {
		if math.Abs(s.Value-want[i]) > 1e-9 {
			t.Errorf("Synthetic %d: expected %v, got %v", i, want[i], s.Value)
		}
	}
}

func TestNew_RejectsNonPositiveInterval(t *testing.T) {
	if _, err := New(memory.New(), 0, 1); err != ErrInvalidInterval {
		t.Errorf("Expected ErrInvalidInterval for zero interval, got %v", err)
	}
	if _, err := New(memory.New(), -time.Minute, 1); err != ErrInvalidInterval {
		t.Errorf("Expected ErrInvalidInterval for negative interval, got %v", err)
	}
}

func TestFillerRun_InsertsSyntheticReadings(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 10, Timestamp: base},
		{Source: "solar", Value: 14, Timestamp: base.Add(60 * time.Minute)},
	})

	filler, err := New(s, 30*time.Minute, 1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report, err := filler.Run(ctx, []string{"solar"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.GapsFilled != 1 || report.ReadingsInserted != 1 {
		t.Errorf("Expected 1 gap filled with 1 reading, got %+v", report)
	}

	results, _ := s.Query(ctx, store.RangeRequest{Sources: []string{"solar"}})
	if len(results) != 3 {
		t.Fatalf("Expected 3 readings after fill, got %d", len(results))
	}
	mid := results[1]
	if !mid.Synthetic || mid.Value != 12.0 {
		t.Errorf("Expected synthetic 00:30=12, got %+v", mid)
	}
}

func TestFillerRun_Idempotent(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 10, Timestamp: base},
		{Source: "solar", Value: 14, Timestamp: base.Add(60 * time.Minute)},
	})

	filler, _ := New(s, 30*time.Minute, 1)
	filler.Run(ctx, []string{"solar"}, time.Time{}, time.Time{})

	report, err := filler.Run(ctx, []string{"solar"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if report.GapsFilled != 0 {
		t.Errorf("Expected no gaps on second run, got %d", report.GapsFilled)
	}

	results, _ := s.Query(ctx, store.RangeRequest{})
	if len(results) != 3 {
		t.Errorf("Second run changed the store: %d readings", len(results))
	}
}

func TestFillerRun_SkipsWideGapsAndReportsThem(t *testing.T) {
	s := memory.New()
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.Write(ctx, []reading.Reading{
		{Source: "solar", Value: 10, Timestamp: base},
		{Source: "solar", Value: 22, Timestamp: base.Add(3 * time.Hour)},
	})

	filler, _ := New(s, 30*time.Minute, 1)
	report, err := filler.Run(ctx, []string{"solar"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.GapsFilled != 0 || report.GapsSkipped != 1 {
		t.Errorf("Expected the wide gap skipped, got %+v", report)
	}

	results, _ := s.Query(ctx, store.RangeRequest{})
	if len(results) != 2 {
		t.Errorf("Wide gap must stay unfilled, got %d readings", len(results))
	}
}
