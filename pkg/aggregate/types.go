package aggregate

import (
	"errors"
	"time"
)

// Errors surfaced to the query façade. Both are validation failures and
// are never retried.
var (
	ErrInvalidRange       = errors.New("invalid range: start_time must be before end_time")
	ErrInvalidGranularity = errors.New("invalid granularity: unsupported bin width")
)

// SupportedGranularityMinutes enumerates the bin widths a query may ask
// for. The smallest matches the upstream feed's 30-minute settlement
// periods; the rest are whole multiples up to one day.
var SupportedGranularityMinutes = []int{30, 60, 120, 240, 360, 720, 1440}

// GranularitySupported reports whether d is an allowed bin width.
func GranularitySupported(d time.Duration) bool {
	for _, m := range SupportedGranularityMinutes {
		if d == time.Duration(m)*time.Minute {
			return true
		}
	}
	return false
}

// Bin is one fixed-width, epoch-aligned time interval. End is exclusive.
// The final bin of a range may be clipped short at the range's end.
type Bin struct {
	Start       time.Time
	End         time.Time
	Granularity time.Duration
}

// Contains reports whether ts falls inside [Start, End).
func (b Bin) Contains(ts time.Time) bool {
	return !ts.Before(b.Start) && ts.Before(b.End)
}

// SourceStat holds one source's statistics for one bin. The three value
// pointers are nil exactly when Count is zero: an empty bin reports
// missing data honestly instead of fabricating zeros.
type SourceStat struct {
	Avg   *float64 `json:"avg"`
	High  *float64 `json:"high"`
	Low   *float64 `json:"low"`
	Count int      `json:"count"`
}

// BinResult pairs a bin with the per-source statistics computed over it.
type BinResult struct {
	Bin     Bin
	Sources map[string]SourceStat
}

// alignDown floors t to a granularity boundary relative to the Unix
// epoch, so bin edges are deterministic and independent of the query
// start's exact alignment.
func alignDown(t time.Time, granularity time.Duration) time.Time {
	secs := int64(granularity / time.Second)
	unix := t.Unix()
	floored := unix - ((unix%secs)+secs)%secs
	return time.Unix(floored, 0).UTC()
}

// tile produces the contiguous bins covering [start, end), the first
// aligned down to a granularity boundary and the last clipped to end.
func tile(start, end time.Time, granularity time.Duration) []Bin {
	var bins []Bin
	for cursor := alignDown(start, granularity); cursor.Before(end); cursor = cursor.Add(granularity) {
		binEnd := cursor.Add(granularity)
		if binEnd.After(end) {
			binEnd = end
		}
		bins = append(bins, Bin{Start: cursor, End: binEnd, Granularity: granularity})
	}
	return bins
}
