package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Exporter handles exporting readings to backup formats
type Exporter struct {
	store store.Store
}

// NewExporter creates a new exporter
func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Time range to export
	Start time.Time
	End   time.Time

	// Filter by source names (nil = all sources)
	Sources []string

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	ReadingsExported int       `json:"readings_exported"`
	TimeRange        string    `json:"time_range"`
	Format           string    `json:"format"`
	ExportedAt       time.Time `json:"exported_at"`
}

// exportMetadata describes one backup file. Version guards the wire
// format for future re-imports.
type exportMetadata struct {
	ExportedAt   time.Time `json:"exported_at"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	ReadingCount int       `json:"reading_count"`
	Format       string    `json:"format"`
	Version      string    `json:"version"`
}

// ExportToJSON exports readings as JSON to the given writer
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	readings, err := e.store.Query(ctx, store.RangeRequest{
		Start:   opts.Start,
		End:     opts.End,
		Sources: opts.Sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	exportData := struct {
		Metadata exportMetadata    `json:"metadata"`
		Readings []reading.Reading `json:"readings"`
	}{
		Metadata: exportMetadata{
			ExportedAt:   time.Now(),
			StartTime:    opts.Start,
			EndTime:      opts.End,
			ReadingCount: len(readings),
			Format:       "json",
			Version:      "1.0",
		},
		Readings: readings,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		ReadingsExported: len(readings),
		TimeRange:        fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:           "json",
		ExportedAt:       exportData.Metadata.ExportedAt,
	}, nil
}

// ExportToCSV exports readings as CSV to the given writer
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	readings, err := e.store.Query(ctx, store.RangeRequest{
		Start:   opts.Start,
		End:     opts.End,
		Sources: opts.Sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"timestamp", "source", "value", "synthetic"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rd := range readings {
		row := []string{
			rd.Timestamp.Format(time.RFC3339),
			rd.Source,
			strconv.FormatFloat(rd.Value, 'f', -1, 64),
			strconv.FormatBool(rd.Synthetic),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return &ExportResult{
		ReadingsExported: len(readings),
		TimeRange:        fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:           "csv",
		ExportedAt:       time.Now(),
	}, nil
}
