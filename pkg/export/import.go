package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

const (
	// MaxImportBatchSize is the maximum number of readings to write at once
	MaxImportBatchSize = 5000
)

// Importer handles importing readings from backup files
type Importer struct {
	store    store.Store
	registry *reading.Registry
}

// NewImporter creates a new importer
func NewImporter(st store.Store, registry *reading.Registry) *Importer {
	return &Importer{store: st, registry: registry}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	ReadingsImported int       `json:"readings_imported"`
	BatchesWritten   int       `json:"batches_written"`
	TimeRange        string    `json:"time_range"`
	ImportedAt       time.Time `json:"imported_at"`
	Errors           []string  `json:"errors,omitempty"`
}

// ImportData represents the structure of imported JSON data
type ImportData struct {
	Metadata exportMetadata    `json:"metadata"`
	Readings []reading.Reading `json:"readings"`
}

// ImportFromJSON imports readings from a JSON backup file. Invalid
// readings are skipped and reported rather than failing the whole
// import. Synthetic readings survive a backup/restore round trip.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var importData ImportData
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&importData); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if len(importData.Readings) == 0 {
		return &ImportResult{
			TimeRange:  "empty",
			ImportedAt: time.Now(),
		}, nil
	}

	var validationErrors []string
	valid := make([]reading.Reading, 0, len(importData.Readings))
	for i, rd := range importData.Readings {
		if err := im.validate(rd); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("reading %d: %v", i, err))
			continue
		}
		valid = append(valid, rd)
	}

	// Write in batches to avoid overwhelming storage
	batchCount := 0
	for i := 0; i < len(valid); i += MaxImportBatchSize {
		end := i + MaxImportBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := im.store.Write(ctx, valid[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", batchCount, err)
		}
		batchCount++
	}

	var minTime, maxTime time.Time
	if len(valid) > 0 {
		minTime = valid[0].Timestamp
		maxTime = valid[0].Timestamp
		for _, rd := range valid {
			if rd.Timestamp.Before(minTime) {
				minTime = rd.Timestamp
			}
			if rd.Timestamp.After(maxTime) {
				maxTime = rd.Timestamp
			}
		}
	}

	return &ImportResult{
		ReadingsImported: len(valid),
		BatchesWritten:   batchCount,
		TimeRange:        fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339)),
		ImportedAt:       time.Now(),
		Errors:           validationErrors,
	}, nil
}

// validate checks a reading before import
func (im *Importer) validate(rd reading.Reading) error {
	if rd.Source == "" {
		return fmt.Errorf("reading source cannot be empty")
	}
	if !im.registry.Known(rd.Source) {
		return fmt.Errorf("unknown source: %q", rd.Source)
	}
	if rd.Timestamp.IsZero() {
		return fmt.Errorf("reading timestamp cannot be zero")
	}

	// Check for reasonable timestamp (not too far in past/future)
	now := time.Now()
	if rd.Timestamp.Before(now.Add(-10 * 365 * 24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in past: %s", rd.Timestamp)
	}
	if rd.Timestamp.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("timestamp too far in future: %s", rd.Timestamp)
	}

	return nil
}
