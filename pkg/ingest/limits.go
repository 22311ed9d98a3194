package ingest

import (
	"fmt"

	"github.com/gridtrack/gridtrack/pkg/config"
	"github.com/gridtrack/gridtrack/pkg/reading"
)

var (
	// ErrTooManyReadings is returned when an ingest request exceeds the
	// per-request batch limit.
	ErrTooManyReadings = fmt.Errorf("too many readings in request (max %d)", config.MaxReadingsPerRequest)

	// ErrSourceEmpty is returned when a reading has no source name.
	ErrSourceEmpty = fmt.Errorf("reading source cannot be empty")

	// ErrTimestampZero is returned when a reading has no timestamp.
	ErrTimestampZero = fmt.Errorf("reading timestamp cannot be zero")
)

// Validate checks a single reading against the registry. Synthetic
// readings are rejected at the ingest boundary; only the interpolator
// manufactures them.
func (h *Handler) Validate(rd reading.Reading) error {
	if rd.Source == "" {
		return ErrSourceEmpty
	}
	if !h.registry.Known(rd.Source) {
		return fmt.Errorf("unknown source %q", rd.Source)
	}
	if rd.Timestamp.IsZero() {
		return ErrTimestampZero
	}
	if rd.Synthetic {
		return fmt.Errorf("source %q: synthetic readings cannot be ingested", rd.Source)
	}
	return nil
}
