package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gridtrack/gridtrack/pkg/dedup"
	"github.com/gridtrack/gridtrack/pkg/httpx"
	"github.com/gridtrack/gridtrack/pkg/interpolate"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// MaintenanceHandler exposes the dataset repair operations over HTTP.
// Both operations are idempotent, so an interrupted or repeated call is
// always safe.
type MaintenanceHandler struct {
	store    store.Store
	registry *reading.Registry
	interval time.Duration
	maxGap   int
}

// NewMaintenanceHandler creates a maintenance handler. interval is the
// expected sampling interval, maxGap the default fill width when a
// request does not override it.
func NewMaintenanceHandler(st store.Store, registry *reading.Registry, interval time.Duration, maxGap int) *MaintenanceHandler {
	return &MaintenanceHandler{store: st, registry: registry, interval: interval, maxGap: maxGap}
}

// HandleDeduplicate handles POST /v1/maintenance/deduplicate. Optional
// start_time and end_time bound the scan; omitting both scans everything.
func (h *MaintenanceHandler) HandleDeduplicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start, end, err := parseOptionalRange(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	report, err := dedup.New(h.store).Run(r.Context(), start, end)
	if err != nil {
		respondQueryError(w, err)
		return
	}

	log.Printf("Deduplication via API: %d sources scanned, %d duplicates removed in %v",
		report.SourcesScanned, report.DuplicatesRemoved, report.Duration)
	httpx.RespondJSON(w, http.StatusOK, report)
}

// HandleInterpolate handles POST /v1/maintenance/interpolate. Optional
// max_width overrides the default fill width, start_time and end_time
// bound the scan.
func (h *MaintenanceHandler) HandleInterpolate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	maxGap := h.maxGap
	if raw := r.URL.Query().Get("max_width"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid max_width %q", raw))
			return
		}
		maxGap = parsed
	}

	start, end, err := parseOptionalRange(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	filler, err := interpolate.New(h.store, h.interval, maxGap)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	report, err := filler.Run(r.Context(), h.registry.Names(), start, end)
	if err != nil {
		respondQueryError(w, err)
		return
	}

	log.Printf("Gap fill via API: %d gaps filled, %d skipped, %d readings inserted in %v",
		report.GapsFilled, report.GapsSkipped, report.ReadingsInserted, report.Duration)
	httpx.RespondJSON(w, http.StatusOK, report)
}

// parseOptionalRange reads optional start_time/end_time parameters. A
// zero time means unbounded on that side.
func parseOptionalRange(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time

	if raw := r.URL.Query().Get("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, fmt.Errorf("invalid start_time: %w", err)
		}
		start = t.UTC()
	}
	if raw := r.URL.Query().Get("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, fmt.Errorf("invalid end_time: %w", err)
		}
		end = t.UTC()
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return start, end, fmt.Errorf("start_time must precede end_time")
	}
	return start, end, nil
}
