package export

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gridtrack/gridtrack/pkg/config"
	"github.com/gridtrack/gridtrack/pkg/httpx"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Handler handles export/import HTTP endpoints
type Handler struct {
	exporter *Exporter
	importer *Importer
}

// NewHandler creates a new export/import handler
func NewHandler(st store.Store, registry *reading.Registry) *Handler {
	return &Handler{
		exporter: NewExporter(st),
		importer: NewImporter(st, registry),
	}
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - start: RFC3339 timestamp (default: 24h ago)
//   - end: RFC3339 timestamp (default: now)
//   - sources: comma-separated source filter (optional)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Invalid format. Must be 'json' or 'csv'")
		return
	}

	end := parseTimeParam(query.Get("end"), time.Now())
	start := parseTimeParam(query.Get("start"), end.Add(-config.DefaultExportWindow))

	if !start.Before(end) {
		httpx.RespondErrorString(w, http.StatusBadRequest, "start must be before end")
		return
	}
	if end.Sub(start) > config.MaxExportWindow {
		httpx.RespondErrorString(w, http.StatusBadRequest,
			fmt.Sprintf("Time range too large. Maximum is %v", config.MaxExportWindow))
		return
	}

	opts := ExportOptions{
		Start:  start,
		End:    end,
		Format: format,
	}
	if sources := query.Get("sources"); sources != "" {
		opts.Sources = strings.Split(sources, ",")
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=gridtrack-export-%s.json", timestamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=gridtrack-export-%s.csv", timestamp))
	}

	ctx := r.Context()
	var result *ExportResult
	var err error
	if format == "json" {
		result, err = h.exporter.ExportToJSON(ctx, w, opts)
	} else {
		result, err = h.exporter.ExportToCSV(ctx, w, opts)
	}
	if err != nil {
		log.Printf("❌ Export failed: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("export failed: %w", err))
		return
	}

	log.Printf("✅ Exported %d readings (%s) from %s", result.ReadingsExported, format, result.TimeRange)
}

// HandleImport handles POST /v1/import
// Accepts JSON backup files and imports readings into storage
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	result, err := h.importer.ImportFromJSON(r.Context(), r.Body)
	if err != nil {
		log.Printf("❌ Import failed: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("import failed: %w", err))
		return
	}

	if len(result.Errors) > 0 {
		log.Printf("⚠️  Import completed with %d validation errors", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 { // Log first 10 errors
				log.Printf("   - %s", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			log.Printf("   ... and %d more errors", len(result.Errors)-10)
		}
	}

	log.Printf("✅ Imported %d readings in %d batches from %s", result.ReadingsImported, result.BatchesWritten, result.TimeRange)

	httpx.RespondJSON(w, http.StatusOK, result)
}

// parseTimeParam parses a time parameter or returns default
func parseTimeParam(param string, defaultTime time.Time) time.Time {
	if param == "" {
		return defaultTime
	}

	if t, err := time.Parse(time.RFC3339, param); err == nil {
		return t
	}

	// Try simple datetime format
	if t, err := time.Parse("2006-01-02T15:04:05", param); err == nil {
		return t
	}

	return defaultTime
}
