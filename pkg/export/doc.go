// Package export provides readings backup and restore functionality.
//
// # Overview
//
// The export package enables users to back up stored generation readings
// to JSON or CSV files and restore them later. This is useful for:
//   - Data backup and disaster recovery
//   - Migrating readings between GridTrack instances
//   - Exporting data for analysis in external tools
//   - Archiving historical generation data
//
// # Supported Formats
//
// JSON Format:
//   - Preserves every reading field (source, timestamp, value, synthetic)
//   - Includes export metadata (timestamp, time range, reading count)
//   - Can be re-imported into GridTrack
//   - Human-readable with pretty-printing
//
// CSV Format:
//   - Flattened representation suitable for spreadsheets
//   - One row per reading: timestamp, source, value, synthetic
//   - Good for analysis in Excel, pandas, or other tools
//   - Cannot be re-imported (export-only)
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - start: RFC3339 timestamp (default: 24h ago)
//   - end: RFC3339 timestamp (default: now)
//   - sources: comma-separated source filter (optional)
//
// Example:
//
//	curl "http://localhost:8080/v1/export?format=json&start=2026-03-01T00:00:00Z" \
//	  -o backup.json
//
// Import endpoint: POST /v1/import
// Content-Type: application/json
//
// Example:
//
//	curl -X POST "http://localhost:8080/v1/import" \
//	  -H "Content-Type: application/json" \
//	  -d @backup.json
//
// # Usage Limits
//
//   - Maximum export time range: 90 days
//   - Default export window: 24 hours
//   - Import batch size: 5,000 readings per write operation
//   - Validation: readings older than 10 years or 1 day in future are rejected
//
// # Programmatic Usage
//
// Exporting readings:
//
//	exporter := export.NewExporter(store)
//	opts := export.ExportOptions{
//	    Start:  time.Now().Add(-24 * time.Hour),
//	    End:    time.Now(),
//	    Format: "json",
//	}
//
//	file, _ := os.Create("backup.json")
//	defer file.Close()
//
//	result, err := exporter.ExportToJSON(ctx, file, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Exported %d readings\n", result.ReadingsExported)
//
// Importing readings:
//
//	importer := export.NewImporter(store, registry)
//
//	file, _ := os.Open("backup.json")
//	defer file.Close()
//
//	result, err := importer.ImportFromJSON(ctx, file)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Imported %d readings in %d batches\n",
//	    result.ReadingsImported, result.BatchesWritten)
//
// # Data Format
//
// The JSON export format includes metadata and readings:
//
//	{
//	  "metadata": {
//	    "exported_at": "2026-03-02T03:00:00Z",
//	    "start_time": "2026-03-01T03:00:00Z",
//	    "end_time": "2026-03-02T03:00:00Z",
//	    "reading_count": 528,
//	    "format": "json",
//	    "version": "1.0"
//	  },
//	  "readings": [
//	    {
//	      "source": "wind_onshore",
//	      "timestamp": "2026-03-01T03:30:00Z",
//	      "value": 4821.5,
//	      "synthetic": false
//	    }
//	  ]
//	}
//
// # Error Handling
//
// Import operations validate each reading and skip invalid ones rather
// than failing the entire import. Validation errors are reported in the
// ImportResult:
//
//	result, err := importer.ImportFromJSON(ctx, file)
//	if err != nil {
//	    // Fatal error - import could not proceed
//	    log.Fatal(err)
//	}
//
//	if len(result.Errors) > 0 {
//	    // Some readings were invalid and skipped
//	    for _, errMsg := range result.Errors {
//	        log.Printf("Validation error: %s", errMsg)
//	    }
//	}
package export
