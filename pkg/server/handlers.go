package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridtrack/gridtrack/pkg/api"
	"github.com/gridtrack/gridtrack/pkg/export"
	"github.com/gridtrack/gridtrack/pkg/httpx"
	"github.com/gridtrack/gridtrack/pkg/ingest"
	"github.com/gridtrack/gridtrack/pkg/server/monitor"
)

var startTime = time.Now()

// StorageUsage represents current storage usage stats.
type StorageUsage struct {
	UsedBytes int64 `json:"used_bytes"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Uptime      string                    `json:"uptime"`
	Maintenance monitor.MaintenanceStatus `json:"maintenance"`
}

// handleHealth returns service health status.
func handleHealth(maintMonitor *monitor.MaintenanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maintenanceHealthy := maintMonitor.IsHealthy()
		overallStatus := "healthy"
		statusCode := http.StatusOK

		if !maintenanceHealthy {
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:      overallStatus,
			Version:     "1.0.0",
			Uptime:      time.Since(startTime).String(),
			Maintenance: maintMonitor.Status(),
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStorageUsage returns current storage usage.
func handleStorageUsage(storageMonitor *monitor.StorageMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usedBytes, err := storageMonitor.GetUsage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, StorageUsage{UsedBytes: usedBytes})
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(
	router *mux.Router,
	ingestHandler *ingest.Handler,
	queryHandler *api.Handler,
	maintenanceHandler *api.MaintenanceHandler,
	exportHandler *export.Handler,
	storageMonitor *monitor.StorageMonitor,
	maintMonitor *monitor.MaintenanceMonitor,
	hub *ingest.ReadingsHub,
	port string,
) {
	// CORS middleware for API access
	router.Use(corsMiddleware(port))

	// API routes
	v1 := router.PathPrefix("/v1").Subrouter()

	// Reading ingestion and aggregation queries
	v1.HandleFunc("/ingest", ingestHandler.HandleIngest).Methods("POST")
	v1.HandleFunc("/generation/aggregated", queryHandler.HandleAggregated).Methods("GET")
	v1.HandleFunc("/generation/sources", ingestHandler.HandleSources).Methods("GET")

	// Dataset maintenance
	v1.HandleFunc("/maintenance/deduplicate", maintenanceHandler.HandleDeduplicate).Methods("POST")
	v1.HandleFunc("/maintenance/interpolate", maintenanceHandler.HandleInterpolate).Methods("POST")

	// Metadata and stats
	v1.HandleFunc("/stats", ingestHandler.HandleStats).Methods("GET")
	v1.HandleFunc("/storage", handleStorageUsage(storageMonitor)).Methods("GET")
	v1.HandleFunc("/health", handleHealth(maintMonitor)).Methods("GET")

	// WebSocket for real-time updates
	v1.HandleFunc("/stream", ingestHandler.HandleWebSocket(hub)).Methods("GET")

	// Export/import
	v1.HandleFunc("/export", exportHandler.HandleExport).Methods("GET")
	v1.HandleFunc("/import", exportHandler.HandleImport).Methods("POST")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Allow localhost origins for local development
			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			// Only set CORS headers for allowed origins
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
