package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/server"
	"github.com/gridtrack/gridtrack/pkg/server/monitor"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("🚀 Starting GridTrack Server...")

	// Read configuration from environment variables
	// GRIDTRACK_MAX_MEMORY_MB: Maximum BadgerDB memory in MB
	// GRIDTRACK_SAMPLE_INTERVAL_MINUTES: expected reading spacing
	// GRIDTRACK_MAX_GAP_FILL: widest gap (in samples) to interpolate
	// GRIDTRACK_DATA_DIR / GRIDTRACK_IN_MEMORY / PORT
	cfg := server.LoadConfig()
	log.Printf("⚙️  Configuration: memory limit = %d MB, sample interval = %v, max gap fill = %d",
		cfg.MaxMemoryMB, cfg.SampleInterval, cfg.MaxGapFill)
	log.Printf("📁 Data directory: %s", cfg.DataDir)

	st, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer st.Close()

	registry := reading.DefaultRegistry()
	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir)
	maintMonitor := &monitor.MaintenanceMonitor{}

	ingestHandler, queryHandler, maintenanceHandler, exportHandler, hub, err :=
		server.InitializeHandlers(cfg, st, registry)
	if err != nil {
		log.Fatalf("❌ Failed to initialize handlers: %v", err)
	}
	defer queryHandler.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for real-time reading streaming")

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.BroadcastReadings(ctx, ingestHandler, hub)
	}()
	log.Println("📤 Readings broadcaster started (updates every 5s)")

	// Periodic dataset repair: deduplicate, then fill small gaps
	stopMaintenance := make(chan bool)
	wg.Add(1)
	go server.RunMaintenance(cfg, st, registry, maintMonitor, stopMaintenance, &wg)

	// BadgerDB garbage collection (reclaims disk space)
	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(st, stopGC, &wg)

	router := mux.NewRouter()
	server.SetupRoutes(router, ingestHandler, queryHandler, maintenanceHandler,
		exportHandler, storageMonitor, maintMonitor, hub, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   POST /v1/ingest                   - Ingest generation readings")
		log.Println("   GET  /v1/generation/aggregated    - Time-binned aggregation queries")
		log.Println("   GET  /v1/generation/sources       - Registered sources")
		log.Println("   POST /v1/maintenance/deduplicate  - Collapse duplicate readings")
		log.Println("   POST /v1/maintenance/interpolate  - Fill small gaps")
		log.Println("   GET  /v1/stats                    - Storage statistics")
		log.Println("   GET  /v1/export                   - Backup readings (JSON/CSV)")
		log.Println("✅ Server ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel context FIRST to stop goroutines, before wg.Wait()
	log.Println("⏸️  Stopping background tasks...")
	cancel()
	close(stopMaintenance)
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	log.Println("⏳ Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 GridTrack server exited cleanly")
}
