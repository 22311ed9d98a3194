package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gridtrack/gridtrack/pkg/config"
	"github.com/gridtrack/gridtrack/pkg/dedup"
	"github.com/gridtrack/gridtrack/pkg/ingest"
	"github.com/gridtrack/gridtrack/pkg/interpolate"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/server/monitor"
	"github.com/gridtrack/gridtrack/pkg/store"
	"github.com/gridtrack/gridtrack/pkg/store/badger"
)

// RunMaintenance runs the dataset repair pass periodically: collapse
// duplicate readings, then bridge small gaps with synthetic readings.
// Both passes are idempotent, so an interrupted run is repaired by the
// next one.
func RunMaintenance(
	cfg Config,
	st store.Store,
	registry *reading.Registry,
	maintMonitor *monitor.MaintenanceMonitor,
	stop chan bool,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	ticker := time.NewTicker(config.MaintenanceInterval)
	defer ticker.Stop()

	deduplicator := dedup.New(st)
	filler, err := interpolate.New(st, cfg.SampleInterval, cfg.MaxGapFill)
	if err != nil {
		log.Printf("Maintenance disabled, invalid interpolation config: %v", err)
		return
	}

	// Helper function to run maintenance with retry and exponential backoff
	runWithRetry := func(ctx context.Context, isInitial bool) {
		maxRetries := 3
		baseDelay := 30 * time.Second

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := baseDelay * time.Duration(1<<(attempt-1)) // Exponential backoff: 30s, 60s, 120s
				log.Printf("Retrying maintenance in %v (attempt %d/%d)...", delay, attempt+1, maxRetries+1)
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			start := time.Now()
			dedupReport, err := deduplicator.Run(ctx, time.Time{}, time.Time{})
			var fillReport *interpolate.Report
			if err == nil {
				fillReport, err = filler.Run(ctx, registry.Names(), time.Time{}, time.Time{})
			}

			if err == nil {
				maintMonitor.RecordSuccess(dedupReport.DuplicatesRemoved, fillReport.GapsFilled)
				if isInitial {
					log.Printf("Initial maintenance completed in %v (%d duplicates removed, %d gaps filled)",
						time.Since(start).Round(time.Millisecond), dedupReport.DuplicatesRemoved, fillReport.GapsFilled)
				} else {
					log.Printf("Maintenance completed in %v (%d duplicates removed, %d gaps filled, %d gaps skipped)",
						time.Since(start).Round(time.Millisecond), dedupReport.DuplicatesRemoved,
						fillReport.GapsFilled, fillReport.GapsSkipped)
				}
				return
			}

			maintMonitor.RecordFailure(err)
			log.Printf("Maintenance failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err)

			status := maintMonitor.Status()
			if status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: Maintenance has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Maintenance failed after %d attempts, will retry on next schedule", maxRetries+1)
	}

	// Run once on startup (non-blocking)
	go func() {
		log.Println("Running initial maintenance (deduplicate + gap fill)...")
		runWithRetry(context.Background(), true)
	}()

	for {
		select {
		case <-ticker.C:
			log.Println("Scheduled maintenance started...")
			runWithRetry(context.Background(), false)
		case <-stop:
			log.Println("Stopping maintenance scheduler")
			return
		}
	}
}

// BroadcastReadings periodically fetches and broadcasts fresh readings to
// WebSocket clients. Uses exponential backoff on errors to prevent log
// spam during outages.
func BroadcastReadings(ctx context.Context, ingestHandler *ingest.Handler, hub *ingest.ReadingsHub) {
	ticker := time.NewTicker(config.WSBroadcastEvery)
	defer ticker.Stop()

	// Exponential backoff state for error handling
	var consecutiveErrors int
	var lastErrorTime time.Time
	const maxBackoff = 5 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Skip querying if no clients connected - saves resources
			if !hub.HasClients() {
				continue
			}

			// Query the most recent sample periods for live updates,
			// capped to prevent overwhelming clients
			results, err := ingestHandler.RecentReadings(ctx, 2*config.DefaultSampleInterval, 1000)
			if err != nil {
				consecutiveErrors++
				now := time.Now()

				// Exponential backoff: 1s, 2s, 4s, ... capped at 5m.
				// Prevents log spam during persistent errors or outages.
				backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
				if backoff > maxBackoff {
					backoff = maxBackoff
				}

				if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
					log.Printf("Failed to query readings for broadcast (error #%d, backoff %v): %v",
						consecutiveErrors, backoff, err)
					lastErrorTime = now
				}
				continue
			}

			// Reset error count on success
			if consecutiveErrors > 0 {
				log.Printf("Readings broadcast recovered after %d errors", consecutiveErrors)
				consecutiveErrors = 0
			}

			if len(results) > 0 {
				update := map[string]interface{}{
					"type":      "readings_update",
					"timestamp": time.Now().Unix(),
					"readings":  results,
					"count":     len(results),
				}

				if err := hub.Broadcast(update); err != nil {
					log.Printf("Failed to broadcast readings: %v", err)
				}
			}
		}
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim
// disk space. LSM trees accumulate deleted data in the value log, so GC
// is essential to prevent unbounded disk growth.
func RunBadgerGC(st store.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	badgerStore, ok := st.(*badger.Store)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			log.Println("Running BadgerDB garbage collection...")
			start := time.Now()

			// Reclaim space when at least half of a value log file is
			// garbage; one iteration per tick to avoid long stalls.
			err := badgerStore.RunGC(0.5)
			if err != nil {
				// Not an error if no GC was needed
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}

// min returns the minimum of two integers.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
