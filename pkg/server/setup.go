package server

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gridtrack/gridtrack/pkg/api"
	"github.com/gridtrack/gridtrack/pkg/config"
	"github.com/gridtrack/gridtrack/pkg/export"
	"github.com/gridtrack/gridtrack/pkg/ingest"
	"github.com/gridtrack/gridtrack/pkg/reading"
	"github.com/gridtrack/gridtrack/pkg/store"
	"github.com/gridtrack/gridtrack/pkg/store/badger"
)

// Config holds server configuration.
type Config struct {
	MaxMemoryMB int64
	DataDir     string
	Port        string
	InMemory    bool

	// SampleInterval is the expected spacing between readings of one
	// source; MaxGapFill is the widest gap (in missing samples) the
	// interpolator bridges.
	SampleInterval time.Duration
	MaxGapFill     int
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	maxMemoryMB := getEnvInt64("GRIDTRACK_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)
	intervalMinutes := getEnvInt64("GRIDTRACK_SAMPLE_INTERVAL_MINUTES", int64(config.DefaultSampleInterval/time.Minute))
	maxGapFill := getEnvInt64("GRIDTRACK_MAX_GAP_FILL", config.DefaultMaxGapFill)
	inMemory := os.Getenv("GRIDTRACK_IN_MEMORY") == "true"
	port := getPort()

	dataDir := os.Getenv("GRIDTRACK_DATA_DIR")
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	if !inMemory {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	return Config{
		MaxMemoryMB:    maxMemoryMB,
		DataDir:        dataDir,
		Port:           port,
		InMemory:       inMemory,
		SampleInterval: time.Duration(intervalMinutes) * time.Minute,
		MaxGapFill:     int(maxGapFill),
	}
}

// InitializeStorage initializes BadgerDB storage with the given configuration.
func InitializeStorage(cfg Config) (store.Store, error) {
	log.Println("Initializing BadgerDB storage with Snappy compression...")
	st, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		InMemory:    cfg.InMemory,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB storage initialized successfully")
	return st, nil
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(
	cfg Config,
	st store.Store,
	registry *reading.Registry,
) (
	*ingest.Handler,
	*api.Handler,
	*api.MaintenanceHandler,
	*export.Handler,
	*ingest.ReadingsHub,
	error,
) {
	ingestHandler := ingest.NewHandler(st, registry)
	log.Printf("Ingest handler created (%d registered sources)", registry.Len())

	queryHandler, err := api.NewHandler(st, registry, cfg.SampleInterval, cfg.MaxGapFill)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("create query handler: %w", err)
	}
	log.Println("Aggregation query handler created (response cache enabled)")

	maintenanceHandler := api.NewMaintenanceHandler(st, registry, cfg.SampleInterval, cfg.MaxGapFill)
	log.Printf("Maintenance handler created (interval %v, max gap fill %d)", cfg.SampleInterval, cfg.MaxGapFill)

	exportHandler := export.NewHandler(st, registry)
	log.Println("Export/Import handler created (JSON & CSV backup support)")

	hub := ingest.NewReadingsHub()
	log.Println("WebSocket hub created for real-time reading streaming")

	return ingestHandler, queryHandler, maintenanceHandler, exportHandler, hub, nil
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getPort gets the server port from PORT environment variable or returns default.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}
