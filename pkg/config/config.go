package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultDataDir     = "./data/gridtrack"
	DefaultMaxMemoryMB = 48
)

// Sampling and gap filling. The upstream feed reports one reading per
// source per 30-minute settlement period; only isolated single-sample
// gaps are bridged by default.
const (
	DefaultSampleInterval = 30 * time.Minute
	DefaultMaxGapFill     = 1
)

// Maintenance intervals
const (
	MaintenanceInterval = 1 * time.Hour
	BadgerGCInterval    = 10 * time.Minute
)

// Query timeouts and limits
const (
	QueryTimeout       = 30 * time.Second
	MaxBinsPerRequest  = 5000
	MaxSourcesPerQuery = 32
	QueryCacheTTL      = 60 * time.Second
	QueryCacheEntries  = 1 << 12
)

// Facade retry policy for transient store failures
const (
	StoreRetryAttempts = 3
	StoreRetryBaseWait = 100 * time.Millisecond
)

// Ingest timeouts and limits
const (
	IngestTimeout         = 5 * time.Second
	MaxReadingsPerRequest = 5000
)

// Export defaults and limits
const (
	DefaultExportWindow = 24 * time.Hour
	MaxExportWindow     = 90 * 24 * time.Hour
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
	WSBroadcastEvery  = 5 * time.Second
)
