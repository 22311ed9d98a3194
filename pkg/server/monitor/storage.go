package monitor

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StorageMonitor tracks data directory usage with caching to avoid
// expensive filesystem walks on every health check.
type StorageMonitor struct {
	dataDir       string
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// NewStorageMonitor creates a new storage monitor.
func NewStorageMonitor(dataDir string) *StorageMonitor {
	return &StorageMonitor{
		dataDir:       dataDir,
		cacheDuration: 10 * time.Second,
	}
}

// GetUsage returns current storage usage in bytes (cached). The cache is
// refreshed every 10 seconds to balance accuracy with performance.
func (sm *StorageMonitor) GetUsage() (int64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cachedUsage, nil
	}

	usage, err := calculateDirSize(sm.dataDir)
	if err != nil {
		return 0, err
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// calculateDirSize recursively calculates directory size in bytes.
// Uses actual disk usage (not logical size) to handle sparse files,
// which badger's preallocated value log files are.
func calculateDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += actualFileSize(info)
		}
		return nil
	})
	return size, err
}

// actualFileSize is implemented in platform-specific files:
// - filesize_unix.go (Linux/Mac): uses syscall.Stat_t.Blocks
// - filesize_windows.go (Windows): falls back to logical size
