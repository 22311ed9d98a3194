package monitor

import (
	"sync"
	"time"
)

// MaintenanceMonitor tracks the health of the periodic dataset repair
// pass (deduplication followed by gap filling).
type MaintenanceMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string

	duplicatesRemoved int
	gapsFilled        int
}

// RecordSuccess records a successful maintenance pass and its totals.
func (mm *MaintenanceMonitor) RecordSuccess(duplicatesRemoved, gapsFilled int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.lastSuccess = time.Now()
	mm.lastAttempt = time.Now()
	mm.consecutiveErrors = 0
	mm.lastError = ""
	mm.duplicatesRemoved += duplicatesRemoved
	mm.gapsFilled += gapsFilled
}

// RecordFailure records a failed maintenance pass.
func (mm *MaintenanceMonitor) RecordFailure(err error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.lastAttempt = time.Now()
	mm.consecutiveErrors++
	if err != nil {
		mm.lastError = err.Error()
	}
}

// IsHealthy returns true if maintenance is working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - Haven't succeeded in >3 hours
//   - More than 3 consecutive failures
func (mm *MaintenanceMonitor) IsHealthy() bool {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.healthyLocked()
}

func (mm *MaintenanceMonitor) healthyLocked() bool {
	if mm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(mm.lastSuccess) > 3*time.Hour {
		return false
	}
	if mm.consecutiveErrors > 3 {
		return false
	}
	return true
}

// MaintenanceStatus is the maintenance portion of the health check.
type MaintenanceStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	DuplicatesRemoved int    `json:"duplicates_removed"`
	GapsFilled        int    `json:"gaps_filled"`
}

// Status returns current maintenance status for health checks.
func (mm *MaintenanceMonitor) Status() MaintenanceStatus {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	status := MaintenanceStatus{
		Healthy:           mm.healthyLocked(),
		DuplicatesRemoved: mm.duplicatesRemoved,
		GapsFilled:        mm.gapsFilled,
	}

	if !mm.lastSuccess.IsZero() {
		status.LastSuccess = mm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(mm.lastSuccess).String()
	}
	if !mm.lastAttempt.IsZero() {
		status.LastAttempt = mm.lastAttempt.Format(time.RFC3339)
	}
	if mm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = mm.consecutiveErrors
		status.LastError = mm.lastError
	}

	return status
}
