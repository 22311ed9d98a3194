package monitor

import (
	"errors"
	"testing"
	"time"
)

func TestMaintenanceMonitor_RecordSuccess(t *testing.T) {
	mm := &MaintenanceMonitor{}
	mm.RecordSuccess(3, 2)

	status := mm.Status()
	if !status.Healthy {
		t.Error("Status should be healthy after success")
	}
	if status.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", status.ConsecutiveErrors)
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q, want empty", status.LastError)
	}
	if status.DuplicatesRemoved != 3 {
		t.Errorf("DuplicatesRemoved = %d, want 3", status.DuplicatesRemoved)
	}
	if status.GapsFilled != 2 {
		t.Errorf("GapsFilled = %d, want 2", status.GapsFilled)
	}
}

func TestMaintenanceMonitor_TotalsAccumulate(t *testing.T) {
	mm := &MaintenanceMonitor{}
	mm.RecordSuccess(3, 2)
	mm.RecordSuccess(1, 4)

	status := mm.Status()
	if status.DuplicatesRemoved != 4 {
		t.Errorf("DuplicatesRemoved = %d, want 4", status.DuplicatesRemoved)
	}
	if status.GapsFilled != 6 {
		t.Errorf("GapsFilled = %d, want 6", status.GapsFilled)
	}
}

func TestMaintenanceMonitor_RecordFailure(t *testing.T) {
	mm := &MaintenanceMonitor{}
	mm.RecordFailure(errors.New("store unavailable"))

	status := mm.Status()
	if status.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", status.ConsecutiveErrors)
	}
	if status.LastError != "store unavailable" {
		t.Errorf("LastError = %q, want %q", status.LastError, "store unavailable")
	}
}

func TestMaintenanceMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*MaintenanceMonitor)
		expected bool
	}{
		{
			name:     "never succeeded",
			setup:    func(*MaintenanceMonitor) {},
			expected: false,
		},
		{
			name: "recent success",
			setup: func(mm *MaintenanceMonitor) {
				mm.RecordSuccess(0, 0)
			},
			expected: true,
		},
		{
			name: "stale success",
			setup: func(mm *MaintenanceMonitor) {
				mm.mu.Lock()
				mm.lastSuccess = time.Now().Add(-4 * time.Hour)
				mm.mu.Unlock()
			},
			expected: false,
		},
		{
			name: "too many consecutive errors",
			setup: func(mm *MaintenanceMonitor) {
				mm.RecordSuccess(0, 0)
				mm.RecordFailure(errors.New("error 1"))
				mm.RecordFailure(errors.New("error 2"))
				mm.RecordFailure(errors.New("error 3"))
				mm.RecordFailure(errors.New("error 4"))
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm := &MaintenanceMonitor{}
			tt.setup(mm)
			if got := mm.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}
