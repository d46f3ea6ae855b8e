package models

import (
	"testing"
	"time"
)

func TestQuarterOf(t *testing.T) {
	tests := []struct {
		name     string
		date     time.Time
		expected string
	}{
		{"January is Q1", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "2025-Q1"},
		{"March is Q1", time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC), "2025-Q1"},
		{"April is Q2", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "2025-Q2"},
		{"June is Q2", time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), "2025-Q2"},
		{"July is Q3", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), "2025-Q3"},
		{"September is Q3", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), "2025-Q3"},
		{"October is Q4", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), "2025-Q4"},
		{"December is Q4", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), "2025-Q4"},
		{"year carries over", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "2026-Q1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuarterOf(tt.date); got != tt.expected {
				t.Errorf("QuarterOf(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.expected)
			}
		})
	}
}

func TestPriceRecordIsValid(t *testing.T) {
	positive := 1.5
	zero := 0.0
	negative := -0.2

	tests := []struct {
		name     string
		floor    *float64
		expected bool
	}{
		{"positive floor is valid", &positive, true},
		{"zero floor is invalid", &zero, false},
		{"negative floor is invalid", &negative, false},
		{"missing floor is invalid", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := PriceRecord{FloorEth: tt.floor}
			if got := r.IsValid(); got != tt.expected {
				t.Errorf("IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDayKey(t *testing.T) {
	// DayKey always uses UTC, regardless of the input zone
	loc := time.FixedZone("UTC+9", 9*3600)
	late := time.Date(2025, 1, 2, 1, 30, 0, 0, loc) // still Jan 1 in UTC
	if got := DayKey(late); got != "2025-01-01" {
		t.Errorf("DayKey() = %s, want 2025-01-01", got)
	}
}

func TestSyncLogOpen(t *testing.T) {
	l := SyncLog{Status: SyncStatusStarted}
	if !l.Open() {
		t.Error("started log should be open")
	}
	l.Status = SyncStatusCompleted
	if l.Open() {
		t.Error("completed log should not be open")
	}
}
