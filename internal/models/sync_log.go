package models

import (
	"time"
)

type SyncType string

const (
	SyncTypeDaily      SyncType = "daily"
	SyncTypeCleanup    SyncType = "weekly_cleanup"
	SyncTypeSelection  SyncType = "quarterly_selection"
	SyncTypeCollection SyncType = "collection"
)

type SyncStatus string

const (
	SyncStatusStarted   SyncStatus = "started"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncLog is the audit row for one sync/cleanup/selection run. Every run
// opens exactly one "started" row and closes it exactly once; the scheduler
// inspects open rows to skip overlapping daily runs.
type SyncLog struct {
	ID              string     `json:"id" gorm:"primaryKey"` // uuid
	Type            SyncType   `json:"type" gorm:"index"`
	TargetSlug      string     `json:"target_slug,omitempty"`
	Status          SyncStatus `json:"status" gorm:"index"`
	Processed       int        `json:"processed"`
	Inserted        int        `json:"inserted"`
	Updated         int        `json:"updated"`
	Errors          int        `json:"errors"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// Open reports whether the run has not yet been finalized
func (l *SyncLog) Open() bool {
	return l.Status == SyncStatusStarted
}
