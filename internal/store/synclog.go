package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nftmetrics/floor-tracker/internal/models"
)

// StartSyncLog opens the audit row for a run. Every run opens exactly one
// row and must close it through CompleteSyncLog.
func (s *Store) StartSyncLog(syncType models.SyncType, targetSlug string) (*models.SyncLog, error) {
	entry := &models.SyncLog{
		ID:         uuid.NewString(),
		Type:       syncType,
		TargetSlug: targetSlug,
		Status:     models.SyncStatusStarted,
		StartedAt:  time.Now(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// CompleteSyncLog finalizes a run's audit row with its terminal status and
// totals
func (s *Store) CompleteSyncLog(entry *models.SyncLog, status models.SyncStatus, processed, inserted, updated, errCount int, errMsg string) error {
	now := time.Now()
	entry.Status = status
	entry.Processed = processed
	entry.Inserted = inserted
	entry.Updated = updated
	entry.Errors = errCount
	entry.ErrorMessage = errMsg
	entry.CompletedAt = &now
	entry.DurationSeconds = now.Sub(entry.StartedAt).Seconds()

	return s.db.Model(&models.SyncLog{}).Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":           entry.Status,
			"processed":        entry.Processed,
			"inserted":         entry.Inserted,
			"updated":          entry.Updated,
			"errors":           entry.Errors,
			"error_message":    entry.ErrorMessage,
			"completed_at":     entry.CompletedAt,
			"duration_seconds": entry.DurationSeconds,
		}).Error
}

// RecentSyncLogs returns the newest limit audit rows
func (s *Store) RecentSyncLogs(limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []models.SyncLog
	err := s.db.Order("started_at DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// OpenRunSince returns an unfinished run of the given type begun after the
// cutoff, or nil. The scheduler uses this as its advisory overlap guard.
func (s *Store) OpenRunSince(syncType models.SyncType, since time.Time) (*models.SyncLog, error) {
	var entry models.SyncLog
	err := s.db.Where("type = ? AND status = ? AND started_at > ?",
		syncType, models.SyncStatusStarted, since).
		Order("started_at DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// PruneSyncLogs deletes audit rows older than the cutoff and returns the
// count removed
func (s *Store) PruneSyncLogs(before time.Time) (int64, error) {
	result := s.db.Where("started_at < ?", before).Delete(&models.SyncLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
