package services

import (
	"fmt"
	"log"
	"time"

	"github.com/nftmetrics/floor-tracker/internal/config"
	"github.com/nftmetrics/floor-tracker/internal/metrics"
	"github.com/nftmetrics/floor-tracker/internal/models"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

// CleanupJob prunes price records past the retention window, expires old
// sync-log rows, and compacts the database. Idempotent: a second run right
// after the first deletes nothing.
type CleanupJob struct {
	store     *store.Store
	retention config.RetentionConfig
}

func NewCleanupJob(st *store.Store, retention config.RetentionConfig) *CleanupJob {
	return &CleanupJob{store: st, retention: retention}
}

// CleanupResult reports what one cleanup run removed
type CleanupResult struct {
	PricesDeleted int64         `json:"prices_deleted"`
	LogsDeleted   int64         `json:"logs_deleted"`
	Duration      time.Duration `json:"duration"`
}

// Run executes the weekly retention pass under a SyncLog audit row
func (j *CleanupJob) Run() (*CleanupResult, error) {
	start := time.Now()

	entry, err := j.store.StartSyncLog(models.SyncTypeCleanup, "")
	if err != nil {
		return nil, fmt.Errorf("opening cleanup sync log: %w", err)
	}

	result, runErr := j.run()
	if runErr != nil {
		metrics.SyncRunsTotal.WithLabelValues(string(models.SyncTypeCleanup), "failed").Inc()
		if logErr := j.store.CompleteSyncLog(entry, models.SyncStatusFailed, 0, 0, 0, 1, runErr.Error()); logErr != nil {
			log.Printf("Cleanup: failed to finalize sync log %s: %v", entry.ID, logErr)
		}
		return nil, runErr
	}

	result.Duration = time.Since(start)
	metrics.SyncRunsTotal.WithLabelValues(string(models.SyncTypeCleanup), "completed").Inc()
	metrics.RetentionDeletedTotal.Add(float64(result.PricesDeleted))

	processed := int(result.PricesDeleted + result.LogsDeleted)
	if logErr := j.store.CompleteSyncLog(entry, models.SyncStatusCompleted, processed, 0, 0, 0, ""); logErr != nil {
		log.Printf("Cleanup: failed to finalize sync log %s: %v", entry.ID, logErr)
	}

	log.Printf("Cleanup: removed %d price records and %d sync logs in %s",
		result.PricesDeleted, result.LogsDeleted, result.Duration.Round(time.Millisecond))
	return result, nil
}

func (j *CleanupJob) run() (*CleanupResult, error) {
	result := &CleanupResult{}

	cutoff := models.DayKey(time.Now().AddDate(0, 0, -j.retention.PriceDays))
	deleted, err := j.store.DeletePriceRecordsBefore(cutoff)
	if err != nil {
		return nil, fmt.Errorf("pruning price records before %s: %w", cutoff, err)
	}
	result.PricesDeleted = deleted

	logCutoff := time.Now().AddDate(0, 0, -j.retention.LogDays)
	logsDeleted, err := j.store.PruneSyncLogs(logCutoff)
	if err != nil {
		return nil, fmt.Errorf("pruning sync logs: %w", err)
	}
	result.LogsDeleted = logsDeleted

	if result.PricesDeleted > 0 || result.LogsDeleted > 0 {
		if err := j.store.Vacuum(); err != nil {
			// Compaction is best-effort; the deletes already landed
			log.Printf("Cleanup: vacuum failed: %v", err)
		}
	}

	return result, nil
}
