package services

import (
	"testing"
	"time"

	"github.com/nftmetrics/floor-tracker/internal/config"
	"github.com/nftmetrics/floor-tracker/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestCleanupPrunesOldPriceRecords(t *testing.T) {
	st := newTestStore(t)
	job := NewCleanupJob(st, config.RetentionConfig{PriceDays: 30, LogDays: 30})

	old := models.DayKey(time.Now().AddDate(0, 0, -60))
	recent := models.DayKey(time.Now().AddDate(0, 0, -5))
	if _, err := st.BulkUpsertPriceRecords([]models.PriceRecord{
		{CollectionSlug: "azuki", Date: old, Timestamp: time.Now().Unix(), FloorEth: floatPtr(1.0)},
		{CollectionSlug: "azuki", Date: recent, Timestamp: time.Now().Unix(), FloorEth: floatPtr(1.1)},
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	result, err := job.Run()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if result.PricesDeleted != 1 {
		t.Errorf("prices deleted = %d, want 1", result.PricesDeleted)
	}

	got, err := st.GetPriceRecord("azuki", recent)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Error("recent record must survive cleanup")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	job := NewCleanupJob(st, config.RetentionConfig{PriceDays: 30, LogDays: 30})

	old := models.DayKey(time.Now().AddDate(0, 0, -60))
	if _, err := st.BulkUpsertPriceRecords([]models.PriceRecord{
		{CollectionSlug: "azuki", Date: old, Timestamp: time.Now().Unix(), FloorEth: floatPtr(1.0)},
	}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	first, err := job.Run()
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.PricesDeleted != 1 {
		t.Errorf("first run deleted %d, want 1", first.PricesDeleted)
	}

	second, err := job.Run()
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.PricesDeleted != 0 {
		t.Errorf("second run deleted %d, want 0", second.PricesDeleted)
	}
}

func TestCleanupWritesAuditRow(t *testing.T) {
	st := newTestStore(t)
	job := NewCleanupJob(st, config.RetentionConfig{PriceDays: 30, LogDays: 30})

	if _, err := job.Run(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	logs, err := st.RecentSyncLogs(5)
	if err != nil {
		t.Fatalf("logs query failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(logs))
	}
	if logs[0].Type != models.SyncTypeCleanup || logs[0].Status != models.SyncStatusCompleted {
		t.Errorf("log = %s/%s, want weekly_cleanup/completed", logs[0].Type, logs[0].Status)
	}
}
