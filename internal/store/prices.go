package store

import (
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nftmetrics/floor-tracker/internal/models"
)

// priceUpsertColumns are the columns refreshed when a (slug, date) row
// already exists
var priceUpsertColumns = []string{
	"timestamp", "floor_eth", "floor_usd", "volume_eth", "volume_usd",
	"sales_count", "updated_at",
}

// BulkUpsertPriceRecords writes records with (collection_slug, date) upsert
// semantics and returns the number of rows successfully written. If the bulk
// statement is refused, rows are retried one at a time so a single bad row
// cannot drop a whole day of data; per-row failures are logged and skipped.
func (s *Store) BulkUpsertPriceRecords(records []models.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_slug"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns(priceUpsertColumns),
	}

	err := s.db.Clauses(onConflict).Create(&records).Error
	if err == nil {
		return len(records), nil
	}

	written := 0
	for i := range records {
		rowErr := s.db.Clauses(onConflict).Create(&records[i]).Error
		if rowErr != nil {
			log.Printf("Store: failed to upsert price record %s/%s: %v",
				records[i].CollectionSlug, records[i].Date, rowErr)
			continue
		}
		written++
	}
	return written, nil
}

// GetPriceRecord returns the record for one (slug, date), or nil if absent
func (s *Store) GetPriceRecord(slug, date string) (*models.PriceRecord, error) {
	var record models.PriceRecord
	err := s.db.Where("collection_slug = ? AND date = ?", slug, date).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// HasValidPriceRecord reports whether a usable (floor > 0) record exists for
// the given day. This is the sync engine's idempotency fast-path check.
func (s *Store) HasValidPriceRecord(slug, date string) (bool, error) {
	var count int64
	err := s.db.Model(&models.PriceRecord{}).
		Where("collection_slug = ? AND date = ? AND floor_eth > 0", slug, date).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ValidDatesInRange returns the set of dates in [startDate, endDate] that
// already hold a usable record for the slug. Used by backfill to skip days
// that earlier, interrupted runs already covered.
func (s *Store) ValidDatesInRange(slug, startDate, endDate string) (map[string]bool, error) {
	var dates []string
	err := s.db.Model(&models.PriceRecord{}).
		Where("collection_slug = ? AND date >= ? AND date <= ? AND floor_eth > 0",
			slug, startDate, endDate).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[d] = true
	}
	return set, nil
}

// GetPriceHistory returns records for a slug within [startDate, endDate],
// oldest first
func (s *Store) GetPriceHistory(slug, startDate, endDate string) ([]models.PriceRecord, error) {
	var records []models.PriceRecord
	query := s.db.Where("collection_slug = ?", slug)
	if startDate != "" {
		query = query.Where("date >= ?", startDate)
	}
	if endDate != "" {
		query = query.Where("date <= ?", endDate)
	}
	if err := query.Order("date ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountPriceRecords returns the total number of stored price rows
func (s *Store) CountPriceRecords() (int64, error) {
	var count int64
	err := s.db.Model(&models.PriceRecord{}).Count(&count).Error
	return count, err
}

// DeletePriceRecordsBefore removes rows older than cutoffDate and returns
// how many were deleted. Running it twice is a no-op the second time.
func (s *Store) DeletePriceRecordsBefore(cutoffDate string) (int64, error) {
	result := s.db.Where("date < ?", cutoffDate).Delete(&models.PriceRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
