// Package store is the persistence layer for the tracker core: collections,
// daily price records, selection periods, and the sync audit log. Every
// method is one access pattern over parameterized gorm queries; callers
// never hand SQL fragments in.
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/nftmetrics/floor-tracker/internal/models"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for transaction composition within the core
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetCollection returns the collection with the given slug, or nil if absent
func (s *Store) GetCollection(slug string) (*models.Collection, error) {
	var c models.Collection
	err := s.db.Where("slug = ?", slug).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetSelectedCollections returns the currently selected set ordered by
// market-cap rank, best first
func (s *Store) GetSelectedCollections() ([]models.Collection, error) {
	var collections []models.Collection
	err := s.db.Where("is_selected = ?", true).
		Order("market_cap_rank ASC").
		Find(&collections).Error
	if err != nil {
		return nil, err
	}
	return collections, nil
}

// UpsertCollection creates or updates a collection row keyed by slug
func (s *Store) UpsertCollection(c *models.Collection) error {
	c.UpdatedAt = time.Now()
	var existing models.Collection
	err := s.db.Where("slug = ?", c.Slug).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(c).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&models.Collection{}).Where("slug = ?", c.Slug).
		Updates(map[string]interface{}{
			"name":             c.Name,
			"rank":             c.Rank,
			"market_cap":       c.MarketCap,
			"market_cap_rank":  c.MarketCapRank,
			"is_selected":      c.IsSelected,
			"selection_period": c.SelectionPeriod,
			"selected_at":      c.SelectedAt,
			"updated_at":       c.UpdatedAt,
		}).Error
}

// Stats summarizes row counts, the covered date range, and on-disk size
func (s *Store) Stats() (*models.StoreStats, error) {
	var stats models.StoreStats

	if err := s.db.Model(&models.Collection{}).Count(&stats.TotalCollections).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Collection{}).Where("is_selected = ?", true).
		Count(&stats.SelectedCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.PriceRecord{}).Count(&stats.TotalPriceRecords).Error; err != nil {
		return nil, err
	}

	if stats.TotalPriceRecords > 0 {
		var bounds struct {
			Oldest string
			Newest string
		}
		err := s.db.Model(&models.PriceRecord{}).
			Select("MIN(date) as oldest, MAX(date) as newest").
			Scan(&bounds).Error
		if err != nil {
			return nil, err
		}
		stats.OldestDate = bounds.Oldest
		stats.NewestDate = bounds.Newest
	}

	// sqlite reports its own size; a failure here is not worth failing stats over
	var size int64
	if err := s.db.Raw("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").
		Scan(&size).Error; err == nil {
		stats.StorageSizeBytes = size
	}

	return &stats, nil
}

// Vacuum reclaims free pages after retention deletes. Safe to call any time.
func (s *Store) Vacuum() error {
	return s.db.Exec("VACUUM").Error
}
