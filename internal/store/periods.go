package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/nftmetrics/floor-tracker/internal/models"
)

// GetActivePeriod returns the single active selection period, or nil when no
// selection has been committed yet
func (s *Store) GetActivePeriod() (*models.SelectionPeriod, error) {
	var period models.SelectionPeriod
	err := s.db.Where("status = ?", models.PeriodStatusActive).First(&period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &period, nil
}

// CommitSelection atomically retires the previous active period and installs
// the new one: the old period flips to expired and its members lose
// is_selected, the new period row is created active, and every member is
// upserted with its new rank. Returns how many member rows were updated vs
// freshly inserted. A failure anywhere rolls the whole commit back.
func (s *Store) CommitSelection(period *models.SelectionPeriod, members []models.Collection) (updated, inserted int, err error) {
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Retire whatever period is currently active
		if err := tx.Model(&models.SelectionPeriod{}).
			Where("status = ?", models.PeriodStatusActive).
			Updates(map[string]interface{}{
				"status":     models.PeriodStatusExpired,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Collection{}).
			Where("is_selected = ?", true).
			Updates(map[string]interface{}{
				"is_selected": false,
				"updated_at":  now,
			}).Error; err != nil {
			return err
		}

		// A forced re-selection mid-quarter reuses the same period key, so
		// the row is reactivated in place rather than recreated
		period.Status = models.PeriodStatusActive
		var existingPeriod models.SelectionPeriod
		findErr := tx.Where("period = ?", period.Period).First(&existingPeriod).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			if err := tx.Create(period).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			if err := tx.Model(&models.SelectionPeriod{}).
				Where("period = ?", period.Period).
				Updates(map[string]interface{}{
					"selection_date": period.SelectionDate,
					"total_selected": period.TotalSelected,
					"criteria":       period.Criteria,
					"min_market_cap": period.MinMarketCap,
					"max_market_cap": period.MaxMarketCap,
					"avg_market_cap": period.AvgMarketCap,
					"status":         models.PeriodStatusActive,
					"updated_at":     now,
				}).Error; err != nil {
				return err
			}
		}

		for i := range members {
			member := &members[i]
			var existing models.Collection
			findErr := tx.Where("slug = ?", member.Slug).First(&existing).Error
			switch {
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				if err := tx.Create(member).Error; err != nil {
					return err
				}
				inserted++
			case findErr != nil:
				return findErr
			default:
				if err := tx.Model(&models.Collection{}).
					Where("slug = ?", member.Slug).
					Updates(map[string]interface{}{
						"name":             member.Name,
						"rank":             member.Rank,
						"market_cap":       member.MarketCap,
						"market_cap_rank":  member.MarketCapRank,
						"is_selected":      true,
						"selection_period": member.SelectionPeriod,
						"selected_at":      member.SelectedAt,
						"updated_at":       now,
					}).Error; err != nil {
					return err
				}
				updated++
			}
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return updated, inserted, nil
}
