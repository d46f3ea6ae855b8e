package models

import (
	"time"
)

// DateLayout is the calendar-day key format used for price records
const DateLayout = "2006-01-02"

// PriceRecord is one day of floor/volume data for a collection.
// Unique on (collection_slug, date): re-syncing a day overwrites in place.
type PriceRecord struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	CollectionSlug string `json:"collection_slug" gorm:"not null;uniqueIndex:idx_slug_date"`
	Date           string `json:"date" gorm:"not null;uniqueIndex:idx_slug_date"` // YYYY-MM-DD
	Timestamp      int64  `json:"timestamp"`                                      // unix seconds of the source data point

	FloorEth   *float64 `json:"floor_eth"`
	FloorUsd   *float64 `json:"floor_usd"`
	VolumeEth  *float64 `json:"volume_eth"`
	VolumeUsd  *float64 `json:"volume_usd"`
	SalesCount *int     `json:"sales_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsValid reports whether the record carries a usable floor price.
// A missing, zero, or negative ETH floor means the day is not storable.
func (r *PriceRecord) IsValid() bool {
	return r.FloorEth != nil && *r.FloorEth > 0
}

// DayKey formats a time as a price-record date key in UTC
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
