package models

import (
	"time"
)

// SelectionCriteria identifies how a tracked set was chosen
type SelectionCriteria string

const (
	CriteriaMarketCapUSD SelectionCriteria = "market_cap_usd"
)

// Collection is one tracked NFT collection, identified by its slug.
// Rows are never hard-deleted: dropping out of the tracked set flips
// IsSelected off when the next quarterly selection is committed.
type Collection struct {
	Slug            string     `json:"slug" gorm:"primaryKey"`
	Name            string     `json:"name"`
	Rank            int        `json:"rank"` // display ranking reported by the upstream API
	MarketCap       float64    `json:"market_cap"`
	MarketCapRank   int        `json:"market_cap_rank"` // 1-based rank within the current selection
	IsSelected      bool       `json:"is_selected" gorm:"index"`
	SelectionPeriod string     `json:"selection_period" gorm:"index"`
	SelectedAt      *time.Time `json:"selected_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// StoreStats summarizes the contents of the local store
type StoreStats struct {
	TotalCollections  int64  `json:"total_collections"`
	SelectedCount     int64  `json:"selected_count"`
	TotalPriceRecords int64  `json:"total_price_records"`
	OldestDate        string `json:"oldest_date"`
	NewestDate        string `json:"newest_date"`
	StorageSizeBytes  int64  `json:"storage_size_bytes"`
}
