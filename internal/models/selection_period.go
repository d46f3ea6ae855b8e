package models

import (
	"fmt"
	"time"
)

type PeriodStatus string

const (
	PeriodStatusActive  PeriodStatus = "active"
	PeriodStatusExpired PeriodStatus = "expired"
)

// SelectionPeriod records one quarterly top-N selection. Exactly one row is
// active at a time; committing a new selection expires the previous one in
// the same transaction.
type SelectionPeriod struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	Period        string            `json:"period" gorm:"uniqueIndex"` // e.g. "2025-Q3"
	SelectionDate time.Time         `json:"selection_date"`
	TotalSelected int               `json:"total_selected"`
	Criteria      SelectionCriteria `json:"criteria"`
	MinMarketCap  float64           `json:"min_market_cap"`
	MaxMarketCap  float64           `json:"max_market_cap"`
	AvgMarketCap  float64           `json:"avg_market_cap"`
	Status        PeriodStatus      `json:"status" gorm:"index"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// QuarterOf returns the selection period key for a point in time,
// quarter = ceil(month/3)
func QuarterOf(t time.Time) string {
	quarter := (int(t.Month()) + 2) / 3
	return fmt.Sprintf("%d-Q%d", t.Year(), quarter)
}
