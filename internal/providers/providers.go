// Package providers defines the upstream API collaborators consumed by the
// selection and sync engines. The concrete HTTP clients live outside the
// core; the engines only depend on these interfaces.
package providers

import (
	"context"
)

// CollectionSnapshot is one entity from a full market-cap snapshot.
// The selection engine only uses Slug, Name, Rank and MarketCap; the rest
// is carried through for metadata refreshes.
type CollectionSnapshot struct {
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Rank        int     `json:"rank"`
	MarketCap   float64 `json:"market_cap"` // USD
	TotalSupply int     `json:"total_supply"`
	Owners      int     `json:"owners"`
	Image       string  `json:"image"`
}

// PricePoint is one raw data point from the price-history API.
// Zero and negative floors come back for delisted or brand-new collections
// and are filtered before storage.
type PricePoint struct {
	Timestamp    int64    `json:"timestamp"` // unix seconds
	FloorNative  *float64 `json:"floor_native"`
	FloorUsd     *float64 `json:"floor_usd"`
	VolumeNative *float64 `json:"volume_native"`
	VolumeUsd    *float64 `json:"volume_usd"`
	SalesCount   *int     `json:"sales_count"`
}

// Granularity selects the resolution of requested price history
type Granularity string

const (
	GranularityDaily Granularity = "1d"
)

// MarketCapProvider returns a full market-cap snapshot of all entities the
// upstream tracks, potentially thousands of rows.
type MarketCapProvider interface {
	FetchAllCollections(ctx context.Context) ([]CollectionSnapshot, error)
}

// PriceHistoryProvider fetches raw price points for one collection over a
// unix-seconds window.
type PriceHistoryProvider interface {
	FetchPriceHistory(ctx context.Context, slug string, granularity Granularity, startTs, endTs int64) ([]PricePoint, error)
}
