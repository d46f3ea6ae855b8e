package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nftmetrics/floor-tracker/internal/metrics"
	"github.com/nftmetrics/floor-tracker/internal/models"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

const (
	historyCacheSize = 256
	historyCacheTTL  = 5 * time.Minute
)

// CollectionHandler serves the read API over the store
type CollectionHandler struct {
	store        *store.Store
	historyCache *expirable.LRU[string, []models.PriceRecord]
}

func NewCollectionHandler(st *store.Store) *CollectionHandler {
	return &CollectionHandler{
		store:        st,
		historyCache: expirable.NewLRU[string, []models.PriceRecord](historyCacheSize, nil, historyCacheTTL),
	}
}

// GetCurrentSelection returns the selected set ordered by market-cap rank
func (h *CollectionHandler) GetCurrentSelection(c *gin.Context) {
	collections, err := h.store.GetSelectedCollections()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	period, err := h.store.GetActivePeriod()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":      period,
		"collections": collections,
		"count":       len(collections),
	})
}

// GetPriceHistory returns a slug's records within an optional date window.
// Responses sit in a short-TTL cache so dashboard refreshes do not hammer
// the store.
func (h *CollectionHandler) GetPriceHistory(c *gin.Context) {
	slug := c.Param("slug")
	startDate := c.Query("start")
	endDate := c.Query("end")

	if startDate != "" && !validDate(startDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	if endDate != "" && !validDate(endDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}

	cacheKey := fmt.Sprintf("%s|%s|%s", slug, startDate, endDate)
	if records, ok := h.historyCache.Get(cacheKey); ok {
		metrics.HistoryCacheHits.Inc()
		c.JSON(http.StatusOK, gin.H{"slug": slug, "records": records, "count": len(records)})
		return
	}
	metrics.HistoryCacheMisses.Inc()

	records, err := h.store.GetPriceHistory(slug, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.historyCache.Add(cacheKey, records)
	c.JSON(http.StatusOK, gin.H{"slug": slug, "records": records, "count": len(records)})
}

// GetStats returns store-wide row counts, the covered date range, and size
func (h *CollectionHandler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
