package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nftmetrics/floor-tracker/internal/services"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

// SyncHandler exposes sync observability and the operator control surface.
// The control endpoints run synchronously: the response carries the actual
// run outcome, which is what an operator or CLI wants.
type SyncHandler struct {
	store      *store.Store
	syncEngine *services.SyncEngine
	selection  *services.SelectionEngine
	cleanup    *services.CleanupJob
}

func NewSyncHandler(st *store.Store, syncEngine *services.SyncEngine, selection *services.SelectionEngine, cleanup *services.CleanupJob) *SyncHandler {
	return &SyncHandler{
		store:      st,
		syncEngine: syncEngine,
		selection:  selection,
		cleanup:    cleanup,
	}
}

// GetSyncLogs returns the most recent audit rows
func (h *SyncHandler) GetSyncLogs(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logs, err := h.store.RecentSyncLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

// GetSyncStatus reports whether a new selection is due and the latest runs
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	check, err := h.selection.NeedsNewSelection()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logs, err := h.store.RecentSyncLogs(5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	running := false
	for i := range logs {
		if logs[i].Open() {
			running = true
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"selection_check":  check,
		"recent_runs":      logs,
		"sync_in_progress": running,
	})
}

// RunManualSync triggers a full daily sync immediately
func (h *SyncHandler) RunManualSync(c *gin.Context) {
	summary, err := h.syncEngine.DailySync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunManualCleanup triggers the retention pass immediately
func (h *SyncHandler) RunManualCleanup(c *gin.Context) {
	result, err := h.cleanup.Run()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ForceSelectionUpdate re-runs the quarterly selection regardless of whether
// the quarter rolled over
func (h *SyncHandler) ForceSelectionUpdate(c *gin.Context) {
	result, err := h.selection.RunSelection(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ForceSyncRequest names specific collections to re-fetch
type ForceSyncRequest struct {
	Slugs    []string `json:"slugs" binding:"required,min=1"`
	DaysBack int      `json:"days_back"`
}

// ForceSync re-fetches and overwrites a window for the named collections
func (h *SyncHandler) ForceSync(c *gin.Context) {
	var req ForceSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.syncEngine.ForceSync(c.Request.Context(), req.Slugs, req.DaysBack)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
