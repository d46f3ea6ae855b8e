package api

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nftmetrics/floor-tracker/internal/api/handlers"
	"github.com/nftmetrics/floor-tracker/internal/services"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

func SetupRouter(st *store.Store, syncEngine *services.SyncEngine, selection *services.SelectionEngine, cleanup *services.CleanupJob) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(config))

	collectionHandler := handlers.NewCollectionHandler(st)
	syncHandler := handlers.NewSyncHandler(st, syncEngine, selection, cleanup)

	api := router.Group("/api")
	{
		collections := api.Group("/collections")
		{
			collections.GET("", collectionHandler.GetCurrentSelection)
			collections.GET("/:slug/history", collectionHandler.GetPriceHistory)
		}

		api.GET("/stats", collectionHandler.GetStats)

		syncGroup := api.Group("/sync")
		{
			syncGroup.GET("/logs", syncHandler.GetSyncLogs)
			syncGroup.GET("/status", syncHandler.GetSyncStatus)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/sync", syncHandler.RunManualSync)
			admin.POST("/sync/force", syncHandler.ForceSync)
			admin.POST("/cleanup", syncHandler.RunManualCleanup)
			admin.POST("/selection", syncHandler.ForceSelectionUpdate)
		}
	}

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}
