package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nftmetrics/floor-tracker/internal/api"
	"github.com/nftmetrics/floor-tracker/internal/config"
	"github.com/nftmetrics/floor-tracker/internal/database"
	"github.com/nftmetrics/floor-tracker/internal/providers"
	"github.com/nftmetrics/floor-tracker/internal/requestqueue"
	"github.com/nftmetrics/floor-tracker/internal/scheduler"
	"github.com/nftmetrics/floor-tracker/internal/services"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	st := store.NewStore(db)

	// One queue throttles every outbound call to the upstream API
	queue := requestqueue.New(cfg.RateLimit.MinSpacing)

	upstream := providers.NewHTTPProvider(cfg.Upstream.BaseURL, cfg.Upstream.APIKey)

	selectionEngine := services.NewSelectionEngine(st, queue, upstream, cfg.Selection.Count)
	syncEngine := services.NewSyncEngine(st, queue, selectionEngine, upstream, cfg.Sync)
	cleanupJob := services.NewCleanupJob(st, cfg.Retention)

	sched := scheduler.New(syncEngine, cleanupJob, st, cfg.Scheduler, cfg.Sync.BootstrapMinRows, scheduler.LogNotifier{})
	sched.Start()

	router := api.SetupRouter(st, syncEngine, selectionEngine, cleanupJob)

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
