// Package scheduler sequences the tracker's background jobs: the daily
// price sync and the weekly retention cleanup. It holds no business logic
// of its own; it fires the engines, guards against overlapping daily runs,
// and pushes every outcome through a notification hook.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nftmetrics/floor-tracker/internal/config"
	"github.com/nftmetrics/floor-tracker/internal/models"
	"github.com/nftmetrics/floor-tracker/internal/services"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

// overlapWindow is how far back the guard looks for an unfinished daily run.
// Runs older than this are assumed crashed and do not block a new firing.
const overlapWindow = time.Hour

// Event is the structured payload handed to the notification hook after
// every job completion, failure, or skip
type Event struct {
	Type     models.SyncType `json:"type"`
	Status   string          `json:"status"` // completed | failed | skipped
	Duration time.Duration   `json:"duration"`
	Counts   map[string]int  `json:"counts,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Notifier receives job outcome events. Implementations must not block for
// long; the default logs to the console, webhook/alerting hooks plug in the
// same way.
type Notifier interface {
	Notify(event Event)
}

// LogNotifier is the default console notifier
type LogNotifier struct{}

func (LogNotifier) Notify(event Event) {
	if event.Error != "" {
		log.Printf("Scheduler: job %s %s after %s: %s",
			event.Type, event.Status, event.Duration.Round(time.Second), event.Error)
		return
	}
	log.Printf("Scheduler: job %s %s after %s %v",
		event.Type, event.Status, event.Duration.Round(time.Second), event.Counts)
}

type Scheduler struct {
	syncEngine *services.SyncEngine
	cleanup    *services.CleanupJob
	store      *store.Store
	cfg        config.SchedulerConfig
	bootstrap  int64 // minimum price rows before a startup sync is considered unnecessary
	notifier   Notifier

	mu      sync.Mutex
	cron    *gocron.Scheduler
	cancel  context.CancelFunc
	started bool
}

func New(syncEngine *services.SyncEngine, cleanup *services.CleanupJob, st *store.Store, cfg config.SchedulerConfig, bootstrapMinRows int64, notifier Notifier) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		syncEngine: syncEngine,
		cleanup:    cleanup,
		store:      st,
		cfg:        cfg,
		bootstrap:  bootstrapMinRows,
		notifier:   notifier,
	}
}

// Start registers the daily and weekly triggers and kicks off a one-off
// bootstrap sync if the store is nearly empty. Calling Start on a running
// scheduler is a no-op, so Stop/Start toggling for config changes is safe.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		log.Println("Scheduler: already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.cron = gocron.NewScheduler(time.UTC)
	s.cron.Every(1).Day().At(s.cfg.DailySync.At()).Do(func() {
		s.runDaily(ctx)
	})
	s.cron.Every(1).Week().Weekday(s.cfg.WeeklyCleanup.Weekday).At(s.cfg.WeeklyCleanup.At()).Do(func() {
		s.runCleanup()
	})
	s.cron.StartAsync()
	s.started = true

	log.Printf("Scheduler: started (daily sync at %s UTC, cleanup %s at %s UTC)",
		s.cfg.DailySync.At(), s.cfg.WeeklyCleanup.Weekday, s.cfg.WeeklyCleanup.At())

	go s.maybeBootstrap(ctx)
}

// Stop deregisters the triggers and cancels the run context: in-flight
// work stops at its next cancellation point and surfaces as entity errors
// in that run's summary.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.started = false
	log.Println("Scheduler: stopped")
}

// maybeBootstrap schedules a one-off sync shortly after startup when the
// store holds too few price rows to be useful
func (s *Scheduler) maybeBootstrap(ctx context.Context) {
	count, err := s.store.CountPriceRecords()
	if err != nil {
		log.Printf("Scheduler: bootstrap check failed: %v", err)
		return
	}
	if count >= s.bootstrap {
		return
	}

	log.Printf("Scheduler: store holds only %d price records (< %d), scheduling bootstrap sync in %s",
		count, s.bootstrap, s.cfg.BootstrapDelay)

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.BootstrapDelay):
	}
	s.runDaily(ctx)
}

// runDaily fires the daily sync unless an unfinished daily run started
// recently. The guard reads the sync log rather than holding a lock: it is
// advisory, good enough for a single process, and explicitly not a
// cross-instance mutex.
func (s *Scheduler) runDaily(ctx context.Context) {
	open, err := s.store.OpenRunSince(models.SyncTypeDaily, time.Now().Add(-overlapWindow))
	if err != nil {
		log.Printf("Scheduler: overlap check failed: %v", err)
	} else if open != nil {
		log.Printf("Scheduler: daily sync %s still running (started %s), skipping this firing",
			open.ID, open.StartedAt.Format(time.RFC3339))
		s.notify(Event{Type: models.SyncTypeDaily, Status: "skipped"})
		return
	}

	start := time.Now()
	summary, err := s.syncEngine.DailySync(ctx)
	if err != nil {
		s.notify(Event{
			Type:     models.SyncTypeDaily,
			Status:   "failed",
			Duration: time.Since(start),
			Error:    err.Error(),
		})
		return
	}

	s.notify(Event{
		Type:     models.SyncTypeDaily,
		Status:   "completed",
		Duration: summary.Duration,
		Counts: map[string]int{
			"processed": summary.Processed,
			"inserted":  summary.Inserted,
			"updated":   summary.Updated,
			"skipped":   summary.Skipped,
			"errors":    summary.Errors,
		},
	})
}

func (s *Scheduler) runCleanup() {
	start := time.Now()
	result, err := s.cleanup.Run()
	if err != nil {
		s.notify(Event{
			Type:     models.SyncTypeCleanup,
			Status:   "failed",
			Duration: time.Since(start),
			Error:    err.Error(),
		})
		return
	}

	s.notify(Event{
		Type:     models.SyncTypeCleanup,
		Status:   "completed",
		Duration: result.Duration,
		Counts: map[string]int{
			"prices_deleted": int(result.PricesDeleted),
			"logs_deleted":   int(result.LogsDeleted),
		},
	})
}

// notify surfaces the event without letting a misbehaving hook take down
// the process
func (s *Scheduler) notify(event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Scheduler: notifier panicked: %v", r)
		}
	}()
	s.notifier.Notify(event)
}
