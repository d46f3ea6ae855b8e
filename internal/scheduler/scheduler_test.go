package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nftmetrics/floor-tracker/internal/config"
	"github.com/nftmetrics/floor-tracker/internal/database"
	"github.com/nftmetrics/floor-tracker/internal/models"
	"github.com/nftmetrics/floor-tracker/internal/providers"
	"github.com/nftmetrics/floor-tracker/internal/requestqueue"
	"github.com/nftmetrics/floor-tracker/internal/services"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

// captureNotifier records every event it receives
type captureNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *captureNotifier) Notify(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) last(t *testing.T) Event {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		t.Fatal("no events captured")
	}
	return n.events[len(n.events)-1]
}

func (n *captureNotifier) findType(syncType models.SyncType) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, event := range n.events {
		if event.Type == syncType {
			return event, true
		}
	}
	return Event{}, false
}

type emptyMarketProvider struct{}

func (emptyMarketProvider) FetchAllCollections(ctx context.Context) ([]providers.CollectionSnapshot, error) {
	return []providers.CollectionSnapshot{{Slug: "azuki", Name: "Azuki", MarketCap: 100}}, nil
}

type staticPriceProvider struct{}

func (staticPriceProvider) FetchPriceHistory(ctx context.Context, slug string, granularity providers.Granularity, startTs, endTs int64) ([]providers.PricePoint, error) {
	floor := 1.0
	return []providers.PricePoint{{Timestamp: time.Now().Unix(), FloorNative: &floor}}, nil
}

func newTestScheduler(t *testing.T, notifier Notifier, bootstrapMinRows int64, bootstrapDelay time.Duration) (*store.Store, *Scheduler) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	st := store.NewStore(db)
	queue := requestqueue.New(time.Millisecond)

	selection := services.NewSelectionEngine(st, queue, emptyMarketProvider{}, 1)
	syncEngine := services.NewSyncEngine(st, queue, selection, staticPriceProvider{}, config.SyncConfig{
		BatchSize:      5,
		BatchDelay:     time.Millisecond,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
		FetchTimeout:   time.Second,
		HistoricalDays: 30,
	})
	cleanup := services.NewCleanupJob(st, config.RetentionConfig{PriceDays: 365, LogDays: 90})

	cfg := config.SchedulerConfig{
		DailySync:      config.ScheduleTime{Hour: 2},
		WeeklyCleanup:  config.ScheduleTime{Hour: 3, Weekday: time.Sunday},
		BootstrapDelay: bootstrapDelay,
	}
	return st, New(syncEngine, cleanup, st, cfg, bootstrapMinRows, notifier)
}

func TestRunDailySkipsWhenRunAlreadyOpen(t *testing.T) {
	notifier := &captureNotifier{}
	st, sched := newTestScheduler(t, notifier, 0, time.Hour)

	// An unfinished daily run from moments ago blocks this firing
	if _, err := st.StartSyncLog(models.SyncTypeDaily, ""); err != nil {
		t.Fatalf("seeding open run failed: %v", err)
	}

	sched.runDaily(context.Background())

	event := notifier.last(t)
	if event.Status != "skipped" || event.Type != models.SyncTypeDaily {
		t.Errorf("event = %s/%s, want daily/skipped", event.Type, event.Status)
	}

	// Only the seeded row exists; the guard wrote nothing
	logs, err := st.RecentSyncLogs(10)
	if err != nil {
		t.Fatalf("logs query failed: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("log count = %d, want 1", len(logs))
	}
}

func TestRunDailyCompletesAndNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	_, sched := newTestScheduler(t, notifier, 0, time.Hour)

	sched.runDaily(context.Background())

	event := notifier.last(t)
	if event.Status != "completed" {
		t.Fatalf("event status = %s (%s), want completed", event.Status, event.Error)
	}
	if event.Counts["processed"] != 1 {
		t.Errorf("processed = %d, want 1", event.Counts["processed"])
	}
}

func TestRunCleanupNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	_, sched := newTestScheduler(t, notifier, 0, time.Hour)

	sched.runCleanup()

	event := notifier.last(t)
	if event.Type != models.SyncTypeCleanup || event.Status != "completed" {
		t.Errorf("event = %s/%s, want weekly_cleanup/completed", event.Type, event.Status)
	}
}

func TestBootstrapSyncFiresWhenStoreNearEmpty(t *testing.T) {
	notifier := &captureNotifier{}
	_, sched := newTestScheduler(t, notifier, 100, 20*time.Millisecond)

	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if event, ok := notifier.findType(models.SyncTypeDaily); ok {
			if event.Status != "completed" {
				t.Fatalf("bootstrap run status = %s (%s), want completed", event.Status, event.Error)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("bootstrap sync never fired on a near-empty store")
}

func TestBootstrapSyncSkippedWhenStorePopulated(t *testing.T) {
	notifier := &captureNotifier{}
	st, sched := newTestScheduler(t, notifier, 1, 10*time.Millisecond)

	floor := 1.0
	if _, err := st.BulkUpsertPriceRecords([]models.PriceRecord{{
		CollectionSlug: "azuki",
		Date:           models.DayKey(time.Now()),
		Timestamp:      time.Now().Unix(),
		FloorEth:       &floor,
	}}); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	sched.Start()
	defer sched.Stop()

	time.Sleep(150 * time.Millisecond)
	if _, ok := notifier.findType(models.SyncTypeDaily); ok {
		t.Error("bootstrap sync fired although the store meets the threshold")
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	_, sched := newTestScheduler(t, &captureNotifier{}, 0, time.Hour)

	sched.Start()
	sched.Start() // no-op
	sched.Stop()
	sched.Stop() // no-op

	// A stopped scheduler can start again
	sched.Start()
	sched.Stop()
}

type panickyNotifier struct{}

func (panickyNotifier) Notify(Event) { panic("webhook exploded") }

func TestNotifierPanicDoesNotCrashJob(t *testing.T) {
	_, sched := newTestScheduler(t, panickyNotifier{}, 0, time.Hour)

	// Must return normally despite the notifier panicking
	sched.runCleanup()
}
