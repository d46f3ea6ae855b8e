package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nftmetrics/floor-tracker/internal/config"
	"github.com/nftmetrics/floor-tracker/internal/metrics"
	"github.com/nftmetrics/floor-tracker/internal/models"
	"github.com/nftmetrics/floor-tracker/internal/providers"
	"github.com/nftmetrics/floor-tracker/internal/requestqueue"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

// dailyWindowDays is how far back a routine daily sync fetches. Two days
// covers today plus a late-settling yesterday; wider gaps are backfill
// territory.
const dailyWindowDays = 2

// SyncEngine keeps the selected collections' daily price history fresh.
// Entities sync in bounded batches; every upstream call goes through the
// request queue, and per-entity failures never abort the run.
type SyncEngine struct {
	store     *store.Store
	queue     *requestqueue.Queue
	selection *SelectionEngine
	provider  providers.PriceHistoryProvider
	cfg       config.SyncConfig
}

func NewSyncEngine(st *store.Store, queue *requestqueue.Queue, selection *SelectionEngine, provider providers.PriceHistoryProvider, cfg config.SyncConfig) *SyncEngine {
	return &SyncEngine{
		store:     st,
		queue:     queue,
		selection: selection,
		provider:  provider,
		cfg:       cfg,
	}
}

// SyncSummary aggregates one sync run
type SyncSummary struct {
	Processed   int           `json:"processed"`
	Inserted    int           `json:"inserted"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	Errors      int           `json:"errors"`
	FailedSlugs []string      `json:"failed_slugs,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// entityResult is the settled outcome for one collection in a batch
type entityResult struct {
	slug     string
	inserted int
	updated  int
	skipped  bool
	attempts int
	err      error
}

// DailySync runs the full daily cycle: re-select if the quarter rolled over,
// then sync every selected collection in batches. Per-entity failures leave
// the run "completed" with a non-zero error count; only a run-level failure
// (store unreachable, no selection readable) marks the run "failed".
func (e *SyncEngine) DailySync(ctx context.Context) (*SyncSummary, error) {
	start := time.Now()

	entry, err := e.store.StartSyncLog(models.SyncTypeDaily, "")
	if err != nil {
		return nil, fmt.Errorf("opening daily sync log: %w", err)
	}

	summary, runErr := e.runDaily(ctx)
	if runErr != nil {
		metrics.SyncRunsTotal.WithLabelValues(string(models.SyncTypeDaily), "failed").Inc()
		if logErr := e.store.CompleteSyncLog(entry, models.SyncStatusFailed, 0, 0, 0, 0, runErr.Error()); logErr != nil {
			log.Printf("Sync engine: failed to finalize sync log %s: %v", entry.ID, logErr)
		}
		return nil, runErr
	}

	summary.Duration = time.Since(start)
	metrics.SyncRunsTotal.WithLabelValues(string(models.SyncTypeDaily), "completed").Inc()
	metrics.SyncRunDuration.Observe(summary.Duration.Seconds())
	e.refreshStoreGauges()

	errMsg := ""
	if summary.Errors > 0 {
		errMsg = fmt.Sprintf("%d collections failed: %s", summary.Errors, strings.Join(summary.FailedSlugs, ", "))
	}
	if logErr := e.store.CompleteSyncLog(entry, models.SyncStatusCompleted,
		summary.Processed, summary.Inserted, summary.Updated, summary.Errors, errMsg); logErr != nil {
		log.Printf("Sync engine: failed to finalize sync log %s: %v", entry.ID, logErr)
	}

	log.Printf("Sync engine: daily sync done in %s (processed=%d inserted=%d updated=%d skipped=%d errors=%d)",
		summary.Duration.Round(time.Second), summary.Processed, summary.Inserted,
		summary.Updated, summary.Skipped, summary.Errors)
	return summary, nil
}

func (e *SyncEngine) runDaily(ctx context.Context) (*SyncSummary, error) {
	// Selection first, so the sync operates on a current set. A failed
	// re-selection is not fatal: the previous quarter's set is stale but
	// still syncable.
	check, err := e.selection.NeedsNewSelection()
	if err != nil {
		return nil, fmt.Errorf("checking selection period: %w", err)
	}
	if check.Needed {
		log.Printf("Sync engine: new selection needed (%s)", check.Reason)
		if _, selErr := e.selection.RunSelection(ctx); selErr != nil {
			log.Printf("Sync engine: selection update failed, continuing with previous set: %v", selErr)
		}
	}

	selected, err := e.store.GetSelectedCollections()
	if err != nil {
		return nil, fmt.Errorf("loading selected collections: %w", err)
	}
	if len(selected) == 0 {
		log.Println("Sync engine: no collections selected, nothing to sync")
		return &SyncSummary{}, nil
	}

	log.Printf("Sync engine: syncing %d collections in batches of %d", len(selected), e.cfg.BatchSize)

	summary := &SyncSummary{}
	for batchStart := 0; batchStart < len(selected); batchStart += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batchEnd := batchStart + e.cfg.BatchSize
		if batchEnd > len(selected) {
			batchEnd = len(selected)
		}
		batch := selected[batchStart:batchEnd]

		for _, res := range e.settleBatch(ctx, batch) {
			summary.Processed++
			switch {
			case res.err != nil:
				summary.Errors++
				summary.FailedSlugs = append(summary.FailedSlugs, res.slug)
				metrics.SyncEntityErrorsTotal.Inc()
				log.Printf("Sync engine: %s failed after %d attempts: %v", res.slug, res.attempts, res.err)
			case res.skipped:
				summary.Skipped++
			default:
				summary.Inserted += res.inserted
				summary.Updated += res.updated
			}
		}

		// Smooth load between batches on top of the queue's own spacing
		if batchEnd < len(selected) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.cfg.BatchDelay):
			}
		}
	}

	return summary, nil
}

// settleBatch syncs one batch concurrently and waits for every member to
// settle. Completion order within the batch is unspecified; results come
// back indexed so the caller sees the batch in rank order.
func (e *SyncEngine) settleBatch(ctx context.Context, batch []models.Collection) []entityResult {
	start := time.Now()
	results := make([]entityResult, len(batch))

	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int, slug string) {
			defer wg.Done()
			results[i] = e.syncOne(ctx, slug)
		}(i, batch[i].Slug)
	}
	wg.Wait()

	metrics.SyncBatchDuration.Observe(time.Since(start).Seconds())
	return results
}

// syncOne brings one collection's recent history up to date. If today
// already has a valid record the entity is skipped outright; this fast path
// is deliberately distinct from the overwrite semantics of the upsert below
// it. Failures retry with linear backoff (attempt * base delay) unless the
// upstream classified them as fatal for this entity.
func (e *SyncEngine) syncOne(ctx context.Context, slug string) entityResult {
	res := entityResult{slug: slug}

	today := models.DayKey(time.Now())
	hasToday, err := e.store.HasValidPriceRecord(slug, today)
	if err != nil {
		res.err = fmt.Errorf("checking today's record: %w", err)
		return res
	}
	if hasToday {
		res.skipped = true
		return res
	}

	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		res.attempts = attempt

		inserted, updated, err := e.syncWindow(ctx, slug, dailyWindowDays, false)
		if err == nil {
			res.inserted = inserted
			res.updated = updated
			res.err = nil
			return res
		}
		res.err = err

		if !providers.IsTransient(err) {
			log.Printf("Sync engine: %s hit non-retryable error: %v", slug, err)
			return res
		}

		if attempt < e.cfg.RetryAttempts {
			metrics.SyncRetriesTotal.Inc()
			delay := time.Duration(attempt) * e.cfg.RetryBaseDelay
			log.Printf("Sync engine: %s attempt %d/%d failed (%v), retrying in %s",
				slug, attempt, e.cfg.RetryAttempts, err, delay)
			select {
			case <-ctx.Done():
				res.err = ctx.Err()
				return res
			case <-time.After(delay):
			}
		}
	}

	return res
}

// syncWindow fetches the last `days` of history for one collection through
// the request queue, drops unusable points, and upserts the rest. When
// skipExisting is set, days that already hold a valid record are left
// untouched (interrupted-backfill resume); otherwise existing days are
// overwritten in place.
func (e *SyncEngine) syncWindow(ctx context.Context, slug string, days int, skipExisting bool) (inserted, updated int, err error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	var points []providers.PricePoint
	fetchErr := e.queue.Do(fetchCtx, requestqueue.PriorityNormal, func(ctx context.Context) error {
		var err error
		points, err = e.provider.FetchPriceHistory(ctx, slug, providers.GranularityDaily, start.Unix(), end.Unix())
		return err
	})
	if fetchErr != nil {
		return 0, 0, fetchErr
	}

	records := transformPoints(slug, points)
	if len(records) == 0 {
		// An upstream answer with nothing storable in it is a failure to
		// retry, not a quiet success
		return 0, 0, fmt.Errorf("no valid price points for %s in %d-day window", slug, days)
	}

	startDate, endDate := records[0].Date, records[len(records)-1].Date

	if skipExisting {
		existing, err := e.store.ValidDatesInRange(slug, startDate, endDate)
		if err != nil {
			return 0, 0, fmt.Errorf("loading existing dates: %w", err)
		}
		kept := records[:0]
		for _, r := range records {
			if !existing[r.Date] {
				kept = append(kept, r)
			}
		}
		records = kept
		if len(records) == 0 {
			return 0, 0, nil // every day already covered
		}
		startDate, endDate = records[0].Date, records[len(records)-1].Date
	}

	priorRows, err := e.store.GetPriceHistory(slug, startDate, endDate)
	if err != nil {
		return 0, 0, fmt.Errorf("loading prior rows: %w", err)
	}
	priorDates := make(map[string]bool, len(priorRows))
	for _, row := range priorRows {
		priorDates[row.Date] = true
	}

	written, err := e.store.BulkUpsertPriceRecords(records)
	if err != nil {
		return 0, 0, fmt.Errorf("upserting price records: %w", err)
	}
	metrics.PriceRecordsWrittenTotal.Add(float64(written))

	for _, r := range records {
		if priorDates[r.Date] {
			updated++
		}
	}
	inserted = written - updated
	if inserted < 0 {
		inserted = 0
	}
	return inserted, updated, nil
}

// HistoricalSync backfills up to `days` of history for one collection.
// Safe to interrupt and re-run: days that already hold a valid record are
// skipped, so a resumed backfill only pays for what is missing.
func (e *SyncEngine) HistoricalSync(ctx context.Context, slug string, days int) (*SyncSummary, error) {
	if days <= 0 {
		days = e.cfg.HistoricalDays
	}

	entry, err := e.store.StartSyncLog(models.SyncTypeCollection, slug)
	if err != nil {
		return nil, fmt.Errorf("opening sync log for %s: %w", slug, err)
	}

	summary := &SyncSummary{Processed: 1}
	start := time.Now()

	var lastErr error
retries:
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		inserted, updated, err := e.syncWindow(ctx, slug, days, true)
		if err == nil {
			summary.Inserted = inserted
			summary.Updated = updated
			lastErr = nil
			break
		}
		lastErr = err
		if !providers.IsTransient(err) {
			break
		}
		if attempt < e.cfg.RetryAttempts {
			metrics.SyncRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retries
			case <-time.After(time.Duration(attempt) * e.cfg.RetryBaseDelay):
			}
		}
	}

	summary.Duration = time.Since(start)

	if lastErr != nil {
		summary.Errors = 1
		summary.FailedSlugs = []string{slug}
		metrics.SyncRunsTotal.WithLabelValues(string(models.SyncTypeCollection), "failed").Inc()
		if logErr := e.store.CompleteSyncLog(entry, models.SyncStatusFailed, 1, 0, 0, 1, lastErr.Error()); logErr != nil {
			log.Printf("Sync engine: failed to finalize sync log %s: %v", entry.ID, logErr)
		}
		return summary, fmt.Errorf("historical sync for %s: %w", slug, lastErr)
	}

	metrics.SyncRunsTotal.WithLabelValues(string(models.SyncTypeCollection), "completed").Inc()
	e.refreshStoreGauges()
	if logErr := e.store.CompleteSyncLog(entry, models.SyncStatusCompleted,
		1, summary.Inserted, summary.Updated, 0, ""); logErr != nil {
		log.Printf("Sync engine: failed to finalize sync log %s: %v", entry.ID, logErr)
	}

	log.Printf("Sync engine: backfilled %s over %d days (inserted=%d updated=%d)",
		slug, days, summary.Inserted, summary.Updated)
	return summary, nil
}

// ForceSync re-fetches a window for specific collections, overwriting
// whatever is already stored. This is the operator's correction tool; it
// does not use the today fast path or the backfill skip.
func (e *SyncEngine) ForceSync(ctx context.Context, slugs []string, daysBack int) (*SyncSummary, error) {
	if daysBack <= 0 {
		daysBack = dailyWindowDays
	}

	summary := &SyncSummary{}
	start := time.Now()

	for _, slug := range slugs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		entry, err := e.store.StartSyncLog(models.SyncTypeCollection, slug)
		if err != nil {
			return summary, fmt.Errorf("opening sync log for %s: %w", slug, err)
		}

		summary.Processed++
		inserted, updated, err := e.syncWindow(ctx, slug, daysBack, false)
		if err != nil {
			summary.Errors++
			summary.FailedSlugs = append(summary.FailedSlugs, slug)
			if logErr := e.store.CompleteSyncLog(entry, models.SyncStatusFailed, 1, 0, 0, 1, err.Error()); logErr != nil {
				log.Printf("Sync engine: failed to finalize sync log %s: %v", entry.ID, logErr)
			}
			continue
		}
		summary.Inserted += inserted
		summary.Updated += updated
		if logErr := e.store.CompleteSyncLog(entry, models.SyncStatusCompleted, 1, inserted, updated, 0, ""); logErr != nil {
			log.Printf("Sync engine: failed to finalize sync log %s: %v", entry.ID, logErr)
		}
	}

	summary.Duration = time.Since(start)
	e.refreshStoreGauges()
	return summary, nil
}

func (e *SyncEngine) refreshStoreGauges() {
	if count, err := e.store.CountPriceRecords(); err == nil {
		metrics.StorePriceRecords.Set(float64(count))
	}
	if stats, err := e.store.Stats(); err == nil {
		metrics.StoreCollections.Set(float64(stats.TotalCollections))
	}
}

// transformPoints converts raw API points into storable records, one per
// calendar day. Points without a positive native floor are dropped. When
// the upstream returns several points for the same day, the latest one wins.
func transformPoints(slug string, points []providers.PricePoint) []models.PriceRecord {
	byDay := make(map[string]providers.PricePoint)
	var order []string

	for _, p := range points {
		if p.FloorNative == nil || *p.FloorNative <= 0 {
			continue
		}
		day := models.DayKey(time.Unix(p.Timestamp, 0))
		prev, seen := byDay[day]
		if !seen {
			order = append(order, day)
			byDay[day] = p
		} else if p.Timestamp > prev.Timestamp {
			byDay[day] = p
		}
	}

	sort.Strings(order)
	records := make([]models.PriceRecord, 0, len(order))
	for _, day := range order {
		p := byDay[day]
		records = append(records, models.PriceRecord{
			CollectionSlug: slug,
			Date:           day,
			Timestamp:      p.Timestamp,
			FloorEth:       p.FloorNative,
			FloorUsd:       p.FloorUsd,
			VolumeEth:      p.VolumeNative,
			VolumeUsd:      p.VolumeUsd,
			SalesCount:     p.SalesCount,
		})
	}
	return records
}
