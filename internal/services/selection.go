package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/nftmetrics/floor-tracker/internal/metrics"
	"github.com/nftmetrics/floor-tracker/internal/models"
	"github.com/nftmetrics/floor-tracker/internal/providers"
	"github.com/nftmetrics/floor-tracker/internal/requestqueue"
	"github.com/nftmetrics/floor-tracker/internal/store"
)

// ErrNoUsableEntities means the market-cap snapshot held zero entities with
// a positive market cap. It is the one condition that fails a selection run.
var ErrNoUsableEntities = errors.New("snapshot contains no entities with usable market cap")

// SelectionEngine computes the quarterly top-N tracked set from a full
// market-cap snapshot and commits it to the store
type SelectionEngine struct {
	store    *store.Store
	queue    *requestqueue.Queue
	provider providers.MarketCapProvider
	count    int
}

func NewSelectionEngine(st *store.Store, queue *requestqueue.Queue, provider providers.MarketCapProvider, count int) *SelectionEngine {
	return &SelectionEngine{
		store:    st,
		queue:    queue,
		provider: provider,
		count:    count,
	}
}

// SelectionCheck is the answer to "is a new quarterly selection due?"
type SelectionCheck struct {
	Needed bool   `json:"needed"`
	Reason string `json:"reason"`
}

// SelectionResult summarizes one committed selection
type SelectionResult struct {
	Period       string  `json:"period"`
	Selected     int     `json:"selected"`
	Updated      int     `json:"updated"`
	Inserted     int     `json:"inserted"`
	MinMarketCap float64 `json:"min_market_cap"`
	MaxMarketCap float64 `json:"max_market_cap"`
	AvgMarketCap float64 `json:"avg_market_cap"`
	Warning      string  `json:"warning,omitempty"`
}

// NeedsNewSelection compares the current wall-clock quarter against the
// active selection period. A missing or out-of-date period means a new
// selection is due.
func (e *SelectionEngine) NeedsNewSelection() (SelectionCheck, error) {
	currentQuarter := models.QuarterOf(time.Now())

	active, err := e.store.GetActivePeriod()
	if err != nil {
		return SelectionCheck{}, fmt.Errorf("loading active period: %w", err)
	}
	if active == nil {
		return SelectionCheck{Needed: true, Reason: "no selection period exists yet"}, nil
	}
	if active.Period != currentQuarter {
		return SelectionCheck{
			Needed: true,
			Reason: fmt.Sprintf("active period %s does not match current quarter %s", active.Period, currentQuarter),
		}, nil
	}
	return SelectionCheck{
		Needed: false,
		Reason: fmt.Sprintf("period %s is current", currentQuarter),
	}, nil
}

// PerformSelection filters entities with a positive market cap, takes the
// top n by market cap, and commits them as the new active selection.
// Entities with exactly equal market caps keep their snapshot order (stable
// sort) so the cut at the n-th position is deterministic. Fewer than n
// usable entities is a warning, not an error: selection never blocks on a
// sparse snapshot.
func (e *SelectionEngine) PerformSelection(snapshot []providers.CollectionSnapshot, n int) (*SelectionResult, error) {
	valid := make([]providers.CollectionSnapshot, 0, len(snapshot))
	for _, entry := range snapshot {
		if entry.MarketCap > 0 {
			valid = append(valid, entry)
		}
	}

	if len(valid) == 0 {
		return nil, ErrNoUsableEntities
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].MarketCap > valid[j].MarketCap
	})

	warning := ""
	if len(valid) < n {
		warning = fmt.Sprintf("only %d of %d requested entities have usable market-cap data", len(valid), n)
		log.Printf("Selection engine: %s", warning)
	} else {
		valid = valid[:n]
	}

	now := time.Now()
	period := models.QuarterOf(now)

	var minCap, maxCap, sumCap float64
	members := make([]models.Collection, 0, len(valid))
	for i, entry := range valid {
		if i == 0 || entry.MarketCap > maxCap {
			maxCap = entry.MarketCap
		}
		if i == 0 || entry.MarketCap < minCap {
			minCap = entry.MarketCap
		}
		sumCap += entry.MarketCap

		members = append(members, models.Collection{
			Slug:            entry.Slug,
			Name:            entry.Name,
			Rank:            entry.Rank,
			MarketCap:       entry.MarketCap,
			MarketCapRank:   i + 1,
			IsSelected:      true,
			SelectionPeriod: period,
			SelectedAt:      &now,
		})
	}

	previous, err := e.store.GetSelectedCollections()
	if err != nil {
		return nil, fmt.Errorf("loading previous selection: %w", err)
	}

	periodRow := &models.SelectionPeriod{
		Period:        period,
		SelectionDate: now,
		TotalSelected: len(members),
		Criteria:      models.CriteriaMarketCapUSD,
		MinMarketCap:  minCap,
		MaxMarketCap:  maxCap,
		AvgMarketCap:  sumCap / float64(len(members)),
	}

	updated, inserted, err := e.store.CommitSelection(periodRow, members)
	if err != nil {
		return nil, fmt.Errorf("committing selection %s: %w", period, err)
	}

	e.refreshDropped(previous, members, snapshot)

	metrics.SelectionSize.Set(float64(len(members)))
	log.Printf("Selection engine: committed period %s with %d collections (cap range %.0f - %.0f USD)",
		period, len(members), minCap, maxCap)

	return &SelectionResult{
		Period:       period,
		Selected:     len(members),
		Updated:      updated,
		Inserted:     inserted,
		MinMarketCap: minCap,
		MaxMarketCap: maxCap,
		AvgMarketCap: periodRow.AvgMarketCap,
		Warning:      warning,
	}, nil
}

// refreshDropped keeps metadata current for collections that were tracked
// last period but fell outside the new cut. Best-effort: a failed refresh
// never fails the selection.
func (e *SelectionEngine) refreshDropped(previous, selected []models.Collection, snapshot []providers.CollectionSnapshot) {
	inNew := make(map[string]bool, len(selected))
	for _, m := range selected {
		inNew[m.Slug] = true
	}
	bySlug := make(map[string]providers.CollectionSnapshot, len(snapshot))
	for _, entry := range snapshot {
		bySlug[entry.Slug] = entry
	}

	for _, old := range previous {
		if inNew[old.Slug] {
			continue
		}
		entry, ok := bySlug[old.Slug]
		if !ok {
			continue
		}
		c := old
		c.Name = entry.Name
		c.Rank = entry.Rank
		c.MarketCap = entry.MarketCap
		c.MarketCapRank = 0
		c.IsSelected = false
		if err := e.store.UpsertCollection(&c); err != nil {
			log.Printf("Selection engine: metadata refresh for %s failed: %v", old.Slug, err)
		}
	}
}

// RunSelection fetches a fresh market-cap snapshot through the request queue
// and commits the quarterly selection, with a SyncLog audit row around the
// whole run
func (e *SelectionEngine) RunSelection(ctx context.Context) (*SelectionResult, error) {
	entry, err := e.store.StartSyncLog(models.SyncTypeSelection, "")
	if err != nil {
		return nil, fmt.Errorf("opening selection sync log: %w", err)
	}

	var snapshot []providers.CollectionSnapshot
	fetchErr := e.queue.Do(ctx, requestqueue.PriorityHigh, func(ctx context.Context) error {
		var err error
		snapshot, err = e.provider.FetchAllCollections(ctx)
		return err
	})
	if fetchErr != nil {
		e.finalize(entry, nil, fetchErr)
		return nil, fmt.Errorf("fetching market-cap snapshot: %w", fetchErr)
	}

	log.Printf("Selection engine: snapshot holds %d entities, selecting top %d", len(snapshot), e.count)

	result, err := e.PerformSelection(snapshot, e.count)
	e.finalize(entry, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *SelectionEngine) finalize(entry *models.SyncLog, result *SelectionResult, runErr error) {
	if runErr != nil {
		metrics.SelectionRunsTotal.WithLabelValues("failed").Inc()
		if err := e.store.CompleteSyncLog(entry, models.SyncStatusFailed, 0, 0, 0, 1, runErr.Error()); err != nil {
			log.Printf("Selection engine: failed to finalize sync log %s: %v", entry.ID, err)
		}
		return
	}
	metrics.SelectionRunsTotal.WithLabelValues("completed").Inc()
	if err := e.store.CompleteSyncLog(entry, models.SyncStatusCompleted,
		result.Selected, result.Inserted, result.Updated, 0, result.Warning); err != nil {
		log.Printf("Selection engine: failed to finalize sync log %s: %v", entry.ID, err)
	}
}
