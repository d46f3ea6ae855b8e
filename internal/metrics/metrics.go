// Package metrics provides Prometheus metrics for the floor tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Engine Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floor_sync_runs_total",
			Help: "Total number of sync runs by type and terminal status",
		},
		[]string{"type", "status"},
	)

	SyncEntityErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_sync_entity_errors_total",
			Help: "Number of collections whose sync exhausted all retries",
		},
	)

	SyncRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_sync_retries_total",
			Help: "Total number of per-collection fetch retry attempts",
		},
	)

	PriceRecordsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_price_records_written_total",
			Help: "Total number of daily price records upserted",
		},
	)

	SyncBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floor_sync_batch_duration_seconds",
			Help:    "Time taken to settle one batch of collection syncs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floor_sync_run_duration_seconds",
			Help:    "Wall-clock duration of a full daily sync run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
		},
	)

	// Request Queue Metrics
	RequestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floor_request_queue_depth",
			Help: "Number of tasks waiting in the upstream request queue",
		},
	)

	RequestQueueDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_request_queue_dispatched_total",
			Help: "Total number of tasks dispatched to the upstream API",
		},
	)

	// Selection Metrics
	SelectionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floor_selection_runs_total",
			Help: "Total number of quarterly selection runs by outcome",
		},
		[]string{"status"},
	)

	SelectionSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floor_selection_size",
			Help: "Number of collections in the active selection",
		},
	)

	// Store Metrics
	StorePriceRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floor_store_price_records",
			Help: "Number of daily price records currently stored",
		},
	)

	StoreCollections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floor_store_collections",
			Help: "Number of collection rows currently stored",
		},
	)

	RetentionDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_retention_deleted_total",
			Help: "Total number of price records removed by retention cleanup",
		},
	)

	// HTTP Metrics
	HistoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_history_cache_hits_total",
			Help: "Price-history read cache hit count",
		},
	)

	HistoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floor_history_cache_misses_total",
			Help: "Price-history read cache miss count",
		},
	)
)
