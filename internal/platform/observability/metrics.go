package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aesthete_events_ingested_total",
		Help: "The total number of ingested feedback events",
	}, []string{"stream"})

	BatchesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aesthete_batches_claimed_total",
		Help: "The total number of dirty batches claimed by workers",
	})

	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aesthete_items_processed_total",
		Help: "The total number of dirty items processed by the updater",
	}, []string{"status"})

	EventsFolded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aesthete_events_folded_total",
		Help: "The total number of events folded into item stats",
	}, []string{"stream"})

	ScoresPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aesthete_scores_published_total",
		Help: "The total number of score publish decisions",
	}, []string{"status"})

	DirtyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aesthete_dirty_queue_depth",
		Help: "Number of items currently waiting in the dirty queue",
	})

	DirtyQueueOldestAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aesthete_dirty_queue_oldest_age_seconds",
		Help: "Age in seconds of the oldest item in the dirty queue",
	})

	PublishedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aesthete_published_items",
		Help: "Number of items with a published score",
	})

	ProvisionalItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aesthete_provisional_items",
		Help: "Number of published items still marked provisional",
	})

	ItemProcessDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aesthete_item_process_duration_seconds",
		Help:    "Duration in seconds to fold and publish a single item",
		Buckets: prometheus.DefBuckets,
	})

	BatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aesthete_batch_duration_seconds",
		Help:    "Duration in seconds to process a claimed batch",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	ItemsRequeued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aesthete_items_requeued_total",
		Help: "The total number of items put back on the dirty queue",
	}, []string{"reason"})

	EventsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aesthete_events_pruned_total",
		Help: "The total number of folded events removed by retention",
	})

	RatersRecalibrated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aesthete_raters_recalibrated_total",
		Help: "The total number of raters whose reliability was recalibrated",
	})

	RaterAgreement = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aesthete_rater_agreement",
		Help:    "Distribution of per-rater agreement rates at recalibration",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})
)
