// Package updater is the incremental scoring worker. It claims batches of
// dirty items, folds each item's unseen events into its stats row under an
// optimistic checkpoint guard, and publishes debounced blended scores.
package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmuse/aesthete/internal/core/domain"
	apperrors "github.com/openmuse/aesthete/internal/core/errors"
	"github.com/openmuse/aesthete/internal/platform/config"
	"github.com/openmuse/aesthete/internal/platform/observability"
	"github.com/openmuse/aesthete/internal/platform/worker"
	"github.com/openmuse/aesthete/internal/rank"
)

const (
	gaugeRefreshInterval   = 30 * time.Second
	retentionSweepInterval = 1 * time.Hour
	requeueTimeout         = 5 * time.Second

	statusUpdated  = "updated"
	statusConflict = "conflict"
	statusError    = "error"

	publishStatusPublished = "published"
	publishStatusDebounced = "debounced"

	requeueReasonRetry    = "retry"
	requeueReasonConflict = "conflict"
	requeueReasonBacklog  = "backlog"
	requeueReasonOrphaned = "orphaned"
	requeueReasonShutdown = "shutdown"

	logFieldItem  = "item_id"
	logFieldCount = "count"
)

// Worker folds dirty items' events into stats and publishes scores.
type Worker struct {
	cfg     *config.Config
	scoring rank.Config
	db      Repository
	logger  *zerolog.Logger
}

// NewWorker creates a stats updater worker.
func NewWorker(cfg *config.Config, database Repository, logger *zerolog.Logger) *Worker {
	return &Worker{
		cfg:     cfg,
		scoring: cfg.Scoring(),
		db:      database,
		logger:  logger,
	}
}

// Run starts the updater loop and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	periodic := []worker.PeriodicTask{
		{Name: "reconcile", Interval: w.cfg.ReconcileInterval, Run: w.reconcile},
		{Name: "refresh gauges", Interval: gaugeRefreshInterval, Run: w.refreshGauges},
	}

	if retention, ok := w.cfg.Retention(); ok {
		periodic = append(periodic, worker.PeriodicTask{
			Name:     "retention",
			Interval: retentionSweepInterval,
			Run:      func(ctx context.Context) { w.prune(ctx, retention) },
		})
	}

	//nolint:wrapcheck // loop errors are already wrapped with the worker name
	return worker.Loop(ctx, worker.Config{
		Name:          "stats updater",
		PollInterval:  w.cfg.WorkerPollInterval,
		Process:       w.processBatch,
		PeriodicTasks: periodic,
		Logger:        w.logger,
	})
}

// processBatch claims one batch of dirty items and processes them in order.
// Claimed markers are already deleted, so on cancellation mid-batch the
// unprocessed remainder is re-marked before returning.
func (w *Worker) processBatch(ctx context.Context) error {
	batch, err := w.db.ClaimDirtyBatch(ctx, w.cfg.WorkerBatchSize)
	if err != nil {
		return fmt.Errorf("claim dirty batch: %w", err)
	}

	if len(batch) == 0 {
		return nil
	}

	observability.BatchesClaimed.Inc()

	start := time.Now()

	for i, item := range batch {
		if ctx.Err() != nil {
			w.requeueRemainder(batch[i:])

			return nil
		}

		w.processItem(ctx, item)
	}

	observability.BatchDurationSeconds.Observe(time.Since(start).Seconds())

	return nil
}

// processItem runs one item update, records metrics, and restores the dirty
// marker when the item needs another pass.
func (w *Worker) processItem(ctx context.Context, item domain.DirtyItem) {
	defer worker.RecoverPanic(w.logger, "process item")

	start := time.Now()

	status, requeueReason := w.updateItem(ctx, item)

	observability.ItemProcessDurationSeconds.Observe(time.Since(start).Seconds())
	observability.ItemsProcessed.WithLabelValues(status).Inc()

	if requeueReason != "" {
		// The marker must land even when the loop context was canceled
		// mid-item, or the item stays invisible until reconciliation.
		w.remark(context.WithoutCancel(ctx), item, requeueReason)
	}
}

// updateItem folds the item's unseen events and publishes its score. It
// returns a status label for metrics and, when the item needs another pass,
// a non-empty requeue reason.
func (w *Worker) updateItem(ctx context.Context, item domain.DirtyItem) (string, string) {
	stats, err := w.db.GetOrCreateItemStats(ctx, item.ItemID, w.scoring.PriorMean, w.scoring.PriorUncertainty)
	if err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to load item stats")

		return statusError, requeueReasonRetry
	}

	limit := w.cfg.EventFetchLimit

	pairwise, err := w.db.PairwiseEventsAfter(ctx, item.ItemID, stats.LastPairwiseID, limit)
	if err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to fetch pairwise events")

		return statusError, requeueReasonRetry
	}

	ratings, err := w.db.RatingEventsAfter(ctx, item.ItemID, stats.LastRatingID, limit)
	if err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to fetch rating events")

		return statusError, requeueReasonRetry
	}

	favorites, err := w.db.FavoriteEventsAfter(ctx, item.ItemID, stats.LastFavoriteID, limit)
	if err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to fetch favorite events")

		return statusError, requeueReasonRetry
	}

	if err := validateStreams(stats, pairwise, ratings, favorites); err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("event stream out of order, skipping item")

		return statusError, requeueReasonRetry
	}

	raters, err := w.loadRaters(ctx, ratings, favorites)
	if err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to load raters")

		return statusError, requeueReasonRetry
	}

	next := w.fold(stats, pairwise, ratings, favorites, raters)

	ok, err := w.db.UpdateItemStatsGuarded(ctx, stats, next)
	if err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to update item stats")

		return statusError, requeueReasonRetry
	}

	if !ok {
		w.logger.Debug().Str(logFieldItem, item.ItemID).Msg("lost fold race, requeueing item")

		return statusConflict, requeueReasonConflict
	}

	observability.EventsFolded.WithLabelValues(string(domain.StreamPairwise)).Add(float64(len(pairwise)))
	observability.EventsFolded.WithLabelValues(string(domain.StreamRating)).Add(float64(len(ratings)))
	observability.EventsFolded.WithLabelValues(string(domain.StreamFavorite)).Add(float64(len(favorites)))

	if err := w.publish(ctx, next); err != nil {
		w.logger.Error().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to publish score")

		return statusError, requeueReasonRetry
	}

	// A full fetch on any stream means more events may be waiting.
	if len(pairwise) == limit || len(ratings) == limit || len(favorites) == limit {
		w.logger.Debug().Str(logFieldItem, item.ItemID).Msg("event backlog not drained, requeueing item")

		return statusUpdated, requeueReasonBacklog
	}

	return statusUpdated, ""
}

// fold applies the three event slices to a copy of the stats row and
// advances its checkpoints. Pairwise folds use the frozen snapshot ratings
// carried by each event, so the result does not depend on the order items
// are processed in.
func (w *Worker) fold(
	st domain.ItemStats,
	pairwise []domain.PairwiseEvent,
	ratings []domain.RatingEvent,
	favorites []domain.FavoriteEvent,
	raters map[string]domain.Rater,
) domain.ItemStats {
	for _, ev := range pairwise {
		opponent, won := ev.Opponent(st.ItemID)
		st.RatingMean, st.RatingUncertainty = w.scoring.ApplyPairwise(
			st.RatingMean, st.RatingUncertainty, opponent, won, ev.Class)
		st.LastPairwiseID = ev.ID
		st.TotalPairwise++
	}

	for _, ev := range ratings {
		rater := lookupRater(raters, ev.RaterID)
		cal := rank.Calibration{Mean: rater.RatingMean, M2: rater.RatingM2, Samples: rater.RatingSamples}

		st.SumWeightedRating += rater.Reliability * cal.Normalize(ev.RawScore, w.scoring)
		st.SumWeight += rater.Reliability
		st.LastRatingID = ev.ID
		st.TotalRatings++
	}

	for _, ev := range favorites {
		st.SumFavoriteWeight += lookupRater(raters, ev.RaterID).Reliability
		st.LastFavoriteID = ev.ID
		st.TotalFavorites++
	}

	return st
}

// publish derives the blended score from the updated stats and upserts it
// unless the debounce rule suppresses the write.
func (w *Worker) publish(ctx context.Context, st domain.ItemStats) error {
	prev, err := w.db.GetPublishedScore(ctx, st.ItemID)
	if err != nil {
		return fmt.Errorf("load published score: %w", err)
	}

	derived := w.scoring.Derive(st)

	if !w.scoring.ShouldPublish(prev, derived) {
		observability.ScoresPublished.WithLabelValues(publishStatusDebounced).Inc()

		return nil
	}

	ps := domain.PublishedScore{
		ItemID:            st.ItemID,
		Score:             derived.Score,
		Confidence:        derived.Confidence,
		Provisional:       derived.Provisional,
		RatingComponent:   derived.RatingComponent,
		SignalComponent:   derived.SignalComponent,
		FavoriteComponent: derived.FavoriteComponent,
		ReliabilityFactor: derived.ReliabilityFactor,
		RatingMean:        st.RatingMean,
		RatingUncertainty: st.RatingUncertainty,
	}

	if err := w.db.UpsertPublishedScore(ctx, ps); err != nil {
		return fmt.Errorf("upsert published score: %w", err)
	}

	observability.ScoresPublished.WithLabelValues(publishStatusPublished).Inc()

	return nil
}

// loadRaters fetches the rater rows referenced by the rating and favorite
// slices. Pairwise folds do not need rater state.
func (w *Worker) loadRaters(
	ctx context.Context,
	ratings []domain.RatingEvent,
	favorites []domain.FavoriteEvent,
) (map[string]domain.Rater, error) {
	seen := make(map[string]struct{}, len(ratings)+len(favorites))

	ids := make([]string, 0, len(ratings)+len(favorites))

	for _, ev := range ratings {
		if _, ok := seen[ev.RaterID]; !ok {
			seen[ev.RaterID] = struct{}{}
			ids = append(ids, ev.RaterID)
		}
	}

	for _, ev := range favorites {
		if _, ok := seen[ev.RaterID]; !ok {
			seen[ev.RaterID] = struct{}{}
			ids = append(ids, ev.RaterID)
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}

	raters, err := w.db.GetRaters(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get raters: %w", err)
	}

	return raters, nil
}

// lookupRater returns the rater's snapshot, or a neutral stand-in when the
// row is missing. Rater rows are created at ingest, so a miss only happens
// if a rater was deleted after voting.
func lookupRater(raters map[string]domain.Rater, raterID string) domain.Rater {
	if r, ok := raters[raterID]; ok {
		return r
	}

	return domain.Rater{RatingMean: 50, Reliability: 1}
}

// remark restores the item's dirty marker after a pass that did not finish
// its work.
func (w *Worker) remark(ctx context.Context, item domain.DirtyItem, reason string) {
	observability.ItemsRequeued.WithLabelValues(reason).Inc()

	if err := w.db.MarkDirty(ctx, item.ItemID, item.Priority); err != nil {
		w.logger.Warn().Err(err).Str(logFieldItem, item.ItemID).Msg("failed to re-mark item dirty")
	}
}

// requeueRemainder restores markers for claimed items that were not
// processed before shutdown. A fresh bounded context is used because the
// loop's context is already canceled.
func (w *Worker) requeueRemainder(items []domain.DirtyItem) {
	//nolint:contextcheck // non-inherited context intentional, see above
	ctx, cancel := context.WithTimeout(context.Background(), requeueTimeout)
	defer cancel()

	for _, item := range items {
		w.remark(ctx, item, requeueReasonShutdown)
	}
}

// reconcile re-marks items whose events were never folded because a marker
// was lost mid-crash. Requeued items get the lowest priority.
func (w *Worker) reconcile(ctx context.Context) {
	since := time.Now().Add(-w.cfg.ReconcileLookback)

	requeued, err := w.db.RequeueUnmarkedItems(ctx, rank.PriorityPairwise, since)
	if err != nil {
		w.logger.Warn().Err(err).Msg("reconcile sweep failed")

		return
	}

	if requeued > 0 {
		observability.ItemsRequeued.WithLabelValues(requeueReasonOrphaned).Add(float64(requeued))
		w.logger.Info().Int64(logFieldCount, requeued).Msg("requeued items with unfolded events")
	}
}

// prune deletes fully folded events older than the retention window.
func (w *Worker) prune(ctx context.Context, retention time.Duration) {
	pruned, err := w.db.PruneFoldedEvents(ctx, time.Now().Add(-retention))
	if err != nil {
		w.logger.Warn().Err(err).Msg("retention sweep failed")

		return
	}

	if pruned > 0 {
		observability.EventsPruned.Add(float64(pruned))
		w.logger.Info().Int64(logFieldCount, pruned).Msg("pruned folded events")
	}
}

// refreshGauges updates queue and publish gauges from a health snapshot.
func (w *Worker) refreshGauges(ctx context.Context) {
	health, err := w.db.PipelineHealth(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to refresh pipeline gauges")

		return
	}

	observability.DirtyQueueDepth.Set(float64(health.DirtyCount))
	observability.DirtyQueueOldestAgeSeconds.Set(health.OldestDirtyAge.Seconds())
	observability.PublishedItems.Set(float64(health.PublishedCount))
	observability.ProvisionalItems.Set(float64(health.ProvisionalCount))
}

// validateStreams asserts that every fetched event id is strictly above its
// stream checkpoint and strictly ascending.
func validateStreams(
	st domain.ItemStats,
	pairwise []domain.PairwiseEvent,
	ratings []domain.RatingEvent,
	favorites []domain.FavoriteEvent,
) error {
	last := st.LastPairwiseID
	for _, ev := range pairwise {
		if ev.ID <= last {
			return fmt.Errorf("pairwise event %d after %d: %w", ev.ID, last, apperrors.ErrCheckpointRegression)
		}

		last = ev.ID
	}

	last = st.LastRatingID
	for _, ev := range ratings {
		if ev.ID <= last {
			return fmt.Errorf("rating event %d after %d: %w", ev.ID, last, apperrors.ErrCheckpointRegression)
		}

		last = ev.ID
	}

	last = st.LastFavoriteID
	for _, ev := range favorites {
		if ev.ID <= last {
			return fmt.Errorf("favorite event %d after %d: %w", ev.ID, last, apperrors.ErrCheckpointRegression)
		}

		last = ev.ID
	}

	return nil
}
