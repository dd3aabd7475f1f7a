// Package jobs defines River Queue job types for periodic maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"shopfloor.io/mes/internal/config"
	"shopfloor.io/mes/internal/metrics"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
	"shopfloor.io/mes/internal/pkg/logger"
	"shopfloor.io/mes/internal/repository"
)

const (
	// DefaultBacklogGrace is how old an order must be before the sweep
	// treats a missing BOM batch as lost.
	DefaultBacklogGrace = 2 * time.Minute

	// DefaultBacklogBatchSize caps the orders re-announced per run.
	DefaultBacklogBatchSize int32 = 100

	// DefaultBacklogMaxAttempts caps resolution attempts of an order that
	// keeps failing with a retryable code.
	DefaultBacklogMaxAttempts int32 = 3
)

// RetryableCodes are resolution failures worth another announcement. Every
// other failure (EMPTY_CHAIN, CYCLIC_RECIPE, ...) is permanent.
var RetryableCodes = []string{
	apperrors.CodeRecipeFetchFailed,
	apperrors.CodeBOMWriteFailed,
	apperrors.CodeInternal,
}

// BacklogStore finds orders whose notification was lost, or whose resolution
// failed transiently, and announces them again.
type BacklogStore interface {
	ListUnresolvedOrders(ctx context.Context, f repository.BacklogFilter) ([]int64, error)
	AnnounceOrders(ctx context.Context, orderIDs []int64) error
}

// BacklogSweepArgs is a periodic job that re-publishes new_order for orders
// whose notification was lost, for example while the resolver was down, and
// for orders whose last resolution failed transiently.
type BacklogSweepArgs struct{}

// Kind returns the job kind identifier for the backlog sweep.
func (BacklogSweepArgs) Kind() string { return "backlog_sweep" }

// InsertOpts ensures at most one sweep is enqueued per minute.
func (BacklogSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Minute,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// BacklogSweepWorker re-announces unresolved orders older than the grace period.
type BacklogSweepWorker struct {
	river.WorkerDefaults[BacklogSweepArgs]
	store       BacklogStore
	metrics     *metrics.Registry
	grace       time.Duration
	batchSize   int32
	maxAttempts int32
	now         func() time.Time
}

// NewBacklogSweepWorker creates a sweep worker. Non-positive settings fall
// back to the defaults.
func NewBacklogSweepWorker(store BacklogStore, m *metrics.Registry, cfg config.BacklogConfig) *BacklogSweepWorker {
	w := &BacklogSweepWorker{
		store:       store,
		metrics:     m,
		grace:       cfg.Grace,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
	if w.grace <= 0 {
		w.grace = DefaultBacklogGrace
	}
	if w.batchSize <= 0 {
		w.batchSize = DefaultBacklogBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = DefaultBacklogMaxAttempts
	}
	return w
}

// Work announces every order found in one transaction.
func (w *BacklogSweepWorker) Work(ctx context.Context, _ *river.Job[BacklogSweepArgs]) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("backlog sweep worker is not initialized")
	}

	cutoff := w.now().UTC().Add(-w.grace)
	ids, err := w.store.ListUnresolvedOrders(ctx, repository.BacklogFilter{
		Cutoff:      cutoff,
		Limit:       w.batchSize,
		MaxAttempts: w.maxAttempts,
		RetryCodes:  RetryableCodes,
	})
	if err != nil {
		return fmt.Errorf("list unresolved orders before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if len(ids) == 0 {
		logger.Debug("backlog sweep found nothing", zap.String("cutoff", cutoff.Format(time.RFC3339)))
		return nil
	}

	if err := w.store.AnnounceOrders(ctx, ids); err != nil {
		return fmt.Errorf("re-announce %d orders: %w", len(ids), err)
	}
	if w.metrics != nil {
		w.metrics.BacklogReannounced.Add(float64(len(ids)))
	}

	logger.Warn("backlog sweep re-announced unresolved orders",
		zap.Int("orders", len(ids)),
		zap.Int64("first_order_id", ids[0]),
		zap.String("cutoff", cutoff.Format(time.RFC3339)),
		zap.Duration("grace", w.grace),
	)
	return nil
}

// BacklogSweepPeriodicJob schedules the sweep every interval, starting at
// client start.
func BacklogSweepPeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return BacklogSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
