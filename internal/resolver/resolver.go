// Package resolver turns newly placed orders into numbered bill-of-materials
// batches.
//
// A single loop consumes notifications one at a time. A "new_order" event runs
// recipe building, path selection and BOM emission for that order; a
// "new_bom_entry" event loads the announced entries and checks them against
// the configured production lines.
package resolver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopfloor.io/mes/internal/domain"
	"shopfloor.io/mes/internal/events"
	"shopfloor.io/mes/internal/metrics"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
	"shopfloor.io/mes/internal/pkg/logger"
)

// OrderStore reads orders and keeps count of how each new_order went.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	// RecordAttempt is called once per handled new_order; failureCode is
	// empty on success.
	RecordAttempt(ctx context.Context, orderID int64, failureCode string) error
}

// TransformationStore reads the transformation table.
type TransformationStore interface {
	RecipeSource
	TransformationLookup
}

// BOMStore writes and reads BOM rows.
type BOMStore interface {
	BOMWriter
	GetBOMEntry(ctx context.Context, id int64) (domain.BOMEntry, error)
}

// Config tunes the resolver.
type Config struct {
	// PathStrategy is StrategyGreedy (default) or StrategyCheapest.
	PathStrategy string

	// StrictMode makes the first failed event stop the loop.
	StrictMode bool

	Lines []domain.ProductionLine
}

// Resolver is the resolution loop and its collaborators.
type Resolver struct {
	orders          OrderStore
	transformations TransformationStore
	boms            BOMStore
	emitter         *Emitter
	selectPath      PathSelector
	lines           []domain.ProductionLine
	strict          bool
	metrics         *metrics.Registry
	log             *zap.Logger
}

// New creates a Resolver.
func New(orders OrderStore, transformations TransformationStore, boms BOMStore, m *metrics.Registry, cfg Config) (*Resolver, error) {
	if orders == nil || transformations == nil || boms == nil || m == nil {
		return nil, fmt.Errorf("resolver dependencies are incomplete")
	}
	selectPath, err := SelectorFor(cfg.PathStrategy)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		orders:          orders,
		transformations: transformations,
		boms:            boms,
		emitter:         NewEmitter(boms),
		selectPath:      selectPath,
		lines:           cfg.Lines,
		strict:          cfg.StrictMode,
		metrics:         m,
		log:             logger.Named("resolver"),
	}, nil
}

// Run consumes notifications until the listener fails or ctx is cancelled.
// A listener failure is returned; cancellation returns nil. Event handling
// errors are logged and the loop continues, unless strict mode is on.
func (r *Resolver) Run(ctx context.Context, l events.Listener) error {
	r.log.Info("Resolution loop started", zap.Bool("strict_mode", r.strict))
	for {
		n, err := l.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("Resolution loop stopped", zap.Error(ctx.Err()))
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		if err := r.Dispatch(ctx, n); err != nil && r.strict {
			return fmt.Errorf("handle %s notification %q: %w", n.Channel, n.Payload, err)
		}
	}
}

// Dispatch routes one notification. Errors are already logged when returned.
func (r *Resolver) Dispatch(ctx context.Context, n events.Notification) error {
	kind := n.Kind()
	r.metrics.NotificationsReceived.WithLabelValues(kind.String()).Inc()

	switch kind {
	case events.ChannelNewOrder:
		return r.handleNewOrder(ctx, n.Payload)
	case events.ChannelNewBOMEntry:
		return r.handleNewBOMBatch(ctx, n.Payload)
	case events.ChannelUnknown:
		r.log.Warn("Notification on unknown channel ignored",
			zap.String("channel", n.Channel),
			zap.String("payload", n.Payload),
		)
		return nil
	default:
		return fmt.Errorf("unhandled channel %d", kind)
	}
}

func (r *Resolver) handleNewOrder(ctx context.Context, payload string) error {
	orderID, err := events.ParseOrderID(payload)
	if err != nil {
		r.metrics.PayloadsRejected.WithLabelValues(events.ChannelNewOrder.String()).Inc()
		r.log.Error("Skipping new_order notification with malformed payload",
			zap.String("payload", payload),
			zap.Error(err),
		)
		return apperrors.ErrInvalidPayloadf(events.ChannelNewOrder.String(), payload)
	}

	start := time.Now()
	ids, err := r.ResolveOrder(ctx, orderID)
	r.recordAttempt(ctx, orderID, err)
	if err != nil {
		r.metrics.ResolutionFailures.WithLabelValues(apperrors.Code(err)).Inc()
		r.log.Error("Order resolution failed",
			zap.Int64("order_id", orderID),
			zap.String("code", apperrors.Code(err)),
			zap.Error(err),
		)
		return err
	}
	r.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	r.metrics.OrdersResolved.Inc()
	r.metrics.BOMEntriesEmitted.Add(float64(len(ids)))
	return nil
}

func (r *Resolver) recordAttempt(ctx context.Context, orderID int64, resolveErr error) {
	code := apperrors.Code(resolveErr)
	if err := r.orders.RecordAttempt(ctx, orderID, code); err != nil {
		r.log.Warn("Recording resolution attempt failed",
			zap.Int64("order_id", orderID),
			zap.String("code", code),
			zap.Error(err),
		)
	}
}

// ResolveOrder builds and persists the BOM batch of one order and returns the
// new entry ids. Nothing is written when any stage fails.
func (r *Resolver) ResolveOrder(ctx context.Context, orderID int64) ([]int64, error) {
	order, err := r.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	r.log.Info("Generating BOM for new order",
		zap.Int64("order_id", order.ID),
		zap.Int64("piece_id", order.PieceID),
		zap.Int32("quantity", order.Quantity),
	)

	recipe, err := BuildRecipe(ctx, r.transformations, order.PieceID)
	if err != nil {
		return nil, err
	}
	chain := r.selectPath(order.PieceID, IndexByDestination(recipe))
	r.metrics.ChainSteps.Observe(float64(len(chain)))

	ids, err := r.emitter.Emit(ctx, order, chain)
	if err != nil {
		return nil, err
	}
	r.log.Info("BOM batch written",
		zap.Int64("order_id", order.ID),
		zap.Int("recipe_edges", len(recipe)),
		zap.Int("steps", len(chain)),
		zap.Int64("chain_cost", chain.Cost()),
		zap.Int("entries", len(ids)),
	)
	return ids, nil
}

func (r *Resolver) handleNewBOMBatch(ctx context.Context, payload string) error {
	ids := events.ParseIDs(payload)
	if len(ids) == 0 {
		r.metrics.PayloadsRejected.WithLabelValues(events.ChannelNewBOMEntry.String()).Inc()
		err := apperrors.ErrInvalidPayloadf(events.ChannelNewBOMEntry.String(), payload)
		r.log.Error("Rejected new_bom_entry notification", zap.String("payload", payload), zap.Error(err))
		return err
	}

	entries := make([]domain.BOMEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := r.boms.GetBOMEntry(ctx, id)
		if err != nil {
			r.log.Error("Loading announced BOM entry failed", zap.Int64("bom_entry_id", id), zap.Error(err))
			return err
		}
		entries = append(entries, entry)
	}

	incompatible, err := CheckCompatibility(ctx, r.transformations, r.lines, entries)
	if err != nil {
		r.log.Error("Production line compatibility check failed", zap.Error(err))
		return err
	}
	for _, inc := range incompatible {
		r.log.Warn("BOM step needs a tool no production line offers",
			zap.Int64("bom_entry_id", inc.Entry.ID),
			zap.Int64("order_id", inc.Entry.OrderID),
			zap.Int32("step_number", inc.Entry.StepNumber),
			zap.String("tool", string(inc.Tool)),
		)
	}
	r.metrics.IncompatibleSteps.Add(float64(len(incompatible)))
	r.log.Debug("BOM batch checked",
		zap.Int("entries", len(entries)),
		zap.Int("incompatible", len(incompatible)),
	)
	return nil
}
