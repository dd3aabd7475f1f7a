package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopfloor.io/mes/internal/domain"
	"shopfloor.io/mes/internal/events"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

// Store serves the resolver's reads with ordinary pool queries and runs the
// BOM batch write in its own transaction.
type Store struct {
	pool    *pgxpool.Pool
	queries *Queries
}

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		queries: New(pool),
	}
}

// InTx runs fn inside one transaction and commits when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx, q *Queries) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not initialized")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx, s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetOrder implements the resolver's order lookup.
func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.queries.GetOrder(ctx, id)
}

// GetImmediateTransformations implements the resolver's recipe source.
func (s *Store) GetImmediateTransformations(ctx context.Context, toPiece int64) ([]domain.Transformation, error) {
	return s.queries.GetImmediateTransformations(ctx, toPiece)
}

// GetTransformation returns one edge by id.
func (s *Store) GetTransformation(ctx context.Context, id int64) (domain.Transformation, error) {
	return s.queries.GetTransformation(ctx, id)
}

// GetBOMEntry returns one BOM row by id.
func (s *Store) GetBOMEntry(ctx context.Context, id int64) (domain.BOMEntry, error) {
	return s.queries.GetBOMEntry(ctx, id)
}

// InsertBOMBatch atomically:
// 1) inserts every entry,
// 2) announces the new ids on new_bom_entry.
// Either both happen or neither does; the ids are returned in entry order.
func (s *Store) InsertBOMBatch(ctx context.Context, entries []domain.BOMEntry) ([]int64, error) {
	if len(entries) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidOrder, "refusing to write an empty bom batch")
	}

	var ids []int64
	err := s.InTx(ctx, func(ctx context.Context, tx pgx.Tx, q *Queries) error {
		var err error
		ids, err = q.InsertBOMEntries(ctx, entries)
		if err != nil {
			return err
		}
		return events.Publish(ctx, tx, events.ChannelNewBOMEntry, events.FormatIDs(ids))
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeBOMWriteFailed, fmt.Sprintf("write bom batch for order %d", entries[0].OrderID))
	}
	return ids, nil
}

// ListUnresolvedOrders returns the orders the backlog sweep should announce
// again.
func (s *Store) ListUnresolvedOrders(ctx context.Context, f BacklogFilter) ([]int64, error) {
	return s.queries.ListUnresolvedOrders(ctx, f)
}

// RecordAttempt counts one handled new_order notification for orderID.
func (s *Store) RecordAttempt(ctx context.Context, orderID int64, failureCode string) error {
	return s.queries.RecordAttempt(ctx, orderID, failureCode)
}

// MarkListening must run before the resolver issues LISTEN: orders announced
// earlier and never handled are treated as lost by the backlog sweep.
func (s *Store) MarkListening(ctx context.Context) error {
	return s.queries.MarkListening(ctx)
}

// AnnounceOrders publishes one new_order notification per id and stamps
// announced_at. All of it is delivered on commit, or none of it is.
func (s *Store) AnnounceOrders(ctx context.Context, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return s.InTx(ctx, func(ctx context.Context, tx pgx.Tx, q *Queries) error {
		if err := q.TouchAnnounced(ctx, orderIDs); err != nil {
			return err
		}
		for _, id := range orderIDs {
			if err := events.Publish(ctx, tx, events.ChannelNewOrder, events.FormatOrderID(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PlaceOrderParams describe one inbound client order. Penalties are in minor
// currency units.
type PlaceOrderParams struct {
	ClientName   string
	PieceName    string
	Number       int32
	Quantity     int32
	DueDate      int32
	LatePenalty  int64
	EarlyPenalty int64
}

// PlaceClientOrder atomically:
// 1) resolves the piece by name,
// 2) finds or creates the client,
// 3) inserts the order,
// 4) announces it on new_order.
func (s *Store) PlaceClientOrder(ctx context.Context, p PlaceOrderParams) (int64, error) {
	var orderID int64
	err := s.InTx(ctx, func(ctx context.Context, tx pgx.Tx, q *Queries) error {
		pieceID, err := q.GetPieceIDByName(ctx, p.PieceName)
		if err != nil {
			return err
		}

		clientID, found, err := q.GetClientIDByName(ctx, p.ClientName)
		if err != nil {
			return err
		}
		if !found {
			if clientID, err = q.InsertClient(ctx, p.ClientName); err != nil {
				return err
			}
		}

		orderID, err = q.InsertOrder(ctx, InsertOrderParams{
			PieceID:      pieceID,
			ClientID:     clientID,
			Number:       p.Number,
			Quantity:     p.Quantity,
			DueDate:      p.DueDate,
			LatePenalty:  p.LatePenalty,
			EarlyPenalty: p.EarlyPenalty,
		})
		if err != nil {
			return err
		}
		return events.Publish(ctx, tx, events.ChannelNewOrder, events.FormatOrderID(orderID))
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}
