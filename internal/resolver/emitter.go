package resolver

import (
	"context"
	"fmt"

	"shopfloor.io/mes/internal/domain"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

// BOMWriter persists a batch and announces it on new_bom_entry in one
// transaction, returning the new ids in entry order.
type BOMWriter interface {
	InsertBOMBatch(ctx context.Context, entries []domain.BOMEntry) ([]int64, error)
}

// BuildBOMBatch replicates chain once per ordered unit. The chain runs from
// finished piece to root, so steps are numbered along its reverse.
func BuildBOMBatch(order domain.Order, chain domain.Chain) []domain.BOMEntry {
	stepsTotal := int32(len(chain))
	piecesTotal := order.Quantity
	if stepsTotal == 0 || piecesTotal <= 0 {
		return nil
	}

	production := chain.Reversed()
	entries := make([]domain.BOMEntry, 0, int(stepsTotal)*int(piecesTotal))
	for piece := int32(1); piece <= piecesTotal; piece++ {
		for i, t := range production {
			entries = append(entries, domain.BOMEntry{
				OrderID:          order.ID,
				TransformationID: t.ID,
				PieceNumber:      piece,
				PiecesTotal:      piecesTotal,
				StepNumber:       int32(i) + 1,
				StepsTotal:       stepsTotal,
			})
		}
	}
	return entries
}

// Emitter turns a selected chain into a persisted, announced BOM batch.
type Emitter struct {
	writer BOMWriter
}

// NewEmitter creates an Emitter writing through w.
func NewEmitter(w BOMWriter) *Emitter {
	return &Emitter{writer: w}
}

// Emit writes the order's batch. An empty chain or a non-positive quantity is
// refused before anything is written.
func (e *Emitter) Emit(ctx context.Context, order domain.Order, chain domain.Chain) ([]int64, error) {
	if len(chain) == 0 {
		return nil, apperrors.ErrEmptyChainf(order.ID, order.PieceID)
	}
	if order.Quantity <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidOrder,
			fmt.Sprintf("order %d has non-positive quantity %d", order.ID, order.Quantity)).
			WithParams(map[string]interface{}{"order_id": order.ID, "quantity": order.Quantity})
	}

	entries := BuildBOMBatch(order, chain)
	ids, err := e.writer.InsertBOMBatch(ctx, entries)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(entries) {
		return nil, apperrors.New(apperrors.CodeBOMWriteFailed,
			fmt.Sprintf("bom batch for order %d returned %d ids for %d entries", order.ID, len(ids), len(entries)))
	}
	return ids, nil
}
