package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"shopfloor.io/mes/internal/domain"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

const getOrder = `
SELECT id, piece_id, client_id, number, quantity, due_date, late_pen, early_pen, created_at
FROM orders
WHERE id = $1`

// GetOrder returns one order; a missing row yields ORDER_NOT_FOUND.
func (q *Queries) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := q.db.QueryRow(ctx, getOrder, id).Scan(
		&o.ID, &o.PieceID, &o.ClientID, &o.Number, &o.Quantity, &o.DueDate,
		&o.LatePenalty, &o.EarlyPenalty, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperrors.ErrOrderNotFound(id, err)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

const getImmediateTransformations = `
SELECT id, from_piece, to_piece, tool, quantity, cost
FROM transformations
WHERE to_piece = $1
ORDER BY id`

// GetImmediateTransformations returns the edges producing toPiece, lowest id
// first. An empty result means the piece is raw material or unknown.
func (q *Queries) GetImmediateTransformations(ctx context.Context, toPiece int64) ([]domain.Transformation, error) {
	rows, err := q.db.Query(ctx, getImmediateTransformations, toPiece)
	if err != nil {
		return nil, fmt.Errorf("query transformations into piece %d: %w", toPiece, err)
	}
	out, err := pgx.CollectRows(rows, scanTransformation)
	if err != nil {
		return nil, fmt.Errorf("scan transformations into piece %d: %w", toPiece, err)
	}
	return out, nil
}

const getTransformation = `
SELECT id, from_piece, to_piece, tool, quantity, cost
FROM transformations
WHERE id = $1`

// GetTransformation returns one edge by id.
func (q *Queries) GetTransformation(ctx context.Context, id int64) (domain.Transformation, error) {
	rows, err := q.db.Query(ctx, getTransformation, id)
	if err != nil {
		return domain.Transformation{}, fmt.Errorf("query transformation %d: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTransformation)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transformation{}, apperrors.ErrTransformationNotFound(id, err)
	}
	if err != nil {
		return domain.Transformation{}, fmt.Errorf("get transformation %d: %w", id, err)
	}
	return t, nil
}

func scanTransformation(row pgx.CollectableRow) (domain.Transformation, error) {
	var (
		t    domain.Transformation
		tool string
	)
	if err := row.Scan(&t.ID, &t.FromPiece, &t.ToPiece, &tool, &t.Quantity, &t.Cost); err != nil {
		return domain.Transformation{}, err
	}
	t.Tool = domain.ParseTool(tool)
	return t, nil
}

const getBOMEntry = `
SELECT id, order_id, transformation_id, piece_number, pieces_total, step_number, steps_total
FROM bom_entries
WHERE id = $1`

// GetBOMEntry returns one BOM row; a missing row yields BOM_ENTRY_NOT_FOUND.
func (q *Queries) GetBOMEntry(ctx context.Context, id int64) (domain.BOMEntry, error) {
	var e domain.BOMEntry
	err := q.db.QueryRow(ctx, getBOMEntry, id).Scan(
		&e.ID, &e.OrderID, &e.TransformationID, &e.PieceNumber, &e.PiecesTotal, &e.StepNumber, &e.StepsTotal,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BOMEntry{}, apperrors.ErrBOMEntryNotFound(id, err)
	}
	if err != nil {
		return domain.BOMEntry{}, fmt.Errorf("get bom entry %d: %w", id, err)
	}
	return e, nil
}

const insertBOMEntry = `
INSERT INTO bom_entries (order_id, transformation_id, piece_number, pieces_total, step_number, steps_total)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

// InsertBOMEntries inserts entries in one round trip and returns their ids in
// entry order. Atomicity comes from the caller's transaction.
func (q *Queries) InsertBOMEntries(ctx context.Context, entries []domain.BOMEntry) ([]int64, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertBOMEntry, e.OrderID, e.TransformationID, e.PieceNumber, e.PiecesTotal, e.StepNumber, e.StepsTotal)
	}

	br := q.db.SendBatch(ctx, batch)
	ids := make([]int64, 0, len(entries))
	for i := range entries {
		var id int64
		if err := br.QueryRow().Scan(&id); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("insert bom entry %d of %d: %w", i+1, len(entries), err)
		}
		ids = append(ids, id)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close bom batch: %w", err)
	}
	return ids, nil
}

// BacklogFilter selects orders the backlog sweep announces again.
type BacklogFilter struct {
	// Cutoff is now minus the grace period.
	Cutoff time.Time
	Limit  int32
	// MaxAttempts caps retries of orders that failed with one of RetryCodes.
	MaxAttempts int32
	RetryCodes  []string
}

// An order qualifies when it has no BOM rows and either
//   - no new_order for it was ever handled, and it was announced before the
//     resolver started listening or before a later announcement the resolver
//     already handled, so its notification is lost rather than queued; or
//   - its last announcement was handled and failed with a retryable code,
//     fewer than MaxAttempts times.
//
// Orders that failed permanently never qualify again.
const listUnresolvedOrders = `
SELECT o.id
FROM orders o
LEFT JOIN resolver_state s ON TRUE
WHERE o.announced_at < $1
  AND NOT EXISTS (SELECT 1 FROM bom_entries b WHERE b.order_id = o.id)
  AND (
        (o.resolve_attempts = 0
         AND o.announced_at < GREATEST(s.listening_since, s.seen_through))
     OR (o.resolve_attempts > 0
         AND o.resolve_attempts < $3
         AND o.last_failure_code = ANY($4)
         AND o.last_attempt_at > o.announced_at
         AND o.last_attempt_at < $1)
  )
ORDER BY o.announced_at, o.id
LIMIT $2`

// ListUnresolvedOrders returns ids of orders the backlog sweep should
// announce again, oldest announcement first.
func (q *Queries) ListUnresolvedOrders(ctx context.Context, f BacklogFilter) ([]int64, error) {
	codes := f.RetryCodes
	if codes == nil {
		codes = []string{}
	}
	rows, err := q.db.Query(ctx, listUnresolvedOrders, f.Cutoff, f.Limit, f.MaxAttempts, codes)
	if err != nil {
		return nil, fmt.Errorf("list unresolved orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan unresolved orders: %w", err)
	}
	return ids, nil
}

const touchAnnounced = `UPDATE orders SET announced_at = clock_timestamp() WHERE id = ANY($1)`

// TouchAnnounced stamps announced_at on orders about to be published.
func (q *Queries) TouchAnnounced(ctx context.Context, orderIDs []int64) error {
	if _, err := q.db.Exec(ctx, touchAnnounced, orderIDs); err != nil {
		return fmt.Errorf("stamp announced orders: %w", err)
	}
	return nil
}

const recordAttempt = `
WITH attempted AS (
    UPDATE orders
    SET resolve_attempts  = resolve_attempts + 1,
        last_attempt_at   = clock_timestamp(),
        last_failure_code = NULLIF($2, '')
    WHERE id = $1
    RETURNING announced_at
)
UPDATE resolver_state
SET seen_through = GREATEST(seen_through, (SELECT announced_at FROM attempted))`

// RecordAttempt counts one handled new_order for orderID. failureCode is
// empty on success. It also advances the resolver's seen_through mark.
func (q *Queries) RecordAttempt(ctx context.Context, orderID int64, failureCode string) error {
	if _, err := q.db.Exec(ctx, recordAttempt, orderID, failureCode); err != nil {
		return fmt.Errorf("record resolution attempt for order %d: %w", orderID, err)
	}
	return nil
}

const markListening = `
INSERT INTO resolver_state (id, listening_since) VALUES (TRUE, clock_timestamp())
ON CONFLICT (id) DO UPDATE SET listening_since = EXCLUDED.listening_since`

// MarkListening records that a resolver is about to LISTEN.
func (q *Queries) MarkListening(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, markListening); err != nil {
		return fmt.Errorf("mark resolver listening: %w", err)
	}
	return nil
}

const getPieceIDByName = `SELECT id FROM pieces WHERE name = $1`

// GetPieceIDByName resolves a piece name such as "P5".
func (q *Queries) GetPieceIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, getPieceIDByName, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperrors.Wrap(apperrors.ErrNotFound, apperrors.CodePieceNotFound, fmt.Sprintf("piece %q not found", name))
	}
	if err != nil {
		return 0, fmt.Errorf("get piece %q: %w", name, err)
	}
	return id, nil
}

const getClientIDByName = `SELECT id FROM clients WHERE name = $1`

// GetClientIDByName returns (id, true) when the client exists.
func (q *Queries) GetClientIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := q.db.QueryRow(ctx, getClientIDByName, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get client %q: %w", name, err)
	}
	return id, true, nil
}

const insertClient = `INSERT INTO clients (name) VALUES ($1) RETURNING id`

// InsertClient creates a client.
func (q *Queries) InsertClient(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := q.db.QueryRow(ctx, insertClient, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert client %q: %w", name, err)
	}
	return id, nil
}

// InsertOrderParams are the columns of a new order row.
type InsertOrderParams struct {
	PieceID      int64
	ClientID     int64
	Number       int32
	Quantity     int32
	DueDate      int32
	LatePenalty  int64
	EarlyPenalty int64
}

const insertOrder = `
INSERT INTO orders (piece_id, client_id, number, quantity, due_date, late_pen, early_pen, announced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
RETURNING id`

// InsertOrder creates an order and returns its id.
func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertOrder,
		arg.PieceID, arg.ClientID, arg.Number, arg.Quantity, arg.DueDate, arg.LatePenalty, arg.EarlyPenalty,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

const upsertPiece = `
INSERT INTO pieces (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

// UpsertPiece returns the id of the named piece, creating it if needed.
func (q *Queries) UpsertPiece(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := q.db.QueryRow(ctx, upsertPiece, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert piece %q: %w", name, err)
	}
	return id, nil
}

// InsertTransformationParams are the columns of a new edge.
type InsertTransformationParams struct {
	FromPiece int64
	ToPiece   int64
	Tool      domain.Tool
	Quantity  int32
	Cost      int64
}

const insertTransformation = `
INSERT INTO transformations (from_piece, to_piece, tool, quantity, cost)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (from_piece, to_piece, tool) DO NOTHING`

// InsertTransformation creates an edge; an existing (from, to, tool) edge is
// left untouched. It returns the number of rows inserted.
func (q *Queries) InsertTransformation(ctx context.Context, arg InsertTransformationParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertTransformation, arg.FromPiece, arg.ToPiece, string(arg.Tool), arg.Quantity, arg.Cost)
	if err != nil {
		return 0, fmt.Errorf("insert transformation %d->%d: %w", arg.FromPiece, arg.ToPiece, err)
	}
	return tag.RowsAffected(), nil
}
