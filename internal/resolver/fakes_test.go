package resolver

import (
	"context"
	"errors"
	"sync"

	"shopfloor.io/mes/internal/domain"
	"shopfloor.io/mes/internal/events"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

// memStore is an in-memory stand-in for repository.Store.
type memStore struct {
	mu sync.Mutex

	orders          map[int64]domain.Order
	transformations []domain.Transformation
	entries         map[int64]domain.BOMEntry
	nextEntryID     int64

	fetchErr   error
	insertErr  error
	attemptErr error

	fetches    int
	bomLookups int
	batches    [][]domain.BOMEntry
	announced  []string
	attempts   map[int64][]string
}

func newMemStore(ts ...domain.Transformation) *memStore {
	return &memStore{
		orders:          make(map[int64]domain.Order),
		transformations: ts,
		entries:         make(map[int64]domain.BOMEntry),
		nextEntryID:     100,
		attempts:        make(map[int64][]string),
	}
}

func (m *memStore) addOrder(o domain.Order) {
	m.orders[o.ID] = o
}

func (m *memStore) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, apperrors.ErrOrderNotFound(id, nil)
	}
	return o, nil
}

func (m *memStore) RecordAttempt(_ context.Context, orderID int64, failureCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attemptErr != nil {
		return m.attemptErr
	}
	m.attempts[orderID] = append(m.attempts[orderID], failureCode)
	return nil
}

func (m *memStore) GetImmediateTransformations(_ context.Context, toPiece int64) ([]domain.Transformation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []domain.Transformation
	for _, t := range m.transformations {
		if t.ToPiece == toPiece {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetTransformation(_ context.Context, id int64) (domain.Transformation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transformations {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Transformation{}, apperrors.ErrTransformationNotFound(id, nil)
}

func (m *memStore) InsertBOMBatch(_ context.Context, entries []domain.BOMEntry) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	ids := make([]int64, 0, len(entries))
	batch := make([]domain.BOMEntry, 0, len(entries))
	for _, e := range entries {
		m.nextEntryID++
		e.ID = m.nextEntryID
		m.entries[e.ID] = e
		ids = append(ids, e.ID)
		batch = append(batch, e)
	}
	m.batches = append(m.batches, batch)
	m.announced = append(m.announced, events.FormatIDs(ids))
	return ids, nil
}

func (m *memStore) GetBOMEntry(_ context.Context, id int64) (domain.BOMEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bomLookups++
	e, ok := m.entries[id]
	if !ok {
		return domain.BOMEntry{}, apperrors.ErrBOMEntryNotFound(id, nil)
	}
	return e, nil
}

// scriptedListener replays notifications, then returns err (or blocks until
// ctx is done when err is nil).
type scriptedListener struct {
	queue []events.Notification
	err   error
}

func (l *scriptedListener) WaitForNotification(ctx context.Context) (events.Notification, error) {
	if len(l.queue) > 0 {
		n := l.queue[0]
		l.queue = l.queue[1:]
		return n, nil
	}
	if l.err != nil {
		return events.Notification{}, l.err
	}
	<-ctx.Done()
	return events.Notification{}, ctx.Err()
}

var errConnLost = errors.New("conn lost")

func tr(id, from, to int64, tool domain.Tool, cost int64) domain.Transformation {
	return domain.Transformation{ID: id, FromPiece: from, ToPiece: to, Tool: tool, Quantity: 1, Cost: cost}
}

// exampleRecipe: 1 -> 2 -> 5 -> 9 with two competing producers of 5.
func exampleRecipe() []domain.Transformation {
	return []domain.Transformation{
		tr(1, 1, 2, domain.ToolT1, 1),
		tr(2, 2, 5, domain.ToolT2, 100),
		tr(3, 2, 5, domain.ToolT3, 50),
		tr(4, 5, 9, domain.ToolT1, 100),
	}
}
