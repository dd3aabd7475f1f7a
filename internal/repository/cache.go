package repository

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"shopfloor.io/mes/internal/domain"
)

// TransformationReader is the read side of the transformation table.
type TransformationReader interface {
	GetImmediateTransformations(ctx context.Context, toPiece int64) ([]domain.Transformation, error)
	GetTransformation(ctx context.Context, id int64) (domain.Transformation, error)
}

// CachedTransformations is a read-through LRU over a TransformationReader.
// The transformation table is never written by the resolver, so entries are
// not invalidated; restart the process after reseeding.
type CachedTransformations struct {
	next      TransformationReader
	byToPiece *lru.Cache[int64, []domain.Transformation]
	byID      *lru.Cache[int64, domain.Transformation]
}

// NewCachedTransformations wraps next with caches holding up to size keys each.
func NewCachedTransformations(next TransformationReader, size int) (*CachedTransformations, error) {
	byToPiece, err := lru.New[int64, []domain.Transformation](size)
	if err != nil {
		return nil, fmt.Errorf("create producer cache: %w", err)
	}
	byID, err := lru.New[int64, domain.Transformation](size)
	if err != nil {
		return nil, fmt.Errorf("create transformation cache: %w", err)
	}
	return &CachedTransformations{next: next, byToPiece: byToPiece, byID: byID}, nil
}

// GetImmediateTransformations returns cached producers of toPiece. Empty
// results are cached too, so a raw material costs one store lookup.
func (c *CachedTransformations) GetImmediateTransformations(ctx context.Context, toPiece int64) ([]domain.Transformation, error) {
	if ts, ok := c.byToPiece.Get(toPiece); ok {
		return cloneTransformations(ts), nil
	}
	ts, err := c.next.GetImmediateTransformations(ctx, toPiece)
	if err != nil {
		return nil, err
	}
	c.byToPiece.Add(toPiece, cloneTransformations(ts))
	for _, t := range ts {
		c.byID.Add(t.ID, t)
	}
	return ts, nil
}

// GetTransformation returns a cached edge by id.
func (c *CachedTransformations) GetTransformation(ctx context.Context, id int64) (domain.Transformation, error) {
	if t, ok := c.byID.Get(id); ok {
		return t, nil
	}
	t, err := c.next.GetTransformation(ctx, id)
	if err != nil {
		return domain.Transformation{}, err
	}
	c.byID.Add(id, t)
	return t, nil
}

// Len reports the number of cached producer lists.
func (c *CachedTransformations) Len() int {
	return c.byToPiece.Len()
}

func cloneTransformations(ts []domain.Transformation) []domain.Transformation {
	if ts == nil {
		return nil
	}
	out := make([]domain.Transformation, len(ts))
	copy(out, ts)
	return out
}
