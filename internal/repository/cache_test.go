package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor.io/mes/internal/domain"
)

type countingReader struct {
	producers map[int64][]domain.Transformation
	byID      map[int64]domain.Transformation
	err       error

	producerCalls int
	idCalls       int
}

func (r *countingReader) GetImmediateTransformations(_ context.Context, toPiece int64) ([]domain.Transformation, error) {
	r.producerCalls++
	if r.err != nil {
		return nil, r.err
	}
	return r.producers[toPiece], nil
}

func (r *countingReader) GetTransformation(_ context.Context, id int64) (domain.Transformation, error) {
	r.idCalls++
	if r.err != nil {
		return domain.Transformation{}, r.err
	}
	return r.byID[id], nil
}

func TestCachedTransformations_ReadThrough(t *testing.T) {
	edge := domain.Transformation{ID: 7, FromPiece: 2, ToPiece: 5, Tool: domain.ToolT2, Quantity: 1, Cost: 50}
	next := &countingReader{
		producers: map[int64][]domain.Transformation{5: {edge}},
		byID:      map[int64]domain.Transformation{7: edge},
	}
	c, err := NewCachedTransformations(next, 8)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := c.GetImmediateTransformations(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, []domain.Transformation{edge}, got)
	}
	assert.Equal(t, 1, next.producerCalls)

	for i := 0; i < 2; i++ {
		got, err := c.GetTransformation(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, edge, got)
	}
	assert.Equal(t, 1, next.idCalls)
}

func TestCachedTransformations_CachesRawMaterial(t *testing.T) {
	next := &countingReader{}
	c, err := NewCachedTransformations(next, 8)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := c.GetImmediateTransformations(context.Background(), 1)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 1, next.producerCalls)
}

func TestCachedTransformations_CallerCannotCorruptCache(t *testing.T) {
	edge := domain.Transformation{ID: 1, FromPiece: 1, ToPiece: 2, Cost: 1}
	next := &countingReader{producers: map[int64][]domain.Transformation{2: {edge}}}
	c, err := NewCachedTransformations(next, 8)
	require.NoError(t, err)

	got, err := c.GetImmediateTransformations(context.Background(), 2)
	require.NoError(t, err)
	got[0].Cost = 999

	again, err := c.GetImmediateTransformations(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again[0].Cost)
}

func TestCachedTransformations_ErrorsAreNotCached(t *testing.T) {
	next := &countingReader{err: errors.New("connection reset")}
	c, err := NewCachedTransformations(next, 8)
	require.NoError(t, err)

	_, err = c.GetImmediateTransformations(context.Background(), 3)
	require.Error(t, err)
	_, err = c.GetImmediateTransformations(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, 2, next.producerCalls)
	assert.Zero(t, c.Len())
}

func TestNewCachedTransformations_RejectsZeroSize(t *testing.T) {
	_, err := NewCachedTransformations(&countingReader{}, 0)
	require.Error(t, err)
}
