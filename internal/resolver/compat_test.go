package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor.io/mes/internal/domain"
)

func defaultLine() domain.ProductionLine {
	tools := []domain.Tool{domain.ToolT1, domain.ToolT2, domain.ToolT3}
	return domain.ProductionLine{
		ID:             1,
		ToolChangeTime: 30,
		Machines:       []domain.Machine{{Tools: tools}, {Tools: tools}},
	}
}

func TestCheckCompatibility(t *testing.T) {
	store := newMemStore(
		tr(1, 1, 2, domain.ToolT1, 1),
		tr(2, 2, 3, domain.ToolT5, 1),
	)
	entries := []domain.BOMEntry{
		{ID: 10, TransformationID: 1, StepNumber: 1},
		{ID: 11, TransformationID: 2, StepNumber: 2},
		{ID: 12, TransformationID: 2, StepNumber: 2, PieceNumber: 2},
	}

	got, err := CheckCompatibility(context.Background(), store, []domain.ProductionLine{defaultLine()}, entries)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(11), got[0].Entry.ID)
	assert.Equal(t, domain.ToolT5, got[0].Tool)
	assert.Equal(t, int64(12), got[1].Entry.ID)
}

func TestCheckCompatibility_NoLines(t *testing.T) {
	got, err := CheckCompatibility(context.Background(), newMemStore(), nil, []domain.BOMEntry{{ID: 1, TransformationID: 99}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheckCompatibility_UnknownTransformation(t *testing.T) {
	_, err := CheckCompatibility(context.Background(), newMemStore(), []domain.ProductionLine{defaultLine()},
		[]domain.BOMEntry{{ID: 1, TransformationID: 99}})
	assert.Error(t, err)
}
