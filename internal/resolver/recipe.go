package resolver

import (
	"context"
	"fmt"

	"shopfloor.io/mes/internal/domain"
	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

// RecipeSource returns the transformations that directly produce a piece.
type RecipeSource interface {
	GetImmediateTransformations(ctx context.Context, toPiece int64) ([]domain.Transformation, error)
}

// BuildRecipe walks the transformation table from finalPieceID back toward raw
// material, one generation of producers at a time, and stops at the first
// generation that yields no edges. Every piece is expanded once and every edge
// kept once. A fetch error aborts the walk; a recipe that loops back on a
// piece fails with CYCLIC_RECIPE.
func BuildRecipe(ctx context.Context, src RecipeSource, finalPieceID int64) (domain.Recipe, error) {
	var recipe domain.Recipe
	frontier := []int64{finalPieceID}
	expanded := make(map[int64]bool)
	kept := make(map[int64]bool)

	for {
		var generation []domain.Transformation
		for _, piece := range frontier {
			if expanded[piece] {
				continue
			}
			expanded[piece] = true

			ts, err := src.GetImmediateTransformations(ctx, piece)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeRecipeFetchFailed,
					fmt.Sprintf("fetch producers of piece %d", piece)).
					WithParams(map[string]interface{}{"piece_id": piece, "final_piece_id": finalPieceID})
			}
			generation = append(generation, ts...)
		}
		if len(generation) == 0 {
			break
		}

		next := make([]int64, 0, len(generation))
		queued := make(map[int64]bool, len(generation))
		for _, t := range generation {
			if kept[t.ID] {
				continue
			}
			kept[t.ID] = true
			recipe = append(recipe, t)

			if !queued[t.FromPiece] {
				queued[t.FromPiece] = true
				next = append(next, t.FromPiece)
			}
		}
		frontier = next
	}

	if hasCycle(finalPieceID, IndexByDestination(recipe)) {
		return nil, apperrors.ErrCyclicRecipef(finalPieceID)
	}
	return recipe, nil
}

// hasCycle reports whether a piece reachable backward from start is its own
// ancestor.
func hasCycle(start int64, index Index) bool {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[int64]int)

	var visit func(piece int64) bool
	visit = func(piece int64) bool {
		switch state[piece] {
		case onPath:
			return true
		case done:
			return false
		}
		state[piece] = onPath
		for _, t := range index[piece] {
			if visit(t.FromPiece) {
				return true
			}
		}
		state[piece] = done
		return false
	}
	return visit(start)
}
