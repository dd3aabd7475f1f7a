package resolver

import "shopfloor.io/mes/internal/domain"

// Index maps a piece to the transformations that produce it. A piece with no
// key is a recipe root.
type Index map[int64][]domain.Transformation

// IndexByDestination groups recipe by ToPiece, keeping recipe order within
// each group.
func IndexByDestination(recipe domain.Recipe) Index {
	index := make(Index)
	for _, t := range recipe {
		index[t.ToPiece] = append(index[t.ToPiece], t)
	}
	return index
}
