package resolver

import (
	"fmt"
	"math"

	"shopfloor.io/mes/internal/domain"
)

// PathSelector reduces an indexed recipe to one chain, ordered from the
// finished piece back toward the root.
type PathSelector func(start int64, index Index) domain.Chain

// Path selection strategies.
const (
	StrategyGreedy   = "greedy"
	StrategyCheapest = "cheapest"
)

// SelectorFor returns the PathSelector registered under name.
func SelectorFor(name string) (PathSelector, error) {
	switch name {
	case "", StrategyGreedy:
		return SelectPath, nil
	case StrategyCheapest:
		return SelectCheapestPath, nil
	default:
		return nil, fmt.Errorf("unknown path strategy %q", name)
	}
}

// SelectPath walks back from start, taking the cheapest producer of the
// current piece at every hop. Equal costs keep the first candidate in index
// order. The chain ends at the first piece with no producer, so a start piece
// without producers gives an empty chain.
//
// This is a per-node choice; it does not guarantee the cheapest chain overall.
func SelectPath(start int64, index Index) domain.Chain {
	var chain domain.Chain
	current := start
	for {
		candidates, ok := index[current]
		if !ok || len(candidates) == 0 {
			return chain
		}
		picked := candidates[0]
		for _, t := range candidates[1:] {
			if t.Cost < picked.Cost {
				picked = t
			}
		}
		chain = append(chain, picked)
		current = picked.FromPiece
	}
}

// SelectCheapestPath returns the chain with the lowest summed cost from start
// down to any root. Equal totals keep the first candidate in index order.
// Candidates that lead back onto the current path are ignored.
func SelectCheapestPath(start int64, index Index) domain.Chain {
	type best struct {
		cost int64
		edge domain.Transformation
		has  bool
	}
	memo := make(map[int64]best)
	onPath := make(map[int64]bool)

	var solve func(piece int64) int64
	solve = func(piece int64) int64 {
		if b, ok := memo[piece]; ok {
			return b.cost
		}
		candidates := index[piece]
		if len(candidates) == 0 {
			memo[piece] = best{}
			return 0
		}

		onPath[piece] = true
		b := best{cost: math.MaxInt64}
		for _, t := range candidates {
			if onPath[t.FromPiece] {
				continue
			}
			rest := solve(t.FromPiece)
			if rest == math.MaxInt64 {
				continue
			}
			if total := t.Cost + rest; total < b.cost {
				b = best{cost: total, edge: t, has: true}
			}
		}
		onPath[piece] = false

		memo[piece] = b
		return b.cost
	}

	if solve(start) == math.MaxInt64 {
		return nil
	}

	var chain domain.Chain
	for current := start; ; {
		b := memo[current]
		if !b.has {
			return chain
		}
		chain = append(chain, b.edge)
		current = b.edge.FromPiece
	}
}
