// Package domain provides the manufacturing domain models shared by the
// resolver, intake and seed binaries.
package domain

import "fmt"

// Tool identifies the machine tool a transformation runs on.
type Tool string

const (
	ToolT1      Tool = "T1"
	ToolT2      Tool = "T2"
	ToolT3      Tool = "T3"
	ToolT4      Tool = "T4"
	ToolT5      Tool = "T5"
	ToolT6      Tool = "T6"
	ToolInvalid Tool = "INVALID"
)

// ParseTool maps a stored tool name onto a Tool. Unknown names yield ToolInvalid.
func ParseTool(s string) Tool {
	switch t := Tool(s); t {
	case ToolT1, ToolT2, ToolT3, ToolT4, ToolT5, ToolT6:
		return t
	default:
		return ToolInvalid
	}
}

// Valid reports whether t is one of the known tools.
func (t Tool) Valid() bool {
	return ParseTool(string(t)) != ToolInvalid
}

// Transformation is a directed production edge: consuming Quantity units of
// FromPiece with Tool yields one unit of ToPiece at Cost (minor currency units).
type Transformation struct {
	ID        int64 `json:"id"`
	FromPiece int64 `json:"from_piece"`
	ToPiece   int64 `json:"to_piece"`
	Tool      Tool  `json:"tool"`
	Quantity  int32 `json:"quantity"`
	Cost      int64 `json:"cost"`
}

func (t Transformation) String() string {
	return fmt.Sprintf("#%d(%d->%d %s x%d $%d)", t.ID, t.FromPiece, t.ToPiece, t.Tool, t.Quantity, t.Cost)
}

// Recipe is the unordered set of transformations reachable backward from a
// target piece down to its raw materials.
type Recipe []Transformation

// Chain is an ordered sequence of transformations chosen to produce a piece.
type Chain []Transformation

// Cost is the summed cost of every step in the chain.
func (c Chain) Cost() int64 {
	var total int64
	for _, t := range c {
		total += t.Cost
	}
	return total
}

// Reversed returns the chain in the opposite order without touching c.
func (c Chain) Reversed() Chain {
	out := make(Chain, len(c))
	for i, t := range c {
		out[len(c)-1-i] = t
	}
	return out
}
