package resolver

import (
	"context"
	"fmt"

	"shopfloor.io/mes/internal/domain"
)

// TransformationLookup returns one transformation by id.
type TransformationLookup interface {
	GetTransformation(ctx context.Context, id int64) (domain.Transformation, error)
}

// Incompatibility is a BOM step whose tool no configured line can mount.
type Incompatibility struct {
	Entry domain.BOMEntry
	Tool  domain.Tool
}

// CheckCompatibility reports the entries whose transformation needs a tool
// that none of lines offers. With no lines configured nothing is reported.
func CheckCompatibility(ctx context.Context, lookup TransformationLookup, lines []domain.ProductionLine, entries []domain.BOMEntry) ([]Incompatibility, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	tools := make(map[int64]domain.Tool)
	var out []Incompatibility
	for _, e := range entries {
		tool, ok := tools[e.TransformationID]
		if !ok {
			t, err := lookup.GetTransformation(ctx, e.TransformationID)
			if err != nil {
				return nil, fmt.Errorf("load transformation of bom entry %d: %w", e.ID, err)
			}
			tool = t.Tool
			tools[e.TransformationID] = tool
		}
		if !anyLineOffers(lines, tool) {
			out = append(out, Incompatibility{Entry: e, Tool: tool})
		}
	}
	return out, nil
}

func anyLineOffers(lines []domain.ProductionLine, tool domain.Tool) bool {
	for _, l := range lines {
		if l.Offers(tool) {
			return true
		}
	}
	return false
}
