package delta

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/holdiq/holdiq/internal/modules/holdings"
)

// Aggregate computes portfolio-level statistics for one current-period
// snapshot: total value, position count, top-10 concentration and the
// 1-based rank of every security by market value. Ties rank by CUSIP so
// recomputation is deterministic. Pure function over loaded data.
func Aggregate(snapshot map[string]holdings.Position) PortfolioStats {
	positions := make([]holdings.Position, 0, len(snapshot))
	for _, pos := range snapshot {
		positions = append(positions, pos)
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].ValueUSD != positions[j].ValueUSD {
			return positions[i].ValueUSD > positions[j].ValueUSD
		}
		return positions[i].CUSIP < positions[j].CUSIP
	})

	values := make([]float64, len(positions))
	weights := make([]float64, len(positions))
	for i, pos := range positions {
		values[i] = pos.ValueUSD
		weights[i] = pos.WeightPct
	}

	topN := 10
	if len(weights) < topN {
		topN = len(weights)
	}

	stats := PortfolioStats{
		TotalValueUSD:         floats.Sum(values),
		PositionCount:         len(positions),
		Top10ConcentrationPct: floats.Sum(weights[:topN]),
		Ranks:                 make(map[string]int, len(positions)),
	}

	for i, pos := range positions {
		stats.Ranks[pos.CUSIP] = i + 1
	}

	return stats
}
