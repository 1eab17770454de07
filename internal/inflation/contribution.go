package inflation

import (
	"cmp"
	"math"
	"slices"

	"costindex/internal/core"
)

// Contribution is a category's weighted share of growth over a window.
type Contribution struct {
	Category string  `json:"category"`
	Value    float64 `json:"contribution"`
}

// ComputeCategoryContributions attributes growth over the last lookback
// steps to basket categories. Each item contributes weight times its own
// growth; items sharing a category are summed. Items with undefined growth
// or a missing series are left out. The result is ordered by descending
// absolute value, ties keeping the order in which categories first appear.
//
// An empty slice is returned when the representative series has fewer than
// lookback+1 points.
func ComputeCategoryContributions(aligned map[string]AlignedSeries, items []core.BasketItem, lookback int) []Contribution {
	out := []Contribution{}
	base, ok := representative(aligned, items)
	if !ok || lookback < 0 || base.Len() < lookback+1 {
		return out
	}
	last := base.Len() - 1

	index := make(map[string]int)
	for _, item := range items {
		s, ok := aligned[item.SeriesID]
		if !ok {
			continue
		}
		growth := ChangeOver(s, last, lookback)
		if !growth.Defined {
			continue
		}
		v := item.Weight * growth.Value
		if i, seen := index[item.Category]; seen {
			out[i].Value += v
			continue
		}
		index[item.Category] = len(out)
		out = append(out, Contribution{Category: item.Category, Value: v})
	}

	slices.SortStableFunc(out, func(a, b Contribution) int {
		return cmp.Compare(math.Abs(b.Value), math.Abs(a.Value))
	})
	return out
}

// TopContributions returns at most k leading contributions.
func TopContributions(cs []Contribution, k int) []Contribution {
	if k < 0 || len(cs) <= k {
		return cs
	}
	return cs[:k]
}
