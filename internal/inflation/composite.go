package inflation

import (
	"slices"

	"gonum.org/v1/gonum/floats"

	"costindex/internal/core"
)

// ComputeWeightedIndex returns the weighted sum of the items' aligned series
// on the calendar of the representative series. Items whose series is not in
// aligned contribute zero. Weights are used as given.
func ComputeWeightedIndex(aligned map[string]AlignedSeries, items []core.BasketItem) AlignedSeries {
	base, ok := representative(aligned, items)
	if !ok {
		return AlignedSeries{Dates: []core.Date{}, Values: []float64{}}
	}

	n := base.Len()
	values := make([]float64, n)
	for _, item := range items {
		s, ok := aligned[item.SeriesID]
		if !ok {
			continue
		}
		m := min(n, len(s.Values))
		floats.AddScaled(values[:m], item.Weight, s.Values[:m])
	}

	return AlignedSeries{
		Dates:  slices.Clone(base.Dates),
		Values: values,
	}
}

// representative picks the series whose calendar drives composition and
// attribution: the first basket item present in aligned, otherwise the
// series with the smallest id.
func representative(aligned map[string]AlignedSeries, items []core.BasketItem) (AlignedSeries, bool) {
	if len(aligned) == 0 {
		return AlignedSeries{}, false
	}
	for _, item := range items {
		if s, ok := aligned[item.SeriesID]; ok {
			return s, true
		}
	}
	ids := make([]string, 0, len(aligned))
	for id := range aligned {
		ids = append(ids, id)
	}
	return aligned[slices.Min(ids)], true
}
