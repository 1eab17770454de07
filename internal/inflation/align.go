// Package inflation computes a personal price index from weighted price
// sub-series: it aligns irregular series onto one calendar, derives growth
// ratios, composes a weighted index and attributes its change to categories.
//
// Every function in the package is pure and safe for concurrent use.
package inflation

import (
	"slices"

	"costindex/internal/core"
)

type (
	// RawSeries maps a series id to its observations. Observations may be
	// unsorted and may repeat a date.
	RawSeries map[string][]core.Point

	// AlignedSeries holds strictly ascending dates and a parallel slice of
	// values of the same length.
	AlignedSeries struct {
		Dates  []core.Date
		Values []float64
	}
)

// Len returns the number of aligned points.
func (s AlignedSeries) Len() int {
	return len(s.Dates)
}

// Points converts the series back into observations.
func (s AlignedSeries) Points() []core.Point {
	out := make([]core.Point, len(s.Dates))
	for i := range s.Dates {
		out[i] = core.Point{Date: s.Dates[i], Value: s.Values[i]}
	}
	return out
}

// AlignSeries places every series on the sorted union of all observation
// dates. Gaps are forward-filled and dates before a series' first
// observation take that first observed value. Repeated dates keep the last
// occurrence in input order. Series without observations are omitted.
func AlignSeries(raw RawSeries) map[string]AlignedSeries {
	calendar := buildCalendar(raw)
	out := make(map[string]AlignedSeries, len(raw))

	for id, points := range raw {
		if len(points) == 0 {
			continue
		}
		byDate, first := indexObservations(points)
		values := make([]float64, len(calendar))
		last := first
		for i, d := range calendar {
			if v, ok := byDate[d]; ok {
				last = v
			}
			values[i] = last
		}
		out[id] = AlignedSeries{
			Dates:  slices.Clone(calendar),
			Values: values,
		}
	}
	return out
}

func buildCalendar(raw RawSeries) []core.Date {
	seen := make(map[core.Date]struct{})
	for _, points := range raw {
		for _, p := range points {
			seen[p.Date.Normalize()] = struct{}{}
		}
	}
	calendar := make([]core.Date, 0, len(seen))
	for d := range seen {
		calendar = append(calendar, d)
	}
	slices.SortFunc(calendar, core.Date.Compare)
	return calendar
}

// indexObservations returns the last value seen per date and the value at
// the earliest date, which seeds the forward fill.
func indexObservations(points []core.Point) (map[core.Date]float64, float64) {
	byDate := make(map[core.Date]float64, len(points))
	var earliest core.Date
	for i, p := range points {
		d := p.Date.Normalize()
		byDate[d] = p.Value
		if i == 0 || d.Compare(earliest) < 0 {
			earliest = d
		}
	}
	return byDate, byDate[earliest]
}
