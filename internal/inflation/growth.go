package inflation

import (
	"math"
	"strconv"
)

// YearLag is the number of steps between a point and the same month a year
// earlier. Callers must pass monthly series to YoY.
const YearLag = 12

// Ratio is a growth ratio that may be undefined, for example when the base
// value is zero or there is no earlier point.
type Ratio struct {
	Value   float64
	Defined bool
}

// Undefined is the ratio returned when no growth can be computed.
var Undefined = Ratio{}

// Defined wraps a computed value.
func Defined(v float64) Ratio {
	return Ratio{Value: v, Defined: true}
}

// Float returns the value and whether it is defined.
func (r Ratio) Float() (float64, bool) {
	return r.Value, r.Defined
}

// Ptr returns nil for an undefined ratio.
func (r Ratio) Ptr() *float64 {
	if !r.Defined {
		return nil
	}
	v := r.Value
	return &v
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, r.Value, 'g', -1, 64), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Undefined
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*r = Defined(v)
	return nil
}

// PctChange returns (current-previous)/previous, or Undefined when previous
// is zero. A result that is not finite is also reported as Undefined.
func PctChange(current, previous float64) Ratio {
	if previous == 0 {
		return Undefined
	}
	v := (current - previous) / previous
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Defined(v)
}

// MoM is the change from the previous point to point i.
func MoM(s AlignedSeries, i int) Ratio {
	return lagChange(s, i, 1)
}

// YoY is the change from the point YearLag steps back to point i.
func YoY(s AlignedSeries, i int) Ratio {
	return lagChange(s, i, YearLag)
}

// ChangeOver is the change from point i-lag to point i.
func ChangeOver(s AlignedSeries, i, lag int) Ratio {
	return lagChange(s, i, lag)
}

func lagChange(s AlignedSeries, i, lag int) Ratio {
	if lag < 0 || i < lag || i >= len(s.Values) {
		return Undefined
	}
	return PctChange(s.Values[i], s.Values[i-lag])
}
