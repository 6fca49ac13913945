// Package timeseries holds the per-period numeric arrays the optimizer consumes.
//
// A Series is immutable: every operation returns a new Series and never writes
// into a buffer it shares with another Series, so a cached forecast can be
// handed to many solves without copying.
package timeseries

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrLengthMismatch is returned when values do not cover the period grid exactly.
var ErrLengthMismatch = errors.New("timeseries: length does not match period grid")

// Series is one value per period of its Grid.
type Series struct {
	grid   Grid
	values []float64
}

// New copies values into a Series on grid.
func New(grid Grid, values []float64) (Series, error) {
	if len(values) != grid.Len() {
		return Series{}, fmt.Errorf("%w: got %d values for %d periods", ErrLengthMismatch, len(values), grid.Len())
	}
	out := make([]float64, len(values))
	copy(out, values)
	return Series{grid: grid, values: out}, nil
}

// Broadcast repeats v across every period of grid.
func Broadcast(grid Grid, v float64) Series {
	out := make([]float64, grid.Len())
	for i := range out {
		out[i] = v
	}
	return Series{grid: grid, values: out}
}

func (s Series) Len() int { return len(s.values) }

func (s Series) Grid() Grid { return s.grid }

func (s Series) At(i int) float64 { return s.values[i] }

// Values returns a copy of the underlying values.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Scale multiplies every value by k.
func (s Series) Scale(k float64) Series {
	out := s.Values()
	floats.Scale(k, out)
	return Series{grid: s.grid, values: out}
}

// Map applies fn to every value.
func (s Series) Map(fn func(float64) float64) Series {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		out[i] = fn(v)
	}
	return Series{grid: s.grid, values: out}
}

// Integral is the sum of value times period hours, e.g. kWh for a kW series.
func (s Series) Integral() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return floats.Dot(s.values, s.grid.Hours())
}

func (s Series) Min() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return floats.Min(s.values)
}

func (s Series) Max() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return floats.Max(s.values)
}

// Sum adds series element-wise. All inputs must share the same grid.
func Sum(first Series, rest ...Series) (Series, error) {
	out := first.Values()
	for _, s := range rest {
		if !s.grid.Equal(first.grid) {
			return Series{}, fmt.Errorf("%w: cannot sum series built on different grids", ErrLengthMismatch)
		}
		floats.Add(out, s.values)
	}
	return Series{grid: first.grid, values: out}, nil
}
