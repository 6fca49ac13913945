package timeseries

import (
	"errors"
	"fmt"
)

// ErrUnset is returned when resolving a Param that was never given a value.
var ErrUnset = errors.New("timeseries: parameter not set")

// Param is a segment or element parameter: absent, a scalar broadcast to every
// period, or a full per-period array. The zero value is absent.
type Param struct {
	set    bool
	scalar float64
	values []float64
}

// Scalar is a constant parameter.
func Scalar(v float64) Param { return Param{set: true, scalar: v} }

// Values is a per-period parameter. The slice is copied.
func Values(vs ...float64) Param {
	out := make([]float64, len(vs))
	copy(out, vs)
	return Param{set: true, values: out}
}

// FromSeries wraps an existing series. Series are immutable so no copy is made.
func FromSeries(s Series) Param { return Param{set: true, values: s.values} }

func (p Param) IsSet() bool { return p.set }

// IsScalar reports whether the parameter broadcasts a single value.
func (p Param) IsScalar() bool { return p.set && p.values == nil }

// Resolve expands the parameter onto grid.
func (p Param) Resolve(grid Grid) (Series, error) {
	if !p.set {
		return Series{}, ErrUnset
	}
	if p.values == nil {
		return Broadcast(grid, p.scalar), nil
	}
	if len(p.values) != grid.Len() {
		return Series{}, fmt.Errorf("%w: got %d values for %d periods", ErrLengthMismatch, len(p.values), grid.Len())
	}
	return Series{grid: grid, values: p.values}, nil
}

// ResolveOr resolves the parameter, broadcasting def when it is absent.
func (p Param) ResolveOr(grid Grid, def float64) (Series, error) {
	if !p.set {
		return Broadcast(grid, def), nil
	}
	return p.Resolve(grid)
}

// Or returns p when set and fallback otherwise.
func (p Param) Or(fallback Param) Param {
	if p.set {
		return p
	}
	return fallback
}

func (p Param) String() string {
	switch {
	case !p.set:
		return "unset"
	case p.values == nil:
		return fmt.Sprintf("%g", p.scalar)
	default:
		return fmt.Sprintf("series[%d]", len(p.values))
	}
}
