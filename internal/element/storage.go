package element

import (
	"math"

	"energy-network/internal/lp"
	"energy-network/internal/timeseries"
)

// Storage holds energy between periods. Capacity is in kWh and may vary per
// period. Min and Max bound the stored energy at the end of every period and
// are reported with shadow prices; HardMin and HardMax are plain variable
// bounds and default to [0, Capacity].
type Storage struct {
	Name     string
	Capacity timeseries.Param
	Initial  float64
	Min      timeseries.Param
	Max      timeseries.Param
	HardMin  timeseries.Param
	HardMax  timeseries.Param
}

func (s Storage) ElementName() string { return s.Name }
func (Storage) Kind() Kind            { return KindStorage }
func (Storage) isElement()            {}

// Bounds are a storage's parameters resolved onto one grid.
type Bounds struct {
	Capacity timeseries.Series
	HardMin  timeseries.Series
	HardMax  timeseries.Series
	Min      timeseries.Series
	Max      timeseries.Series
	HasMin   bool
	HasMax   bool
}

// Resolve expands the parameters onto grid and checks their ordering
// HardMin <= Min <= Max <= HardMax <= Capacity in every period.
func (s Storage) Resolve(grid timeseries.Grid) (Bounds, error) {
	var b Bounds
	var err error
	if !s.Capacity.IsSet() {
		return b, invalid(s.Name, "capacity is required")
	}
	if b.Capacity, err = s.Capacity.Resolve(grid); err != nil {
		return b, invalidParam(s.Name, "capacity", err)
	}
	if b.HardMin, err = s.HardMin.ResolveOr(grid, 0); err != nil {
		return b, invalidParam(s.Name, "hard_min", err)
	}
	if b.HardMax, err = s.HardMax.Or(timeseries.FromSeries(b.Capacity)).Resolve(grid); err != nil {
		return b, invalidParam(s.Name, "hard_max", err)
	}
	b.HasMin, b.HasMax = s.Min.IsSet(), s.Max.IsSet()
	if b.Min, err = s.Min.Or(timeseries.FromSeries(b.HardMin)).Resolve(grid); err != nil {
		return b, invalidParam(s.Name, "min", err)
	}
	if b.Max, err = s.Max.Or(timeseries.FromSeries(b.HardMax)).Resolve(grid); err != nil {
		return b, invalidParam(s.Name, "max", err)
	}

	for t := 0; t < grid.Len(); t++ {
		c := b.Capacity.At(t)
		if c <= 0 {
			return b, invalid(s.Name, "capacity must be > 0, got %g in period %d", c, t)
		}
		chain := []float64{b.HardMin.At(t), b.Min.At(t), b.Max.At(t), b.HardMax.At(t), c}
		for i := 1; i < len(chain); i++ {
			if chain[i-1] > chain[i] {
				return b, invalid(s.Name, "bounds out of order in period %d: hard_min %g, min %g, max %g, hard_max %g, capacity %g",
					t, chain[0], chain[1], chain[2], chain[3], chain[4])
			}
		}
	}
	if s.Initial < 0 || s.Initial > b.Capacity.At(0) {
		return b, invalid(s.Name, "initial %g outside [0, %g]", s.Initial, b.Capacity.At(0))
	}
	return b, nil
}

// Energy creates the stored-energy variables, one per period boundary, with
// the initial condition as a tagged constraint. The returned expressions have
// Len()+1 entries.
func (s Storage) Energy(p *lp.Problem, b Bounds) []lp.Expr {
	n := b.Capacity.Len()
	energy := make([]lp.Expr, n+1)
	e0 := p.NewVar(s.key("energy", 0), math.Min(0, s.Initial), math.Inf(1))
	p.AddTagged(s.key("initial", 0), lp.V(e0), lp.Equal, lp.C(s.Initial))
	energy[0] = lp.V(e0)
	for t := 0; t < n; t++ {
		e := p.NewVar(s.key("energy", t+1), b.HardMin.At(t), b.HardMax.At(t))
		energy[t+1] = lp.V(e)
		if b.HasMin {
			p.AddTagged(s.key("energy_min", t), energy[t+1], lp.GreaterEq, lp.C(b.Min.At(t)))
		}
		if b.HasMax {
			p.AddTagged(s.key("energy_max", t), energy[t+1], lp.LessEq, lp.C(b.Max.At(t)))
		}
	}
	return energy
}

// Conserve ties stored energy to net inflow: E(t+1) = E(t) + inflow(t) * hours(t).
func (s Storage) Conserve(p *lp.Problem, energy, netInflow []lp.Expr, hours []float64) {
	for t, in := range netInflow {
		p.AddTagged(s.key("energy_balance", t),
			energy[t+1].Minus(energy[t]).Minus(in.Times(hours[t])), lp.Equal, lp.C(0))
	}
}

func (s Storage) key(quantity string, t int) lp.Key {
	return lp.Key{Entity: s.Name, Quantity: quantity, Period: t}
}
