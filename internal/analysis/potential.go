// Package analysis scores pricing nodes by how much storage could earn from
// their price swings.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"energy-network/internal/data"
	"energy-network/internal/element"
	"energy-network/internal/lp"
	"energy-network/internal/network"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"
)

// Potential is a node-level summary you can use for ranking. It does not
// depend on a specific battery size: it has raw price stats and the value a
// canonical battery captures.
type Potential struct {
	Location string    `json:"location"`
	Market   string    `json:"market,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Periods  int       `json:"periods"`

	// Prices in $/kWh, time-weighted for Mean.
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	P05    float64 `json:"p05"`
	P95    float64 `json:"p95"`
	Spread float64 `json:"spread_p95_p05"`

	// ArbitrageValue is the profit in $ of a lossless 1 kW / 1 kWh battery
	// with perfect foresight that starts half full and must end at least
	// half full.
	ArbitrageValue float64 `json:"arbitrage_value"`
}

// Compute summarises prices and solves the canonical battery against them.
func Compute(location string, prices timeseries.Series) (Potential, error) {
	grid := prices.Grid()
	p := Potential{
		Location: location,
		Start:    grid.Start,
		End:      grid.End(),
		Periods:  prices.Len(),
	}
	if prices.Len() == 0 {
		return p, timeseries.ErrNoData
	}

	vals := prices.Values()
	sort.Float64s(vals)
	p.Min = vals[0]
	p.Max = vals[len(vals)-1]
	p.Mean = prices.Integral() / grid.Total().Hours()
	p.P05 = percentileSorted(vals, 0.05)
	p.P95 = percentileSorted(vals, 0.95)
	p.Spread = p.P95 - p.P05

	value, err := arbitrageValue(prices)
	if err != nil {
		return p, fmt.Errorf("%s: %w", location, err)
	}
	p.ArbitrageValue = value
	return p, nil
}

func percentileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// arbitrageValue trades a canonical battery against the market at prices,
// buying and selling at the same price.
func arbitrageValue(prices timeseries.Series) (float64, error) {
	const initial = 0.5
	grid := prices.Grid()
	endMin := make([]float64, grid.Len())
	endMin[len(endMin)-1] = initial

	var n network.Network
	n.Add(
		element.Grid("market"),
		element.Storage{
			Name:     "battery",
			Capacity: timeseries.Scalar(1),
			Initial:  initial,
			Min:      timeseries.Values(endMin...),
		},
	)
	n.Connect("trade", "market", "battery",
		segment.PowerLimit{MaxForward: timeseries.Scalar(1), MaxReverse: timeseries.Scalar(1)},
		segment.Pricing{
			Forward: timeseries.FromSeries(prices),
			Reverse: timeseries.FromSeries(prices.Scale(-1)),
		},
	)
	res, err := network.Optimize(n, grid, lp.Options{})
	if err != nil {
		return 0, err
	}
	if res.Status != lp.StatusOptimal {
		return 0, fmt.Errorf("canonical battery: %s: %s", res.Status, res.Error)
	}
	return -res.Objective, nil
}

// SeriesFromIntervals lays LMP intervals onto a uniform grid with the first
// interval's length, spanning the first start to the last end.
func SeriesFromIntervals(intervals []data.LMPInterval) (timeseries.Series, error) {
	if len(intervals) == 0 {
		return timeseries.Series{}, timeseries.ErrNoData
	}
	sorted := make([]data.LMPInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start().Before(sorted[j].Start()) })

	step := sorted[0].Duration()
	if step <= 0 {
		return timeseries.Series{}, errors.New("analysis: interval has no duration")
	}
	start, end := sorted[0].Start(), sorted[len(sorted)-1].End()
	count := int(end.Sub(start) / step)
	if count < 1 {
		count = 1
	}
	grid, err := timeseries.Uniform(start, step, count)
	if err != nil {
		return timeseries.Series{}, err
	}
	return timeseries.Resample(data.PricePoints(sorted), grid)
}
