package timeseries

import (
	"errors"
	"sort"
	"time"
)

// ErrNoData is returned when resampling a forecast with no points.
var ErrNoData = errors.New("timeseries: forecast has no points")

// Point is one (timestamp, value) sample of a forecast.
type Point struct {
	Time  time.Time `json:"time" yaml:"time"`
	Value float64   `json:"value" yaml:"value"`
}

// Sorted returns a copy ordered by time. Later duplicates of a timestamp win.
func Sorted(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for _, p := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(p.Time) {
			dedup[n-1] = p
			continue
		}
		dedup = append(dedup, p)
	}
	return dedup
}

// valueAt interpolates linearly between samples and holds the end values
// outside the covered range. points must be sorted and non-empty.
func valueAt(points []Point, t time.Time) float64 {
	if !t.After(points[0].Time) {
		return points[0].Value
	}
	last := points[len(points)-1]
	if !t.Before(last.Time) {
		return last.Value
	}
	i := sort.Search(len(points), func(i int) bool { return !points[i].Time.Before(t) })
	hi := points[i]
	if hi.Time.Equal(t) {
		return hi.Value
	}
	lo := points[i-1]
	frac := float64(t.Sub(lo.Time)) / float64(hi.Time.Sub(lo.Time))
	return lo.Value + frac*(hi.Value-lo.Value)
}

// Merge sums forecasts. Every input is interpolated onto the union of all
// timestamps, so two offset forecasts combine without dropping samples.
func Merge(forecasts ...[]Point) []Point {
	sorted := make([][]Point, 0, len(forecasts))
	var stamps []time.Time
	for _, f := range forecasts {
		if len(f) == 0 {
			continue
		}
		s := Sorted(f)
		sorted = append(sorted, s)
		for _, p := range s {
			stamps = append(stamps, p.Time)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	var out []Point
	for _, t := range stamps {
		if n := len(out); n > 0 && out[n-1].Time.Equal(t) {
			continue
		}
		var v float64
		for _, s := range sorted {
			v += valueAt(s, t)
		}
		out = append(out, Point{Time: t, Value: v})
	}
	return out
}

// Cycle repeats the forecast with the given natural period until it covers
// until. The original samples are always kept, so the result never has fewer
// points than the input.
func Cycle(points []Point, period time.Duration, until time.Time) []Point {
	out := Sorted(points)
	if len(out) == 0 || period <= 0 {
		return out
	}
	pattern := make([]Point, len(out))
	copy(pattern, out)
	for k := 1; out[len(out)-1].Time.Before(until); k++ {
		shift := time.Duration(k) * period
		for _, p := range pattern {
			t := p.Time.Add(shift)
			if !t.After(out[len(out)-1].Time) {
				continue
			}
			out = append(out, Point{Time: t, Value: p.Value})
			if !t.Before(until) {
				break
			}
		}
	}
	return out
}

// Resample averages the piecewise-linear forecast over every period of grid,
// weighting by time. Values outside the sampled range hold the nearest end.
func Resample(points []Point, grid Grid) (Series, error) {
	if len(points) == 0 {
		return Series{}, ErrNoData
	}
	if grid.Len() == 0 {
		return Series{}, ErrEmptyGrid
	}
	sorted := Sorted(points)
	bounds := grid.Boundaries()
	values := make([]float64, grid.Len())
	for i := range values {
		a, b := bounds[i], bounds[i+1]
		knots := []time.Time{a}
		for _, p := range sorted {
			if p.Time.After(a) && p.Time.Before(b) {
				knots = append(knots, p.Time)
			}
		}
		knots = append(knots, b)

		var area float64
		for k := 0; k+1 < len(knots); k++ {
			h := knots[k+1].Sub(knots[k]).Hours()
			area += 0.5 * h * (valueAt(sorted, knots[k]) + valueAt(sorted, knots[k+1]))
		}
		values[i] = area / b.Sub(a).Hours()
	}
	return Series{grid: grid, values: values}, nil
}
