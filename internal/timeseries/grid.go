package timeseries

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyGrid is returned when a grid has no periods.
var ErrEmptyGrid = errors.New("timeseries: grid has no periods")

// Grid is the period layout a Series is built against.
// Period i covers [Boundaries()[i], Boundaries()[i+1]).
type Grid struct {
	Start     time.Time
	Durations []time.Duration
}

// NewGrid copies durations and checks that every period is positive.
func NewGrid(start time.Time, durations []time.Duration) (Grid, error) {
	if len(durations) == 0 {
		return Grid{}, ErrEmptyGrid
	}
	out := make([]time.Duration, len(durations))
	for i, d := range durations {
		if d <= 0 {
			return Grid{}, fmt.Errorf("timeseries: period %d has non-positive duration %s", i, d)
		}
		out[i] = d
	}
	return Grid{Start: start, Durations: out}, nil
}

// Uniform builds a grid of n equal periods.
func Uniform(start time.Time, step time.Duration, n int) (Grid, error) {
	durations := make([]time.Duration, n)
	for i := range durations {
		durations[i] = step
	}
	return NewGrid(start, durations)
}

func (g Grid) Len() int { return len(g.Durations) }

// Hours returns every period length in hours.
func (g Grid) Hours() []float64 {
	out := make([]float64, len(g.Durations))
	for i, d := range g.Durations {
		out[i] = d.Hours()
	}
	return out
}

// Boundaries returns Len()+1 instants, from Start to End.
func (g Grid) Boundaries() []time.Time {
	out := make([]time.Time, 0, len(g.Durations)+1)
	t := g.Start
	out = append(out, t)
	for _, d := range g.Durations {
		t = t.Add(d)
		out = append(out, t)
	}
	return out
}

// Total is the summed duration of all periods.
func (g Grid) Total() time.Duration {
	var total time.Duration
	for _, d := range g.Durations {
		total += d
	}
	return total
}

func (g Grid) End() time.Time { return g.Start.Add(g.Total()) }

// Equal reports whether both grids describe the same periods.
func (g Grid) Equal(o Grid) bool {
	if !g.Start.Equal(o.Start) || len(g.Durations) != len(o.Durations) {
		return false
	}
	for i := range g.Durations {
		if g.Durations[i] != o.Durations[i] {
			return false
		}
	}
	return true
}
