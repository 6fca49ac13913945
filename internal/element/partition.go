package element

import (
	"fmt"
	"math"
)

// Band is one energy range of a partitioned battery.
type Band struct {
	Name    string
	Lower   float64
	Upper   float64
	Initial float64
}

func (b Band) Capacity() float64 { return b.Upper - b.Lower }

// Partition splits [0, capacity] at the given increasing thresholds and
// distributes initial bottom-up. The band capacities and initial energies sum
// to capacity and initial.
//
// Two thresholds give undercharge, normal and overcharge bands.
func Partition(capacity, initial float64, thresholds []float64) ([]Band, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: partition capacity must be > 0", ErrInvalid)
	}
	if initial < 0 || initial > capacity {
		return nil, fmt.Errorf("%w: initial %g outside [0, %g]", ErrInvalid, initial, capacity)
	}
	prev := 0.0
	for _, th := range thresholds {
		if th <= prev || th >= capacity {
			return nil, fmt.Errorf("%w: thresholds must increase strictly inside (0, %g)", ErrInvalid, capacity)
		}
		prev = th
	}

	names := bandNames(len(thresholds) + 1)
	bands := make([]Band, len(names))
	lower, remaining := 0.0, initial
	for i := range bands {
		upper := capacity
		if i < len(thresholds) {
			upper = thresholds[i]
		}
		take := remaining
		if i < len(bands)-1 {
			take = math.Min(remaining, upper-lower)
		}
		bands[i] = Band{Name: names[i], Lower: lower, Upper: upper, Initial: take}
		remaining -= take
		lower = upper
	}
	return bands, nil
}

func bandNames(n int) []string {
	switch n {
	case 1:
		return []string{"normal"}
	case 2:
		return []string{"lower", "upper"}
	case 3:
		return []string{"undercharge", "normal", "overcharge"}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("band%d", i)
	}
	return names
}
