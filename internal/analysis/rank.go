package analysis

import (
	"sort"

	"energy-network/internal/data"
)

// RankLocations computes potentials per location and sorts them by
// arbitrage value, highest first. Locations whose prices cannot be laid on a
// grid are skipped and reported in the error map.
func RankLocations(byLocation map[string][]data.LMPInterval) ([]Potential, map[string]error) {
	out := make([]Potential, 0, len(byLocation))
	failed := map[string]error{}
	for location, intervals := range byLocation {
		prices, err := SeriesFromIntervals(intervals)
		if err != nil {
			failed[location] = err
			continue
		}
		p, err := Compute(location, prices)
		if err != nil {
			failed[location] = err
			continue
		}
		p.Market = intervals[0].Market
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArbitrageValue != out[j].ArbitrageValue {
			return out[i].ArbitrageValue > out[j].ArbitrageValue
		}
		return out[i].Location < out[j].Location
	})
	return out, failed
}
