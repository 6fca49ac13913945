package data

import (
	"time"

	"energy-network/internal/timeseries"
)

// kWhPerMWh converts market prices quoted per MWh into the per-kWh prices
// the network is priced in.
const kWhPerMWh = 1000.0

// GridStatusLMPResponse matches the JSON shape of a Grid Status location
// query, either live or saved to a file.
//
//	{
//	  "status_code": 200,
//	  "data": [ ... ]
//	}
type GridStatusLMPResponse struct {
	StatusCode int           `json:"status_code"`
	Data       []LMPInterval `json:"data"`
}

// LMPInterval is one interval row of a Grid Status LMP dataset.
type LMPInterval struct {
	IntervalStartLocal time.Time `json:"interval_start_local"`
	IntervalStartUTC   time.Time `json:"interval_start_utc"`
	IntervalEndLocal   time.Time `json:"interval_end_local"`
	IntervalEndUTC     time.Time `json:"interval_end_utc"`

	Market       string `json:"market"`
	Location     string `json:"location"`
	LocationType string `json:"location_type"`

	// Prices in $/MWh.
	LMP        float64 `json:"lmp"`
	Energy     float64 `json:"energy"`
	Congestion float64 `json:"congestion"`
	Loss       float64 `json:"loss"`
	GHG        float64 `json:"ghg"`
}

// Start prefers the UTC field, which is unambiguous around DST changes.
func (i LMPInterval) Start() time.Time {
	if !i.IntervalStartUTC.IsZero() {
		return i.IntervalStartUTC
	}
	return i.IntervalStartLocal
}

func (i LMPInterval) End() time.Time {
	if !i.IntervalEndUTC.IsZero() {
		return i.IntervalEndUTC
	}
	return i.IntervalEndLocal
}

func (i LMPInterval) Duration() time.Duration { return i.End().Sub(i.Start()) }

// PricePoints turns LMP intervals into a $/kWh price forecast. Each interval
// contributes a point at its start and one just before its end, so linear
// interpolation between points keeps the price flat inside an interval.
func PricePoints(intervals []LMPInterval) []timeseries.Point {
	out := make([]timeseries.Point, 0, 2*len(intervals))
	for _, it := range intervals {
		price := it.LMP / kWhPerMWh
		out = append(out, timeseries.Point{Time: it.Start(), Value: price})
		if it.Duration() > time.Nanosecond {
			out = append(out, timeseries.Point{Time: it.End().Add(-time.Nanosecond), Value: price})
		}
	}
	return timeseries.Sorted(out)
}
