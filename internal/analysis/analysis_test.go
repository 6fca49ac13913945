package analysis

import (
	"testing"
	"time"

	"energy-network/internal/data"
	"energy-network/internal/timeseries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func hourly(location string, lmps ...float64) []data.LMPInterval {
	out := make([]data.LMPInterval, len(lmps))
	for i, lmp := range lmps {
		start := t0.Add(time.Duration(i) * time.Hour)
		out[i] = data.LMPInterval{
			IntervalStartUTC: start,
			IntervalEndUTC:   start.Add(time.Hour),
			Market:           "CAISO",
			Location:         location,
			LMP:              lmp,
		}
	}
	return out
}

func TestComputeCapturesSpread(t *testing.T) {
	grid, err := timeseries.Uniform(t0, time.Hour, 4)
	require.NoError(t, err)
	prices, err := timeseries.New(grid, []float64{0.1, 0.1, 0.5, 0.5})
	require.NoError(t, err)

	p, err := Compute("NODE", prices)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Periods)
	assert.InDelta(t, 0.1, p.Min, tol)
	assert.InDelta(t, 0.5, p.Max, tol)
	assert.InDelta(t, 0.3, p.Mean, tol)
	// Half a kWh bought at 0.1 and sold at 0.5; the battery must end where
	// it started.
	assert.InDelta(t, 0.2, p.ArbitrageValue, tol)
}

func TestComputeFlatPricesEarnNothing(t *testing.T) {
	grid, err := timeseries.Uniform(t0, 30*time.Minute, 6)
	require.NoError(t, err)
	p, err := Compute("FLAT", timeseries.Broadcast(grid, 0.2))
	require.NoError(t, err)
	assert.InDelta(t, 0, p.ArbitrageValue, tol)
	assert.InDelta(t, 0, p.Spread, tol)
}

func TestPercentileInterpolates(t *testing.T) {
	vals := []float64{0, 10, 20, 30, 40}
	assert.Equal(t, 0.0, percentileSorted(vals, 0))
	assert.Equal(t, 40.0, percentileSorted(vals, 1))
	assert.InDelta(t, 2, percentileSorted(vals, 0.05), 1e-12)
	assert.InDelta(t, 20, percentileSorted(vals, 0.5), 1e-12)
}

func TestSeriesFromIntervals(t *testing.T) {
	intervals := hourly("NODE", 40, 60, 80)
	intervals[0], intervals[2] = intervals[2], intervals[0]

	s, err := SeriesFromIntervals(intervals)
	require.NoError(t, err)
	assert.True(t, s.Grid().Start.Equal(t0))
	assert.InDeltaSlice(t, []float64{0.04, 0.06, 0.08}, s.Values(), 1e-9)

	_, err = SeriesFromIntervals(nil)
	assert.ErrorIs(t, err, timeseries.ErrNoData)
}

func TestRankLocations(t *testing.T) {
	ranked, failed := RankLocations(map[string][]data.LMPInterval{
		"FLAT":   hourly("FLAT", 50, 50, 50, 50),
		"SWINGY": hourly("SWINGY", 10, 10, 200, 200),
		"MILD":   hourly("MILD", 40, 40, 60, 60),
		"EMPTY":  nil,
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"SWINGY", "MILD", "FLAT"},
		[]string{ranked[0].Location, ranked[1].Location, ranked[2].Location})
	assert.Equal(t, "CAISO", ranked[0].Market)
	assert.InDelta(t, 0.5*(0.2-0.01), ranked[0].ArbitrageValue, tol)
	assert.Contains(t, failed, "EMPTY")
}
