package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h float64) time.Time { return t0.Add(time.Duration(h * float64(time.Hour))) }

func TestMergeUnionOfTimestamps(t *testing.T) {
	a := []Point{{at(0), 1}, {at(2), 3}}
	b := []Point{{at(1), 10}}

	merged := Merge(a, b)
	require.Len(t, merged, 3)
	assert.InDelta(t, 11.0, merged[0].Value, 1e-12)
	assert.InDelta(t, 12.0, merged[1].Value, 1e-12)
	assert.InDelta(t, 13.0, merged[2].Value, 1e-12)
}

func TestMergeSkipsEmpty(t *testing.T) {
	a := []Point{{at(0), 1}}
	assert.Equal(t, a, Merge(a, nil))
	assert.Empty(t, Merge())
}

func TestCycleNeverShrinks(t *testing.T) {
	pattern := []Point{{at(0), 1}, {at(6), 2}, {at(12), 3}, {at(18), 4}}

	short := Cycle(pattern, 24*time.Hour, at(1))
	assert.Len(t, short, len(pattern))

	long := Cycle(pattern, 24*time.Hour, at(47))
	require.Greater(t, len(long), len(pattern))
	last := long[len(long)-1]
	assert.Equal(t, at(48), last.Time)
	assert.Equal(t, 1.0, last.Value)
	for i := 1; i < len(long); i++ {
		assert.True(t, long[i].Time.After(long[i-1].Time))
	}
	assert.Equal(t, 1.0, long[4].Value)
	assert.Equal(t, at(24), long[4].Time)
}

func TestResampleTimeWeightedAverage(t *testing.T) {
	points := []Point{{at(0), 0}, {at(2), 2}}
	g, _ := Uniform(t0, time.Hour, 3)

	s, err := Resample(points, g)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.At(0), 1e-12)
	assert.InDelta(t, 1.5, s.At(1), 1e-12)
	// past the last sample the value holds
	assert.InDelta(t, 2.0, s.At(2), 1e-12)
}

func TestResampleStepInsidePeriod(t *testing.T) {
	points := []Point{{at(0), 0}, {at(0.5), 0}, {at(0.5), 4}, {at(1), 4}}
	g, _ := Uniform(t0, time.Hour, 1)

	s, err := Resample(points, g)
	require.NoError(t, err)
	// duplicate timestamp keeps the later sample, so the ramp is 0 -> 4 over the first half
	assert.InDelta(t, 3.0, s.At(0), 1e-12)
}

func TestResampleNoData(t *testing.T) {
	g, _ := Uniform(t0, time.Hour, 1)
	_, err := Resample(nil, g)
	assert.ErrorIs(t, err, ErrNoData)
}
