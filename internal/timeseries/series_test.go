package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestNewGridRejectsNonPositive(t *testing.T) {
	_, err := NewGrid(t0, nil)
	assert.ErrorIs(t, err, ErrEmptyGrid)

	_, err = NewGrid(t0, []time.Duration{time.Minute, 0})
	assert.Error(t, err)
}

func TestGridBoundaries(t *testing.T) {
	g, err := NewGrid(t0, []time.Duration{30 * time.Minute, time.Hour})
	require.NoError(t, err)

	b := g.Boundaries()
	require.Len(t, b, 3)
	assert.Equal(t, t0.Add(30*time.Minute), b[1])
	assert.Equal(t, t0.Add(90*time.Minute), g.End())
	assert.Equal(t, []float64{0.5, 1}, g.Hours())
}

func TestSeriesLengthChecked(t *testing.T) {
	g, _ := Uniform(t0, time.Hour, 3)
	_, err := New(g, []float64{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSeriesImmutable(t *testing.T) {
	g, _ := Uniform(t0, time.Hour, 3)
	in := []float64{1, 2, 3}
	s, err := New(g, in)
	require.NoError(t, err)

	in[0] = 100
	assert.Equal(t, 1.0, s.At(0))

	scaled := s.Scale(2)
	assert.Equal(t, 1.0, s.At(0))
	assert.Equal(t, 2.0, scaled.At(0))

	vals := s.Values()
	vals[1] = -1
	assert.Equal(t, 2.0, s.At(1))
}

func TestSeriesIntegral(t *testing.T) {
	g, _ := NewGrid(t0, []time.Duration{30 * time.Minute, time.Hour})
	s, _ := New(g, []float64{2, 3})
	assert.InDelta(t, 4.0, s.Integral(), 1e-12)
	assert.Equal(t, 2.0, s.Min())
	assert.Equal(t, 3.0, s.Max())
}

func TestSumRequiresSameGrid(t *testing.T) {
	g1, _ := Uniform(t0, time.Hour, 2)
	g2, _ := Uniform(t0, time.Hour, 3)
	a := Broadcast(g1, 1)
	b := Broadcast(g1, 2)

	sum, err := Sum(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3}, sum.Values())

	_, err = Sum(a, Broadcast(g2, 1))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestParamResolve(t *testing.T) {
	g, _ := Uniform(t0, time.Hour, 3)

	var absent Param
	assert.False(t, absent.IsSet())
	_, err := absent.Resolve(g)
	assert.ErrorIs(t, err, ErrUnset)

	def, err := absent.ResolveOr(g, 7)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7, 7}, def.Values())

	s, err := Scalar(2).Resolve(g)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, s.Values())

	s, err = Values(1, 2, 3).Resolve(g)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, s.Values())

	_, err = Values(1, 2).Resolve(g)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	assert.True(t, absent.Or(Scalar(1)).IsScalar())
}
