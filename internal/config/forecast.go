package config

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"energy-network/internal/data"
	"energy-network/internal/timeseries"
)

// ForecastConfig defines one named forecast. Exactly one source is set:
// a constant, inline points, a file (JSON points or a saved Grid Status
// response), a live Grid Status query, or the sum of other forecasts.
type ForecastConfig struct {
	Constant   *float64           `yaml:"constant,omitempty" json:"constant,omitempty"`
	Points     []timeseries.Point `yaml:"points,omitempty" json:"points,omitempty"`
	File       string             `yaml:"file,omitempty" json:"file,omitempty"`
	Location   string             `yaml:"location,omitempty" json:"location,omitempty"`
	GridStatus *GridStatusSource  `yaml:"gridstatus,omitempty" json:"gridstatus,omitempty"`
	Merge      []string           `yaml:"merge,omitempty" json:"merge,omitempty"`

	// Cycle repeats the forecast with this period until the horizon end.
	Cycle Duration `yaml:"cycle,omitempty" json:"cycle,omitempty" validate:"gte=0"`
	// Scale multiplies every value; unset means 1.
	Scale *float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// GridStatusSource queries LMP prices for one location.
type GridStatusSource struct {
	Dataset  string `yaml:"dataset" json:"dataset" validate:"required"`
	Location string `yaml:"location" json:"location" validate:"required"`
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

func (f ForecastConfig) validate(name string, all map[string]ForecastConfig) error {
	sources := 0
	for _, set := range []bool{f.Constant != nil, f.Points != nil, f.File != "", f.GridStatus != nil, f.Merge != nil} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("forecast %s: want exactly one of constant, points, file, gridstatus or merge; got %d", name, sources)
	}
	if f.Points != nil && len(f.Points) == 0 {
		return fmt.Errorf("forecast %s: %w", name, timeseries.ErrNoData)
	}
	for _, ref := range f.Merge {
		if _, ok := all[ref]; !ok {
			return fmt.Errorf("forecast %s: %w: %q", name, ErrUnknownForecast, ref)
		}
	}
	return nil
}

// PriceSource fetches live price forecasts; *data.GridStatusClient is one.
type PriceSource interface {
	PriceForecast(ctx context.Context, params data.QueryLocationParams) ([]timeseries.Point, error)
}

var (
	// ErrForecastCycle is returned when forecasts merge each other in a loop.
	ErrForecastCycle = errors.New("config: forecast merge cycle")
	// ErrNoPriceSource is returned for a gridstatus forecast when no live
	// price source is available.
	ErrNoPriceSource = errors.New("config: no live price source configured")
)

// ResolveForecasts resolves every configured forecast onto grid. prices may be nil
// when no forecast uses a live source.
func (c *Config) ResolveForecasts(ctx context.Context, grid timeseries.Grid, prices PriceSource) (map[string]timeseries.Series, error) {
	r := &forecastResolver{
		cfg:      c,
		grid:     grid,
		prices:   prices,
		done:     make(map[string][]timeseries.Point),
		visiting: make(map[string]bool),
	}
	names := make([]string, 0, len(c.Forecasts))
	for name := range c.Forecasts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]timeseries.Series, len(names))
	for _, name := range names {
		points, err := r.points(ctx, name)
		if err != nil {
			return nil, err
		}
		series, err := timeseries.Resample(points, grid)
		if err != nil {
			return nil, fmt.Errorf("forecast %s: %w", name, err)
		}
		out[name] = series
	}
	return out, nil
}

type forecastResolver struct {
	cfg      *Config
	grid     timeseries.Grid
	prices   PriceSource
	done     map[string][]timeseries.Point
	visiting map[string]bool
}

func (r *forecastResolver) points(ctx context.Context, name string) ([]timeseries.Point, error) {
	if pts, ok := r.done[name]; ok {
		return pts, nil
	}
	f, ok := r.cfg.Forecasts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownForecast, name)
	}
	if r.visiting[name] {
		return nil, fmt.Errorf("%w at %q", ErrForecastCycle, name)
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	pts, err := r.source(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", name, err)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("forecast %s: %w", name, timeseries.ErrNoData)
	}
	if f.Cycle > 0 {
		pts = timeseries.Cycle(pts, f.Cycle.Std(), r.grid.End())
	}
	if f.Scale != nil {
		k := *f.Scale
		scaled := make([]timeseries.Point, len(pts))
		for i, p := range pts {
			scaled[i] = timeseries.Point{Time: p.Time, Value: k * p.Value}
		}
		pts = scaled
	}
	r.done[name] = pts
	return pts, nil
}

func (r *forecastResolver) source(ctx context.Context, f ForecastConfig) ([]timeseries.Point, error) {
	switch {
	case f.Constant != nil:
		return []timeseries.Point{{Time: r.grid.Start, Value: *f.Constant}}, nil
	case f.Points != nil:
		return timeseries.Sorted(f.Points), nil
	case f.File != "":
		return data.LoadForecast(r.cfg.path(f.File), f.Location)
	case f.GridStatus != nil:
		if r.prices == nil {
			return nil, ErrNoPriceSource
		}
		return r.prices.PriceForecast(ctx, data.QueryLocationParams{
			DatasetID:  f.GridStatus.Dataset,
			LocationID: f.GridStatus.Location,
			StartTime:  r.grid.Start,
			EndTime:    r.grid.End(),
			Timezone:   f.GridStatus.Timezone,
		})
	case f.Merge != nil:
		parts := make([][]timeseries.Point, 0, len(f.Merge))
		for _, ref := range f.Merge {
			pts, err := r.points(ctx, ref)
			if err != nil {
				return nil, err
			}
			parts = append(parts, pts)
		}
		return timeseries.Merge(parts...), nil
	}
	return nil, errors.New("no source")
}
