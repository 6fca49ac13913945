// Package horizon plans the period grid of a rolling optimization: fine
// periods near now, coarser ones further out, with a constant period count
// and a fixed overall horizon however the start time falls.
package horizon

import (
	"errors"
	"fmt"
	"time"

	"energy-network/internal/timeseries"
)

// ErrInvalidTiers is returned when the tiers cannot produce the requested grid.
var ErrInvalidTiers = errors.New("horizon: invalid tier configuration")

// Tier is a period length and the minimum number of periods spent on it.
type Tier struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	MinCount int           `json:"min_count" yaml:"min_count"`
}

// Config describes the tiers, the total period count and the horizon length.
// Each tier's duration must be a multiple of the previous one. The last tier
// receives whatever periods remain.
type Config struct {
	Tiers      []Tier        `json:"tiers" yaml:"tiers"`
	TotalSteps int           `json:"total_steps" yaml:"total_steps"`
	Horizon    time.Duration `json:"horizon" yaml:"horizon"`
}

// DefaultConfig is five 1m periods, six 5m, four 30m and 1h periods for the
// rest of 56 periods spanning 48 hours.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{Duration: time.Minute, MinCount: 5},
			{Duration: 5 * time.Minute, MinCount: 6},
			{Duration: 30 * time.Minute, MinCount: 4},
			{Duration: time.Hour},
		},
		TotalSteps: 56,
		Horizon:    48 * time.Hour,
	}
}

// Validate checks the static shape of the configuration.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidTiers)
	}
	for i, t := range c.Tiers {
		if t.Duration <= 0 {
			return fmt.Errorf("%w: tier %d duration must be positive", ErrInvalidTiers, i)
		}
		if t.MinCount < 0 {
			return fmt.Errorf("%w: tier %d min_count must be >= 0", ErrInvalidTiers, i)
		}
		if i > 0 && t.Duration%c.Tiers[i-1].Duration != 0 {
			return fmt.Errorf("%w: tier %d duration %s is not a multiple of %s",
				ErrInvalidTiers, i, t.Duration, c.Tiers[i-1].Duration)
		}
	}
	if c.TotalSteps <= 0 {
		return fmt.Errorf("%w: total_steps must be positive", ErrInvalidTiers)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive", ErrInvalidTiers)
	}
	return nil
}

// Plan is a planned grid with the number of periods each tier contributed.
type Plan struct {
	Grid   timeseries.Grid
	Counts []int
}

// Build plans the grid starting at now.
//
// If now is not on a first-tier boundary the first period is shortened to
// reach it. Every non-final tier runs for at least its MinCount periods and
// then until the next tier's boundary. The final tier takes the remaining
// periods and stretches them, latest first, so the grid ends exactly at
// now + Horizon.
func Build(now time.Time, c Config) (Plan, error) {
	if err := c.Validate(); err != nil {
		return Plan{}, err
	}
	var steps []time.Duration
	counts := make([]int, len(c.Tiers))
	cursor := now
	last := len(c.Tiers) - 1

	if d := c.Tiers[0].Duration; !aligned(now, d) {
		next := now.Truncate(d).Add(d)
		steps = append(steps, next.Sub(now))
		counts[0]++
		cursor = next
	}

	for i := 0; i < last; i++ {
		d := c.Tiers[i].Duration
		want := c.Tiers[i].MinCount - counts[i]
		if want < 0 {
			want = 0
		}
		end := alignUp(cursor.Add(time.Duration(want)*d), c.Tiers[i+1].Duration)
		for cursor.Before(end) {
			steps = append(steps, d)
			counts[i]++
			cursor = cursor.Add(d)
		}
	}

	remaining := c.TotalSteps - len(steps)
	base := c.Tiers[last].Duration
	span := c.Horizon - cursor.Sub(now)
	if remaining < 1 || remaining < c.Tiers[last].MinCount {
		return Plan{}, fmt.Errorf("%w: %d periods left for the final tier", ErrInvalidTiers, remaining)
	}
	if span < time.Duration(remaining)*base {
		return Plan{}, fmt.Errorf("%w: %s left cannot hold %d periods of %s",
			ErrInvalidTiers, span, remaining, base)
	}

	tail := make([]time.Duration, remaining)
	for i := range tail {
		tail[i] = base
	}
	extra := span - time.Duration(remaining)*base
	for i := remaining - 1; extra >= base; i-- {
		if i < 0 {
			i = remaining - 1
		}
		tail[i] += base
		extra -= base
	}
	tail[remaining-1] += extra
	counts[last] = remaining
	steps = append(steps, tail...)

	grid, err := timeseries.NewGrid(now, steps)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Grid: grid, Counts: counts}, nil
}

func aligned(t time.Time, d time.Duration) bool {
	return t.Truncate(d).Equal(t)
}

func alignUp(t time.Time, d time.Duration) time.Time {
	if aligned(t, d) {
		return t
	}
	return t.Truncate(d).Add(d)
}
