// Package config reads network descriptions from YAML (or JSON) and turns
// them into the engine's network, planner and solver inputs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"energy-network/internal/horizon"
	"energy-network/internal/lp"
	"energy-network/internal/timeseries"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk network description.
type Config struct {
	Horizon     HorizonConfig             `yaml:"horizon" json:"horizon"`
	Solver      SolverConfig              `yaml:"solver" json:"solver"`
	Forecasts   map[string]ForecastConfig `yaml:"forecasts,omitempty" json:"forecasts,omitempty" validate:"dive"`
	Elements    []ElementConfig           `yaml:"elements,omitempty" json:"elements,omitempty" validate:"dive"`
	Batteries   []BatteryConfig           `yaml:"batteries,omitempty" json:"batteries,omitempty" validate:"dive"`
	Connections []ConnectionConfig        `yaml:"connections,omitempty" json:"connections,omitempty" validate:"dive"`

	// dir anchors relative file paths; it is the config file's directory.
	dir string
}

type HorizonConfig struct {
	Tiers      []TierConfig `yaml:"tiers,omitempty" json:"tiers,omitempty" validate:"dive"`
	TotalSteps int          `yaml:"total_steps,omitempty" json:"total_steps,omitempty" validate:"gte=0"`
	Duration   Duration     `yaml:"duration,omitempty" json:"duration,omitempty" validate:"gte=0"`
}

type TierConfig struct {
	Duration Duration `yaml:"duration" json:"duration" validate:"gt=0"`
	MinCount int      `yaml:"min_count" json:"min_count" validate:"gte=0"`
}

// Planner returns the planner configuration, taking unset fields from
// horizon.DefaultConfig.
func (h HorizonConfig) Planner() horizon.Config {
	out := horizon.DefaultConfig()
	if len(h.Tiers) > 0 {
		out.Tiers = make([]horizon.Tier, len(h.Tiers))
		for i, t := range h.Tiers {
			out.Tiers[i] = horizon.Tier{Duration: t.Duration.Std(), MinCount: t.MinCount}
		}
	}
	if h.TotalSteps > 0 {
		out.TotalSteps = h.TotalSteps
	}
	if h.Duration > 0 {
		out.Horizon = h.Duration.Std()
	}
	return out
}

type SolverConfig struct {
	Backend string  `yaml:"backend,omitempty" json:"backend,omitempty"`
	Mode    lp.Mode `yaml:"mode,omitempty" json:"mode,omitempty"`
	// Groups overrides Mode per candidate group; keys may be patterns such
	// as "*/direction".
	Groups    map[string]lp.Mode `yaml:"groups,omitempty" json:"groups,omitempty"`
	Tolerance float64            `yaml:"tolerance,omitempty" json:"tolerance,omitempty" validate:"gte=0"`
	MaxNodes  int                `yaml:"max_nodes,omitempty" json:"max_nodes,omitempty" validate:"gte=0"`
}

// Options builds solver options. Zero tolerance and node limits keep the
// solver defaults.
func (s SolverConfig) Options() (lp.Options, error) {
	backend, err := lp.LookupBackend(s.Backend)
	if err != nil {
		return lp.Options{}, err
	}
	return lp.Options{
		Backend:   backend,
		Policy:    lp.Policy{Default: s.Mode, Groups: s.Groups},
		Tolerance: s.Tolerance,
		MaxNodes:  s.MaxNodes,
	}, nil
}

var validate = validator.New()

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked reads a configuration file and merges any battery files it
// references, without validating the result.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw, filepath.Dir(path))
}

// Parse decodes YAML or JSON. Relative file paths are taken against dir.
func Parse(raw []byte, dir string) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.dir = dir
	for i, b := range c.Batteries {
		if b.File == "" {
			continue
		}
		loaded, err := loadBatteryFile(c.path(b.File))
		if err != nil {
			return nil, fmt.Errorf("battery %d: %w", i, err)
		}
		c.Batteries[i] = MergeBattery(loaded, b)
	}
	return &c, nil
}

// SetDir anchors relative file paths of a configuration that was not read
// from disk.
func (c *Config) SetDir(dir string) { c.dir = dir }

// path prefers a relative path under the config directory and falls back to
// the path as given (relative to the working directory).
func (c *Config) path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	cand := filepath.Join(c.dir, p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	if len(c.Elements) == 0 && len(c.Batteries) == 0 {
		return errors.New("config invalid: no elements")
	}
	if _, err := c.Solver.Options(); err != nil {
		return fmt.Errorf("solver config invalid: %w", err)
	}
	if err := c.Horizon.Planner().Validate(); err != nil {
		return fmt.Errorf("horizon config invalid: %w", err)
	}
	for name, f := range c.Forecasts {
		if err := f.validate(name, c.Forecasts); err != nil {
			return err
		}
	}
	for _, ref := range c.refs() {
		if _, ok := c.Forecasts[ref.forecast]; !ok {
			return fmt.Errorf("%s: %w: %q", ref.owner, ErrUnknownForecast, ref.forecast)
		}
	}
	return nil
}

type paramRef struct {
	owner    string
	forecast string
}

func (c *Config) refs() []paramRef {
	var out []paramRef
	add := func(owner string, values ...ParamValue) {
		for _, v := range values {
			if v.Forecast() != "" {
				out = append(out, paramRef{owner: owner, forecast: v.Forecast()})
			}
		}
	}
	for _, e := range c.Elements {
		add("element "+e.Name, e.Capacity, e.Min, e.Max, e.HardMin, e.HardMax)
	}
	for _, b := range c.Batteries {
		add("battery "+b.Name, b.MaxCharge, b.MaxDischarge, b.ChargeEfficiency, b.DischargeEfficiency)
		for _, band := range b.Bands {
			add("battery "+b.Name, band.Charge, band.Discharge)
		}
	}
	for _, conn := range c.Connections {
		for _, s := range conn.Segments {
			add("connection "+conn.Name, s.params()...)
		}
	}
	return out
}

// Merge overlays override onto base. Set solver and horizon fields replace
// the base values, forecasts merge by name and non-empty element, battery and
// connection lists replace the base lists.
func Merge(base, override *Config) *Config {
	out := *base
	if override == nil {
		return &out
	}
	if len(override.Horizon.Tiers) > 0 {
		out.Horizon.Tiers = override.Horizon.Tiers
	}
	if override.Horizon.TotalSteps != 0 {
		out.Horizon.TotalSteps = override.Horizon.TotalSteps
	}
	if override.Horizon.Duration != 0 {
		out.Horizon.Duration = override.Horizon.Duration
	}
	if override.Solver.Backend != "" {
		out.Solver.Backend = override.Solver.Backend
	}
	if override.Solver.Mode != lp.Continuous {
		out.Solver.Mode = override.Solver.Mode
	}
	if len(override.Solver.Groups) > 0 {
		groups := make(map[string]lp.Mode, len(base.Solver.Groups)+len(override.Solver.Groups))
		for k, v := range base.Solver.Groups {
			groups[k] = v
		}
		for k, v := range override.Solver.Groups {
			groups[k] = v
		}
		out.Solver.Groups = groups
	}
	if override.Solver.Tolerance != 0 {
		out.Solver.Tolerance = override.Solver.Tolerance
	}
	if override.Solver.MaxNodes != 0 {
		out.Solver.MaxNodes = override.Solver.MaxNodes
	}
	if len(override.Forecasts) > 0 {
		forecasts := make(map[string]ForecastConfig, len(base.Forecasts)+len(override.Forecasts))
		for k, v := range base.Forecasts {
			forecasts[k] = v
		}
		for k, v := range override.Forecasts {
			forecasts[k] = v
		}
		out.Forecasts = forecasts
	}
	if len(override.Elements) > 0 {
		out.Elements = override.Elements
	}
	if len(override.Batteries) > 0 {
		out.Batteries = override.Batteries
	}
	if len(override.Connections) > 0 {
		out.Connections = override.Connections
	}
	return &out
}

// Plan runs the planner for the configured horizon.
func (c *Config) Plan(now time.Time) (horizon.Plan, error) {
	return horizon.Build(now, c.Horizon.Planner())
}

// Grid is a convenience over Plan for callers that only need the periods.
func (c *Config) Grid(now time.Time) (timeseries.Grid, error) {
	plan, err := c.Plan(now)
	if err != nil {
		return timeseries.Grid{}, err
	}
	return plan.Grid, nil
}
