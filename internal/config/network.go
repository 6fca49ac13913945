package config

import (
	"fmt"
	"os"

	"energy-network/internal/element"
	"energy-network/internal/network"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"

	"gopkg.in/yaml.v3"
)

type ElementConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	// Kind is storage, junction, or one of the junction shorthands bus,
	// grid, source and sink.
	Kind      string `yaml:"kind" json:"kind" validate:"required,oneof=storage junction bus grid source sink"`
	CanSource bool   `yaml:"can_source,omitempty" json:"can_source,omitempty"`
	CanSink   bool   `yaml:"can_sink,omitempty" json:"can_sink,omitempty"`

	Capacity ParamValue `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Initial  float64    `yaml:"initial,omitempty" json:"initial,omitempty" validate:"gte=0"`
	Min      ParamValue `yaml:"min,omitempty" json:"min,omitempty"`
	Max      ParamValue `yaml:"max,omitempty" json:"max,omitempty"`
	HardMin  ParamValue `yaml:"hard_min,omitempty" json:"hard_min,omitempty"`
	HardMax  ParamValue `yaml:"hard_max,omitempty" json:"hard_max,omitempty"`
}

// BatteryConfig is the partitioned battery shorthand. File names a YAML file
// with a top-level "battery" key whose fields are overlaid by the ones set
// here.
type BatteryConfig struct {
	File       string    `yaml:"file,omitempty" json:"file,omitempty"`
	Name       string    `yaml:"name" json:"name" validate:"required"`
	Bus        string    `yaml:"bus" json:"bus" validate:"required"`
	Capacity   float64   `yaml:"capacity" json:"capacity" validate:"gt=0"`
	Initial    float64   `yaml:"initial,omitempty" json:"initial,omitempty" validate:"gte=0"`
	Thresholds []float64 `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`

	MaxCharge           ParamValue `yaml:"max_charge,omitempty" json:"max_charge,omitempty"`
	MaxDischarge        ParamValue `yaml:"max_discharge,omitempty" json:"max_discharge,omitempty"`
	ChargeEfficiency    ParamValue `yaml:"charge_efficiency,omitempty" json:"charge_efficiency,omitempty"`
	DischargeEfficiency ParamValue `yaml:"discharge_efficiency,omitempty" json:"discharge_efficiency,omitempty"`

	Bands        []BandConfig `yaml:"bands,omitempty" json:"bands,omitempty"`
	OrderingCost float64      `yaml:"ordering_cost,omitempty" json:"ordering_cost,omitempty" validate:"gte=0"`
}

// BandConfig prices energy moved into and out of one battery band.
type BandConfig struct {
	Charge    ParamValue `yaml:"charge,omitempty" json:"charge,omitempty"`
	Discharge ParamValue `yaml:"discharge,omitempty" json:"discharge,omitempty"`
}

type ConnectionConfig struct {
	Name     string          `yaml:"name" json:"name" validate:"required"`
	Source   string          `yaml:"source" json:"source" validate:"required"`
	Target   string          `yaml:"target" json:"target" validate:"required"`
	Segments []SegmentConfig `yaml:"segments,omitempty" json:"segments,omitempty" validate:"dive"`
}

// SegmentConfig holds the parameters of every segment kind; Type picks which
// of them apply.
type SegmentConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=passthrough power_limit efficiency pricing demand_pricing soc_pricing battery_balance"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// power_limit
	MaxForward ParamValue `yaml:"max_forward,omitempty" json:"max_forward,omitempty"`
	MaxReverse ParamValue `yaml:"max_reverse,omitempty" json:"max_reverse,omitempty"`
	Fixed      bool       `yaml:"fixed,omitempty" json:"fixed,omitempty"`

	// efficiency and pricing
	Forward ParamValue `yaml:"forward,omitempty" json:"forward,omitempty"`
	Reverse ParamValue `yaml:"reverse,omitempty" json:"reverse,omitempty"`

	// demand_pricing
	Price              float64  `yaml:"price,omitempty" json:"price,omitempty" validate:"gte=0"`
	Block              Duration `yaml:"block,omitempty" json:"block,omitempty" validate:"gte=0"`
	Cycle              Duration `yaml:"cycle,omitempty" json:"cycle,omitempty" validate:"gte=0"`
	CurrentBlockEnergy float64  `yaml:"current_block_energy,omitempty" json:"current_block_energy,omitempty" validate:"gte=0"`
	PeakSoFar          float64  `yaml:"peak_so_far,omitempty" json:"peak_so_far,omitempty" validate:"gte=0"`
	Direction          string   `yaml:"direction,omitempty" json:"direction,omitempty" validate:"omitempty,oneof=forward reverse"`

	// soc_pricing
	Storage            string     `yaml:"storage,omitempty" json:"storage,omitempty"`
	DischargeThreshold ParamValue `yaml:"discharge_threshold,omitempty" json:"discharge_threshold,omitempty"`
	ChargeThreshold    ParamValue `yaml:"charge_threshold,omitempty" json:"charge_threshold,omitempty"`
	DischargePrice     ParamValue `yaml:"discharge_price,omitempty" json:"discharge_price,omitempty"`
	ChargePrice        ParamValue `yaml:"charge_price,omitempty" json:"charge_price,omitempty"`

	// battery_balance
	OrderingCost float64 `yaml:"ordering_cost,omitempty" json:"ordering_cost,omitempty" validate:"gte=0"`
}

func (s SegmentConfig) params() []ParamValue {
	return []ParamValue{
		s.MaxForward, s.MaxReverse, s.Forward, s.Reverse,
		s.DischargeThreshold, s.ChargeThreshold, s.DischargePrice, s.ChargePrice,
	}
}

// resolver resolves ParamValues and remembers the first failure.
type resolver struct {
	forecasts map[string]timeseries.Series
	err       error
}

func (p *resolver) get(name string, v ParamValue) timeseries.Param {
	out, err := v.Param(p.forecasts)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", name, err)
	}
	return out
}

// Segment converts the configuration into a catalog segment.
func (s SegmentConfig) Segment(forecasts map[string]timeseries.Series) (segment.Segment, error) {
	p := &resolver{forecasts: forecasts}
	var seg segment.Segment
	switch segment.Kind(s.Type) {
	case segment.KindPassthrough:
		seg = segment.Passthrough{Name: s.Name}
	case segment.KindPowerLimit:
		seg = segment.PowerLimit{
			Name:       s.Name,
			MaxForward: p.get("max_forward", s.MaxForward),
			MaxReverse: p.get("max_reverse", s.MaxReverse),
			Fixed:      s.Fixed,
		}
	case segment.KindEfficiency:
		seg = segment.Efficiency{Name: s.Name, Forward: p.get("forward", s.Forward), Reverse: p.get("reverse", s.Reverse)}
	case segment.KindPricing:
		seg = segment.Pricing{Name: s.Name, Forward: p.get("forward", s.Forward), Reverse: p.get("reverse", s.Reverse)}
	case segment.KindDemandPricing:
		dir := segment.Forward
		if s.Direction != "" {
			d, err := segment.ParseDirection(s.Direction)
			if err != nil {
				return nil, err
			}
			dir = d
		}
		seg = segment.DemandPricing{
			Name:               s.Name,
			Price:              s.Price,
			Block:              s.Block.Std(),
			Cycle:              s.Cycle.Std(),
			CurrentBlockEnergy: s.CurrentBlockEnergy,
			PeakSoFar:          s.PeakSoFar,
			Direction:          dir,
		}
	case segment.KindSocPricing:
		seg = segment.SocPricing{
			Name:               s.Name,
			Storage:            s.Storage,
			DischargeThreshold: p.get("discharge_threshold", s.DischargeThreshold),
			ChargeThreshold:    p.get("charge_threshold", s.ChargeThreshold),
			DischargePrice:     p.get("discharge_price", s.DischargePrice),
			ChargePrice:        p.get("charge_price", s.ChargePrice),
		}
	case segment.KindBatteryBalance:
		seg = segment.BatteryBalance{Name: s.Name, OrderingCost: s.OrderingCost}
	default:
		return nil, fmt.Errorf("unknown segment type %q", s.Type)
	}
	if p.err != nil {
		return nil, p.err
	}
	return seg, nil
}

// Element converts the configuration into a network element.
func (e ElementConfig) Element(forecasts map[string]timeseries.Series) (element.Element, error) {
	switch e.Kind {
	case "junction":
		return element.Junction{Name: e.Name, CanSource: e.CanSource, CanSink: e.CanSink}, nil
	case "bus":
		return element.Bus(e.Name), nil
	case "grid":
		return element.Grid(e.Name), nil
	case "source":
		return element.Source(e.Name), nil
	case "sink":
		return element.Sink(e.Name), nil
	case "storage":
		p := &resolver{forecasts: forecasts}
		s := element.Storage{
			Name:     e.Name,
			Capacity: p.get("capacity", e.Capacity),
			Initial:  e.Initial,
			Min:      p.get("min", e.Min),
			Max:      p.get("max", e.Max),
			HardMin:  p.get("hard_min", e.HardMin),
			HardMax:  p.get("hard_max", e.HardMax),
		}
		if p.err != nil {
			return nil, p.err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown element kind %q", e.Kind)
}

// Battery converts the shorthand into a network battery.
func (b BatteryConfig) Battery(forecasts map[string]timeseries.Series) (network.Battery, error) {
	p := &resolver{forecasts: forecasts}
	out := network.Battery{
		Name:                b.Name,
		Capacity:            b.Capacity,
		Initial:             b.Initial,
		Thresholds:          b.Thresholds,
		Bus:                 b.Bus,
		MaxCharge:           p.get("max_charge", b.MaxCharge),
		MaxDischarge:        p.get("max_discharge", b.MaxDischarge),
		ChargeEfficiency:    p.get("charge_efficiency", b.ChargeEfficiency),
		DischargeEfficiency: p.get("discharge_efficiency", b.DischargeEfficiency),
		OrderingCost:        b.OrderingCost,
	}
	for i, band := range b.Bands {
		out.BandPrices = append(out.BandPrices, network.BandPrice{
			Charge:    p.get(fmt.Sprintf("bands[%d].charge", i), band.Charge),
			Discharge: p.get(fmt.Sprintf("bands[%d].discharge", i), band.Discharge),
		})
	}
	return out, p.err
}

// Network assembles the configured network with forecasts already resolved
// onto the planning grid.
func (c *Config) Network(forecasts map[string]timeseries.Series) (network.Network, error) {
	var n network.Network
	for _, e := range c.Elements {
		el, err := e.Element(forecasts)
		if err != nil {
			return network.Network{}, fmt.Errorf("element %s: %w", e.Name, err)
		}
		n.Add(el)
	}
	for _, b := range c.Batteries {
		battery, err := b.Battery(forecasts)
		if err != nil {
			return network.Network{}, fmt.Errorf("battery %s: %w", b.Name, err)
		}
		if err := n.AddBattery(battery); err != nil {
			return network.Network{}, err
		}
	}
	for _, conn := range c.Connections {
		segs := make([]segment.Segment, 0, len(conn.Segments))
		for i, sc := range conn.Segments {
			seg, err := sc.Segment(forecasts)
			if err != nil {
				return network.Network{}, fmt.Errorf("connection %s segment %d: %w", conn.Name, i, err)
			}
			segs = append(segs, seg)
		}
		n.Connect(conn.Name, conn.Source, conn.Target, segs...)
	}
	return n, nil
}

type batteryFileWrapper struct {
	Battery BatteryConfig `yaml:"battery"`
}

func loadBatteryFile(path string) (BatteryConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BatteryConfig{}, err
	}
	var w batteryFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return BatteryConfig{}, fmt.Errorf("parse battery file %s: %w", path, err)
	}
	return w.Battery, nil
}

// MergeBattery overlays the set fields of override onto base.
func MergeBattery(base, override BatteryConfig) BatteryConfig {
	out := base
	out.File = ""
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.Bus != "" {
		out.Bus = override.Bus
	}
	if override.Capacity != 0 {
		out.Capacity = override.Capacity
	}
	if override.Initial != 0 {
		out.Initial = override.Initial
	}
	if override.Thresholds != nil {
		out.Thresholds = override.Thresholds
	}
	overlay := func(dst *ParamValue, src ParamValue) {
		if src.IsSet() {
			*dst = src
		}
	}
	overlay(&out.MaxCharge, override.MaxCharge)
	overlay(&out.MaxDischarge, override.MaxDischarge)
	overlay(&out.ChargeEfficiency, override.ChargeEfficiency)
	overlay(&out.DischargeEfficiency, override.DischargeEfficiency)
	if override.Bands != nil {
		out.Bands = override.Bands
	}
	if override.OrderingCost != 0 {
		out.OrderingCost = override.OrderingCost
	}
	return out
}
