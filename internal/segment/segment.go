// Package segment implements the stages a connection's power passes through
// between its source and target.
//
// A connection is a chain of segments. The chain starts with one forward and
// one reverse flow variable per period; each segment receives the flow at its
// input boundary as linear expressions, may add constraints or objective
// terms, and returns the flow at its output boundary. Lossless segments
// return their input unchanged, so only the chain start owns variables.
package segment

import (
	"errors"
	"fmt"
	"math"

	"energy-network/internal/lp"
	"energy-network/internal/timeseries"
)

// ErrInvalidParameter is wrapped by every parameter validation failure.
var ErrInvalidParameter = errors.New("segment: invalid parameter")

// Kind identifies a segment variant.
type Kind string

const (
	KindPassthrough    Kind = "passthrough"
	KindPowerLimit     Kind = "power_limit"
	KindEfficiency     Kind = "efficiency"
	KindPricing        Kind = "pricing"
	KindDemandPricing  Kind = "demand_pricing"
	KindSocPricing     Kind = "soc_pricing"
	KindBatteryBalance Kind = "battery_balance"
)

// Segment is one of the variants defined in this package. The set is closed:
// Apply switches over every variant.
type Segment interface {
	Kind() Kind
	// SegmentName is the configured name, or the kind when none was given.
	SegmentName() string
	isSegment()
}

// Flow is the pair of directional flows at one boundary of a chain, one
// expression per period, in kW. Forward runs source to target.
type Flow struct {
	Forward []lp.Expr
	Reverse []lp.Expr
}

// Storage is what a segment can see of a storage endpoint.
type Storage struct {
	// Energy holds one expression per period boundary, Len()+1 in total.
	Energy   []lp.Expr
	Capacity timeseries.Series
}

// Context carries the problem under construction into a chain.
type Context struct {
	Problem    *lp.Problem
	Grid       timeseries.Grid
	Connection string
	Source     string
	Target     string
	// Storage looks up a storage element by name.
	Storage func(element string) (Storage, bool)

	prefix string
	hours  []float64
}

func (c *Context) key(quantity string, t int) lp.Key {
	return lp.Key{Entity: c.Connection, Quantity: c.prefix + "." + quantity, Period: t}
}

func (c *Context) group(name string) string {
	return c.Connection + "/" + name
}

func (c *Context) resolve(name string, p timeseries.Param, def float64) (timeseries.Series, error) {
	s, err := p.ResolveOr(c.Grid, def)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, name, err)
	}
	return s, nil
}

// Chain applies segments in order to in and returns the flow at the target
// end. An empty chain behaves as a single passthrough.
func Chain(ctx Context, segments []Segment, in Flow) (Flow, error) {
	if len(segments) == 0 {
		segments = []Segment{Passthrough{}}
	}
	ctx.hours = ctx.Grid.Hours()
	seen := make(map[string]int)
	flow := in
	for i, seg := range segments {
		name := seg.SegmentName()
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		ctx.prefix = name
		var err error
		flow, err = Apply(&ctx, seg, flow)
		if err != nil {
			return Flow{}, fmt.Errorf("segment %d (%s): %w", i, name, err)
		}
	}
	return flow, nil
}

// Apply runs a single segment.
func Apply(ctx *Context, seg Segment, in Flow) (Flow, error) {
	if ctx.hours == nil {
		ctx.hours = ctx.Grid.Hours()
	}
	if ctx.prefix == "" {
		ctx.prefix = seg.SegmentName()
	}
	switch s := seg.(type) {
	case Passthrough:
		return in, nil
	case PowerLimit:
		return s.apply(ctx, in)
	case Efficiency:
		return s.apply(ctx, in)
	case Pricing:
		return s.apply(ctx, in)
	case DemandPricing:
		return s.apply(ctx, in)
	case SocPricing:
		return s.apply(ctx, in)
	case BatteryBalance:
		return s.apply(ctx, in)
	default:
		return Flow{}, fmt.Errorf("segment: unsupported segment %T", seg)
	}
}

func nameOr(name string, k Kind) string {
	if name != "" {
		return name
	}
	return string(k)
}

// Passthrough forwards power unchanged.
type Passthrough struct {
	Name string
}

func (Passthrough) Kind() Kind            { return KindPassthrough }
func (s Passthrough) SegmentName() string { return nameOr(s.Name, KindPassthrough) }
func (Passthrough) isSegment()            {}

var posInf = math.Inf(1)
