package segment

import (
	"fmt"
	"strings"
	"time"

	"energy-network/internal/lp"
)

// Direction selects which directional flow a segment observes.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// ParseDirection accepts "forward" and "reverse". Empty means forward.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "forward":
		return Forward, nil
	case "reverse":
		return Reverse, nil
	}
	return Forward, fmt.Errorf("%w: unknown direction %q", ErrInvalidParameter, s)
}

const (
	DefaultDemandBlock = 30 * time.Minute
	DefaultDemandCycle = 24 * time.Hour
)

// DemandPricing charges Price per kW of the highest block-average power in
// each billing cycle. Blocks and cycles are aligned to multiples of their
// length since the zero time, so a 24h cycle starts at midnight UTC.
//
// CurrentBlockEnergy is the kWh already delivered in the block containing the
// horizon start. PeakSoFar is the peak already reached in the current cycle;
// it is billed regardless, so it only matters as a floor.
type DemandPricing struct {
	Name               string
	Price              float64
	Block              time.Duration
	Cycle              time.Duration
	CurrentBlockEnergy float64
	PeakSoFar          float64
	Direction          Direction
}

func (DemandPricing) Kind() Kind            { return KindDemandPricing }
func (s DemandPricing) SegmentName() string { return nameOr(s.Name, KindDemandPricing) }
func (DemandPricing) isSegment()            {}

func (s DemandPricing) withDefaults() DemandPricing {
	if s.Block <= 0 {
		s.Block = DefaultDemandBlock
	}
	if s.Cycle <= 0 {
		s.Cycle = DefaultDemandCycle
	}
	return s
}

func (s DemandPricing) validate() error {
	switch {
	case s.Price < 0:
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidParameter)
	case s.Cycle%s.Block != 0:
		return fmt.Errorf("%w: cycle %s is not a multiple of block %s", ErrInvalidParameter, s.Cycle, s.Block)
	case s.CurrentBlockEnergy < 0 || s.PeakSoFar < 0:
		return fmt.Errorf("%w: current_block_energy and peak_so_far must be >= 0", ErrInvalidParameter)
	}
	return nil
}

type demandBlock struct {
	start  time.Time
	energy lp.Expr
}

func (s DemandPricing) apply(ctx *Context, in Flow) (Flow, error) {
	s = s.withDefaults()
	if err := s.validate(); err != nil {
		return Flow{}, err
	}
	flow := in.Forward
	if s.Direction == Reverse {
		flow = in.Reverse
	}

	bounds := ctx.Grid.Boundaries()
	var blocks []demandBlock
	for t := range flow {
		a, b := bounds[t], bounds[t+1]
		for bs := a.Truncate(s.Block); bs.Before(b); bs = bs.Add(s.Block) {
			lo, hi := later(a, bs), earlier(b, bs.Add(s.Block))
			overlap := hi.Sub(lo).Hours()
			if overlap <= 0 {
				continue
			}
			if n := len(blocks); n == 0 || !blocks[n-1].start.Equal(bs) {
				blocks = append(blocks, demandBlock{start: bs})
			}
			last := &blocks[len(blocks)-1]
			last.energy = last.energy.Plus(flow[t].Times(overlap))
		}
	}
	if len(blocks) == 0 {
		return in, nil
	}
	blocks[0].energy = blocks[0].energy.Plus(lp.C(s.CurrentBlockEnergy))

	p := ctx.Problem
	var peak lp.Var
	var cycle time.Time
	for i, blk := range blocks {
		if c := blk.start.Truncate(s.Cycle); i == 0 || !c.Equal(cycle) {
			floor := 0.0
			if i == 0 {
				floor = s.PeakSoFar
			}
			cycle = c
			peak = p.NewVar(ctx.key("peak", i), floor, posInf)
			p.Minimize(lp.V(peak).Times(s.Price))
		}
		p.AddTagged(ctx.key("block", i), lp.V(peak), lp.GreaterEq, blk.energy.Times(1/s.Block.Hours()))
	}
	return in, nil
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
