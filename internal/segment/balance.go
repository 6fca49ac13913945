package segment

import (
	"fmt"
	"math"

	"energy-network/internal/lp"
)

// DefaultOrderingCost is the holding cost per kWh-hour applied to an upper
// partition, per level above the bottom one.
const DefaultOrderingCost = 1e-4

const orderSlackCost = 1e-7

// BatteryBalance joins two adjacent partitions of one battery. The source is
// the upper partition and the target the lower; forward flow moves energy
// down, reverse moves it up.
//
// Energy only moves up when the lower partition's capacity shrinks, and then
// at least the amount its new capacity cannot hold.
//
// Each period has an order candidate δ with E_upper <= δ·cap_upper and
// E_lower >= δ·cap_lower. Relaxed, this keeps the lower partition at least as
// full, by fraction, as the upper one. Escalated to a binary the upper
// partition holds energy only when the lower one is full. The candidates form
// the group "<connection>/order", which escalates its first period unless the
// policy says otherwise, so the period about to be dispatched is exact.
//
// OrderingCost is a preference on every kWh-hour held in the upper partition.
// It steers ties toward bottom-up filling without showing in the objective.
type BatteryBalance struct {
	Name         string
	OrderingCost float64
}

func (BatteryBalance) Kind() Kind            { return KindBatteryBalance }
func (s BatteryBalance) SegmentName() string { return nameOr(s.Name, KindBatteryBalance) }
func (BatteryBalance) isSegment()            {}

func (s BatteryBalance) apply(ctx *Context, in Flow) (Flow, error) {
	if s.OrderingCost < 0 {
		return Flow{}, fmt.Errorf("%w: ordering_cost must be >= 0", ErrInvalidParameter)
	}
	if ctx.Storage == nil {
		return Flow{}, fmt.Errorf("%w: no storage lookup available", ErrInvalidParameter)
	}
	upper, ok := ctx.Storage(ctx.Source)
	if !ok {
		return Flow{}, fmt.Errorf("%w: upper partition %q is not storage", ErrInvalidParameter, ctx.Source)
	}
	lower, ok := ctx.Storage(ctx.Target)
	if !ok {
		return Flow{}, fmt.Errorf("%w: lower partition %q is not storage", ErrInvalidParameter, ctx.Target)
	}

	p := ctx.Problem
	p.DefaultMode(ctx.group("order"), lp.EscalateFirst)
	var holding []lp.Expr
	for t := 0; t < ctx.Grid.Len(); t++ {
		h := ctx.hours[t]
		if s.OrderingCost > 0 {
			holding = append(holding, upper.Energy[t+1].Times(s.OrderingCost*h))
		}
		var shrink float64
		if t > 0 {
			shrink = math.Max(0, lower.Capacity.At(t-1)-lower.Capacity.At(t))
		}
		up := in.Reverse[t].Times(h)
		p.Add(ctx.key("up_limit", t), up, lp.LessEq, lp.C(shrink))
		if shrink > 0 {
			// up * h >= E_lower(t) - capacity_lower(t)
			p.AddTagged(ctx.key("forced_up", t), up, lp.GreaterEq,
				lower.Energy[t].Minus(lp.C(lower.Capacity.At(t))))
		}

		d := lp.V(p.NewCandidate(ctx.group("order"), ctx.key("order", t)))
		p.Add(ctx.key("order_upper", t), upper.Energy[t+1], lp.LessEq, d.Times(upper.Capacity.At(t)))
		p.Add(ctx.key("order_lower", t), lower.Energy[t+1], lp.GreaterEq, d.Times(lower.Capacity.At(t)))
		// δ rests at its lower bound so an ordered relaxation stays integral
		holding = append(holding, d.Times(orderSlackCost))
	}
	p.Prefer(lp.Sum(holding...))
	return in, nil
}
