package segment

import (
	"energy-network/internal/lp"
	"energy-network/internal/timeseries"
)

// Pricing charges price * power * hours per direction. Negative prices are
// revenue. An unset direction is free.
type Pricing struct {
	Name    string
	Forward timeseries.Param
	Reverse timeseries.Param
}

func (Pricing) Kind() Kind            { return KindPricing }
func (s Pricing) SegmentName() string { return nameOr(s.Name, KindPricing) }
func (Pricing) isSegment()            {}

func (s Pricing) apply(ctx *Context, in Flow) (Flow, error) {
	fwd, err := ctx.resolve("forward", s.Forward, 0)
	if err != nil {
		return Flow{}, err
	}
	rev, err := ctx.resolve("reverse", s.Reverse, 0)
	if err != nil {
		return Flow{}, err
	}
	var cost []lp.Expr
	for t := range in.Forward {
		if c := fwd.At(t) * ctx.hours[t]; c != 0 {
			cost = append(cost, in.Forward[t].Times(c))
		}
		if c := rev.At(t) * ctx.hours[t]; c != 0 {
			cost = append(cost, in.Reverse[t].Times(c))
		}
	}
	ctx.Problem.Minimize(lp.Sum(cost...))
	return in, nil
}
