package segment

import (
	"energy-network/internal/lp"
	"energy-network/internal/timeseries"
)

// PowerLimit caps the flow in each direction. An unset maximum leaves that
// direction unbounded. With Fixed the flow must equal the maximum.
//
// When both directions are limited the flows share the time slice: a
// direction candidate z per period bounds forward by MaxForward*z and reverse
// by MaxReverse*(1-z). Left continuous this is forward/MaxForward +
// reverse/MaxReverse <= 1; escalated it forbids simultaneous flow.
type PowerLimit struct {
	Name       string
	MaxForward timeseries.Param
	MaxReverse timeseries.Param
	Fixed      bool
}

func (PowerLimit) Kind() Kind            { return KindPowerLimit }
func (s PowerLimit) SegmentName() string { return nameOr(s.Name, KindPowerLimit) }
func (PowerLimit) isSegment()            {}

func (s PowerLimit) apply(ctx *Context, in Flow) (Flow, error) {
	var fwdMax, revMax timeseries.Series
	var err error
	if s.MaxForward.IsSet() {
		if fwdMax, err = ctx.resolve("max_forward", s.MaxForward, 0); err != nil {
			return Flow{}, err
		}
		if err = nonNegative("max_forward", fwdMax); err != nil {
			return Flow{}, err
		}
	}
	if s.MaxReverse.IsSet() {
		if revMax, err = ctx.resolve("max_reverse", s.MaxReverse, 0); err != nil {
			return Flow{}, err
		}
		if err = nonNegative("max_reverse", revMax); err != nil {
			return Flow{}, err
		}
	}

	sense := lp.LessEq
	if s.Fixed {
		sense = lp.Equal
	}
	p := ctx.Problem
	coupled := s.MaxForward.IsSet() && s.MaxReverse.IsSet() && !s.Fixed
	for t := 0; t < ctx.Grid.Len(); t++ {
		if s.MaxForward.IsSet() {
			p.AddTagged(ctx.key("limit_forward", t), in.Forward[t], sense, lp.C(fwdMax.At(t)))
		}
		if s.MaxReverse.IsSet() {
			p.AddTagged(ctx.key("limit_reverse", t), in.Reverse[t], sense, lp.C(revMax.At(t)))
		}
		if coupled {
			z := p.NewCandidate(ctx.group("direction"), ctx.key("direction", t))
			p.Add(ctx.key("share_forward", t), in.Forward[t], lp.LessEq, lp.V(z).Times(fwdMax.At(t)))
			p.Add(ctx.key("share_reverse", t), in.Reverse[t], lp.LessEq, lp.C(revMax.At(t)).Minus(lp.V(z).Times(revMax.At(t))))
		}
	}
	return in, nil
}
