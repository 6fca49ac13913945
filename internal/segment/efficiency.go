package segment

import (
	"fmt"

	"energy-network/internal/lp"
	"energy-network/internal/timeseries"
)

// Efficiency scales power crossing the segment. Losses fall on the receiving
// side in both directions: forward output is Forward times forward input,
// and reverse power arriving at the source is Reverse times what the target
// sent. Unset efficiencies are lossless.
type Efficiency struct {
	Name    string
	Forward timeseries.Param
	Reverse timeseries.Param
}

func (Efficiency) Kind() Kind            { return KindEfficiency }
func (s Efficiency) SegmentName() string { return nameOr(s.Name, KindEfficiency) }
func (Efficiency) isSegment()            {}

func (s Efficiency) apply(ctx *Context, in Flow) (Flow, error) {
	fwd, err := ctx.resolve("forward", s.Forward, 1)
	if err != nil {
		return Flow{}, err
	}
	rev, err := ctx.resolve("reverse", s.Reverse, 1)
	if err != nil {
		return Flow{}, err
	}
	if err := fraction("forward", fwd); err != nil {
		return Flow{}, err
	}
	if err := fraction("reverse", rev); err != nil {
		return Flow{}, err
	}

	out := Flow{
		Forward: make([]lp.Expr, len(in.Forward)),
		Reverse: make([]lp.Expr, len(in.Reverse)),
	}
	for t := range in.Forward {
		out.Forward[t] = in.Forward[t].Times(fwd.At(t))
		out.Reverse[t] = in.Reverse[t].Times(1 / rev.At(t))
	}
	return out, nil
}

// fraction checks 0 < v <= 1 in every period.
func fraction(name string, s timeseries.Series) error {
	for t := 0; t < s.Len(); t++ {
		if v := s.At(t); v <= 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in (0, 1], got %g in period %d", ErrInvalidParameter, name, v, t)
		}
	}
	return nil
}

func nonNegative(name string, s timeseries.Series) error {
	for t := 0; t < s.Len(); t++ {
		if v := s.At(t); v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %g in period %d", ErrInvalidParameter, name, v, t)
		}
	}
	return nil
}
