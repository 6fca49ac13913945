package segment

import (
	"fmt"

	"energy-network/internal/lp"
	"energy-network/internal/timeseries"
)

// SocPricing penalises the stored energy of a storage endpoint for sitting
// below DischargeThreshold or above ChargeThreshold at the end of each period.
// The penalty is price * kWh outside the threshold * hours. A side without a
// threshold is not priced.
//
// Storage names the element to watch; empty means the target endpoint, or the
// source when the target is not storage.
type SocPricing struct {
	Name               string
	Storage            string
	DischargeThreshold timeseries.Param
	ChargeThreshold    timeseries.Param
	DischargePrice     timeseries.Param
	ChargePrice        timeseries.Param
}

func (SocPricing) Kind() Kind            { return KindSocPricing }
func (s SocPricing) SegmentName() string { return nameOr(s.Name, KindSocPricing) }
func (SocPricing) isSegment()            {}

func (s SocPricing) storage(ctx *Context) (Storage, error) {
	if ctx.Storage == nil {
		return Storage{}, fmt.Errorf("%w: no storage lookup available", ErrInvalidParameter)
	}
	names := []string{s.Storage}
	if s.Storage == "" {
		names = []string{ctx.Target, ctx.Source}
	}
	for _, name := range names {
		if st, ok := ctx.Storage(name); ok {
			return st, nil
		}
	}
	return Storage{}, fmt.Errorf("%w: no storage endpoint among %v", ErrInvalidParameter, names)
}

func (s SocPricing) apply(ctx *Context, in Flow) (Flow, error) {
	st, err := s.storage(ctx)
	if err != nil {
		return Flow{}, err
	}
	p := ctx.Problem

	if s.DischargeThreshold.IsSet() {
		thr, err := ctx.resolve("discharge_threshold", s.DischargeThreshold, 0)
		if err != nil {
			return Flow{}, err
		}
		price, err := ctx.resolve("discharge_price", s.DischargePrice, 0)
		if err != nil {
			return Flow{}, err
		}
		for t := 0; t < ctx.Grid.Len(); t++ {
			below := p.NewVar(ctx.key("below", t), 0, posInf)
			p.Add(ctx.key("below", t), lp.V(below).Plus(st.Energy[t+1]), lp.GreaterEq, lp.C(thr.At(t)))
			p.Minimize(lp.V(below).Times(price.At(t) * ctx.hours[t]))
		}
	}
	if s.ChargeThreshold.IsSet() {
		thr, err := ctx.resolve("charge_threshold", s.ChargeThreshold, 0)
		if err != nil {
			return Flow{}, err
		}
		price, err := ctx.resolve("charge_price", s.ChargePrice, 0)
		if err != nil {
			return Flow{}, err
		}
		for t := 0; t < ctx.Grid.Len(); t++ {
			above := p.NewVar(ctx.key("above", t), 0, posInf)
			p.Add(ctx.key("above", t), lp.V(above).Minus(st.Energy[t+1]), lp.GreaterEq, lp.C(-thr.At(t)))
			p.Minimize(lp.V(above).Times(price.At(t) * ctx.hours[t]))
		}
	}
	return in, nil
}
