package element

import (
	"energy-network/internal/lp"
)

// Junction balances the power of its connections in every period. CanSource
// lets it supply net power into the network, CanSink lets it absorb net power.
type Junction struct {
	Name      string
	CanSource bool
	CanSink   bool
}

// Bus is a junction that must balance exactly.
func Bus(name string) Junction { return Junction{Name: name} }

// Grid can both import and export without limit.
func Grid(name string) Junction { return Junction{Name: name, CanSource: true, CanSink: true} }

// Source may only supply net power.
func Source(name string) Junction { return Junction{Name: name, CanSource: true} }

// Sink may only absorb net power.
func Sink(name string) Junction { return Junction{Name: name, CanSink: true} }

func (j Junction) ElementName() string { return j.Name }
func (Junction) Kind() Kind            { return KindJunction }
func (Junction) isElement()            {}

// Balance returns the sense of sum(power into junction) <sense> 0, or false
// when the junction is unconstrained.
func (j Junction) Balance() (lp.Sense, bool) {
	switch {
	case j.CanSource && j.CanSink:
		return 0, false
	case j.CanSink:
		return lp.GreaterEq, true
	case j.CanSource:
		return lp.LessEq, true
	default:
		return lp.Equal, true
	}
}

// Constrain adds one tagged balance row per period over the junction's
// net inflow expressions.
func (j Junction) Constrain(p *lp.Problem, netInflow []lp.Expr) {
	sense, ok := j.Balance()
	if !ok {
		return
	}
	for t, e := range netInflow {
		p.AddTagged(lp.Key{Entity: j.Name, Quantity: "balance", Period: t}, e, sense, lp.C(0))
	}
}
