package segment

import (
	"math"
	"testing"
	"time"

	"energy-network/internal/lp"
	"energy-network/internal/timeseries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

var (
	inf   = math.Inf(1)
	start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	p        *lp.Problem
	ctx      Context
	fwd, rev []lp.Var
	in       Flow
}

func newHarness(t *testing.T, step time.Duration, n int) *harness {
	t.Helper()
	grid, err := timeseries.Uniform(start, step, n)
	require.NoError(t, err)
	h := &harness{p: lp.NewProblem()}
	h.ctx = Context{Problem: h.p, Grid: grid, Connection: "link", Source: "a", Target: "b"}
	for i := 0; i < n; i++ {
		f := h.p.NewVar(lp.Key{Entity: "link", Quantity: "forward", Period: i}, 0, inf)
		r := h.p.NewVar(lp.Key{Entity: "link", Quantity: "reverse", Period: i}, 0, inf)
		h.fwd = append(h.fwd, f)
		h.rev = append(h.rev, r)
		h.in.Forward = append(h.in.Forward, lp.V(f))
		h.in.Reverse = append(h.in.Reverse, lp.V(r))
	}
	return h
}

func (h *harness) fix(v lp.Var, value float64) {
	h.p.Add(h.p.VarKey(v), lp.V(v), lp.Equal, lp.C(value))
}

func (h *harness) solve(t *testing.T, opts lp.Options) *lp.Solution {
	t.Helper()
	sol := lp.Solve(h.p, opts)
	require.Equal(t, lp.StatusOptimal, sol.Status, "err: %v", sol.Err)
	return sol
}

func TestEmptyChainIsPassthrough(t *testing.T) {
	h := newHarness(t, time.Hour, 2)
	out, err := Chain(h.ctx, nil, h.in)
	require.NoError(t, err)
	assert.Equal(t, h.in, out)
}

func TestEfficiencyLossesOnReceivingSide(t *testing.T) {
	h := newHarness(t, time.Hour, 1)
	out, err := Chain(h.ctx, []Segment{Efficiency{Forward: timeseries.Scalar(0.9), Reverse: timeseries.Scalar(0.8)}}, h.in)
	require.NoError(t, err)

	h.p.Add(lp.Key{Entity: "test", Quantity: "delivered"}, out.Forward[0], lp.Equal, lp.C(4.5))
	h.p.Add(lp.Key{Entity: "test", Quantity: "sent_back"}, out.Reverse[0], lp.Equal, lp.C(8))
	sol := h.solve(t, lp.Options{})

	// never more out than in
	assert.InDelta(t, 5, sol.Value(h.fwd[0]), tol)
	assert.InDelta(t, 6.4, sol.Value(h.rev[0]), tol)
}

func TestEfficiencyRejectsOutOfRange(t *testing.T) {
	h := newHarness(t, time.Hour, 1)
	_, err := Chain(h.ctx, []Segment{Efficiency{Forward: timeseries.Scalar(1.2)}}, h.in)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = Chain(h.ctx, []Segment{Efficiency{Reverse: timeseries.Values(0.9, 0.9)}}, h.in)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPowerLimitCouplesDirections(t *testing.T) {
	tests := []struct {
		name         string
		fwdValue     float64
		revValue     float64
		mode         lp.Mode
		wantF, wantR float64
	}{
		{"forward wins", 1, 1, lp.Continuous, 10, 0},
		{"reverse wins", 1, 3, lp.Continuous, 0, 5},
		{"escalated", 1, 3, lp.EscalateAll, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, time.Hour, 1)
			limit := PowerLimit{MaxForward: timeseries.Scalar(10), MaxReverse: timeseries.Scalar(5)}
			_, err := Chain(h.ctx, []Segment{limit}, h.in)
			require.NoError(t, err)
			h.p.Minimize(lp.V(h.fwd[0]).Times(-tt.fwdValue).Plus(lp.V(h.rev[0]).Times(-tt.revValue)))

			sol := h.solve(t, lp.Options{Policy: lp.Policy{Default: tt.mode}})
			f, r := sol.Value(h.fwd[0]), sol.Value(h.rev[0])
			assert.InDelta(t, tt.wantF, f, tol)
			assert.InDelta(t, tt.wantR, r, tol)
			assert.LessOrEqual(t, f/10+r/5, 1+tol)
		})
	}
}

func TestPowerLimitFixedAndNamedTwice(t *testing.T) {
	h := newHarness(t, time.Hour, 1)
	segs := []Segment{
		PowerLimit{MaxForward: timeseries.Scalar(3), Fixed: true},
		PowerLimit{MaxForward: timeseries.Scalar(4)},
	}
	_, err := Chain(h.ctx, segs, h.in)
	require.NoError(t, err)
	h.p.Minimize(lp.V(h.fwd[0]))

	sol := h.solve(t, lp.Options{})
	assert.InDelta(t, 3, sol.Value(h.fwd[0]), tol)
	assert.Contains(t, sol.Dual, lp.Key{Entity: "link", Quantity: "power_limit.limit_forward"})
	assert.Contains(t, sol.Dual, lp.Key{Entity: "link", Quantity: "power_limit_2.limit_forward"})
	assert.Zero(t, sol.Dual[lp.Key{Entity: "link", Quantity: "power_limit_2.limit_forward"}])
}

func TestPowerLimitRejectsNegative(t *testing.T) {
	h := newHarness(t, time.Hour, 1)
	_, err := Chain(h.ctx, []Segment{PowerLimit{MaxReverse: timeseries.Scalar(-1)}}, h.in)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPricingIntegratesOverHours(t *testing.T) {
	h := newHarness(t, 30*time.Minute, 2)
	_, err := Chain(h.ctx, []Segment{Pricing{Forward: timeseries.Values(0.2, 0.4), Reverse: timeseries.Scalar(-0.1)}}, h.in)
	require.NoError(t, err)
	for t := 0; t < 2; t++ {
		h.fix(h.fwd[t], 2)
		h.fix(h.rev[t], 1)
	}
	sol := h.solve(t, lp.Options{})
	assert.InDelta(t, 2*0.5*0.2+2*0.5*0.4-2*0.5*0.1, sol.Objective, tol)
}

func TestDemandPricingChargesBlockPeak(t *testing.T) {
	tests := []struct {
		name string
		seg  DemandPricing
		want float64
	}{
		{"peak of blocks", DemandPricing{Price: 10}, 20},
		{"peak so far floors", DemandPricing{Price: 10, PeakSoFar: 3}, 30},
		{"current block energy", DemandPricing{Price: 10, CurrentBlockEnergy: 0.5}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 15*time.Minute, 4)
			_, err := Chain(h.ctx, []Segment{tt.seg}, h.in)
			require.NoError(t, err)
			for i, v := range []float64{4, 0, 2, 2} {
				h.fix(h.fwd[i], v)
			}
			sol := h.solve(t, lp.Options{})
			assert.InDelta(t, tt.want, sol.Objective, tol)
		})
	}
}

func TestDemandPricingReverseAndValidation(t *testing.T) {
	h := newHarness(t, 30*time.Minute, 2)
	_, err := Chain(h.ctx, []Segment{DemandPricing{Price: 1, Direction: Reverse}}, h.in)
	require.NoError(t, err)
	h.fix(h.fwd[0], 100)
	h.fix(h.rev[1], 3)
	sol := h.solve(t, lp.Options{})
	assert.InDelta(t, 3, sol.Objective, tol)

	_, err = Chain(h.ctx, []Segment{DemandPricing{Block: 7 * time.Minute}}, h.in)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func storageHarness(t *testing.T, n int, capacity []float64, initial float64) (*harness, []lp.Var) {
	h := newHarness(t, time.Hour, n)
	energy := []lp.Expr{lp.C(initial)}
	var vars []lp.Var
	for i := 0; i < n; i++ {
		v := h.p.NewVar(lp.Key{Entity: "b", Quantity: "energy", Period: i + 1}, 0, inf)
		vars = append(vars, v)
		energy = append(energy, lp.V(v))
	}
	capSeries, err := timeseries.New(h.ctx.Grid, capacity)
	require.NoError(t, err)
	h.ctx.Storage = func(name string) (Storage, bool) {
		if name != "b" {
			return Storage{}, false
		}
		return Storage{Energy: energy, Capacity: capSeries}, true
	}
	return h, vars
}

func TestSocPricingPenalisesOutsideThresholds(t *testing.T) {
	h, energy := storageHarness(t, 2, []float64{10, 10}, 5)
	seg := SocPricing{
		DischargeThreshold: timeseries.Scalar(4),
		DischargePrice:     timeseries.Scalar(1),
		ChargeThreshold:    timeseries.Scalar(8),
		ChargePrice:        timeseries.Scalar(0.5),
	}
	_, err := Chain(h.ctx, []Segment{seg}, h.in)
	require.NoError(t, err)
	h.fix(energy[0], 2)
	h.fix(energy[1], 9)

	sol := h.solve(t, lp.Options{})
	assert.InDelta(t, 2*1+1*0.5, sol.Objective, tol)
}

func TestSocPricingNeedsStorage(t *testing.T) {
	h := newHarness(t, time.Hour, 1)
	_, err := Chain(h.ctx, []Segment{SocPricing{DischargeThreshold: timeseries.Scalar(1)}}, h.in)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBatteryBalanceForcesUpwardOnShrink(t *testing.T) {
	grid, err := timeseries.Uniform(start, time.Hour, 2)
	require.NoError(t, err)
	p := lp.NewProblem()
	parts := map[string]Storage{}
	vars := map[string][]lp.Var{}
	for name, initial := range map[string]float64{"upper": 0, "lower": 4} {
		energy := []lp.Expr{lp.C(initial)}
		for i := 1; i <= 2; i++ {
			v := p.NewVar(lp.Key{Entity: name, Quantity: "energy", Period: i}, 0, inf)
			vars[name] = append(vars[name], v)
			energy = append(energy, lp.V(v))
		}
		parts[name] = Storage{Energy: energy}
	}
	lower := parts["lower"]
	lower.Capacity, _ = timeseries.New(grid, []float64{5, 2})
	parts["lower"] = lower
	upper := parts["upper"]
	upper.Capacity = timeseries.Broadcast(grid, 5)
	parts["upper"] = upper

	ctx := Context{
		Problem: p, Grid: grid, Connection: "balance", Source: "upper", Target: "lower",
		Storage: func(name string) (Storage, bool) {
			s, ok := parts[name]
			return s, ok
		},
	}
	var in Flow
	var up []lp.Var
	for i := 0; i < 2; i++ {
		f := p.NewVar(lp.Key{Entity: "balance", Quantity: "down", Period: i}, 0, inf)
		r := p.NewVar(lp.Key{Entity: "balance", Quantity: "up", Period: i}, 0, inf)
		up = append(up, r)
		in.Forward = append(in.Forward, lp.V(f))
		in.Reverse = append(in.Reverse, lp.V(r))
	}
	_, err = Chain(ctx, []Segment{BatteryBalance{OrderingCost: 0.01}}, in)
	require.NoError(t, err)
	p.Add(lp.Key{Entity: "test", Quantity: "lower1"}, lp.V(vars["lower"][0]), lp.Equal, lp.C(4))
	p.Add(lp.Key{Entity: "test", Quantity: "upper2"}, lp.V(vars["upper"][1]), lp.Equal, lp.C(3))
	p.Minimize(lp.V(up[0]).Plus(lp.V(up[1])))

	sol := lp.Solve(p, lp.Options{})
	require.Equal(t, lp.StatusOptimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 0, sol.Value(up[0]), tol)
	assert.InDelta(t, 2, sol.Value(up[1]), tol)
	// the holding preference stays out of the objective
	assert.InDelta(t, 2, sol.Objective, tol)
	assert.Greater(t, sol.Dual[lp.Key{Entity: "balance", Quantity: "battery_balance.forced_up", Period: 1}], 0.0)
}

func TestBatteryBalanceOrdersPartitions(t *testing.T) {
	tests := []struct {
		name        string
		policy      lp.Policy
		upper, lower float64
	}{
		{"relaxed", lp.Policy{Groups: map[string]lp.Mode{"*/order": lp.Continuous}}, 3, 3},
		{"first period by default", lp.Policy{}, 1, 5},
		{"escalated", lp.Policy{Groups: map[string]lp.Mode{"*/order": lp.EscalateAll}}, 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := timeseries.Uniform(start, time.Hour, 1)
			require.NoError(t, err)
			p := lp.NewProblem()
			parts := map[string]Storage{}
			energy := map[string]lp.Var{}
			for _, name := range []string{"upper", "lower"} {
				v := p.NewVar(lp.Key{Entity: name, Quantity: "energy", Period: 1}, 0, 5)
				energy[name] = v
				parts[name] = Storage{
					Energy:   []lp.Expr{lp.C(0), lp.V(v)},
					Capacity: timeseries.Broadcast(grid, 5),
				}
			}
			ctx := Context{
				Problem: p, Grid: grid, Connection: "bat:upper:balance", Source: "upper", Target: "lower",
				Storage: func(name string) (Storage, bool) {
					s, ok := parts[name]
					return s, ok
				},
			}
			in := Flow{
				Forward: []lp.Expr{lp.V(p.NewVar(lp.Key{Entity: "balance", Quantity: "down"}, 0, inf))},
				Reverse: []lp.Expr{lp.V(p.NewVar(lp.Key{Entity: "balance", Quantity: "up"}, 0, inf))},
			}
			_, err = Chain(ctx, []Segment{BatteryBalance{OrderingCost: 0.01}}, in)
			require.NoError(t, err)
			p.Add(lp.Key{Entity: "test", Quantity: "stored"}, lp.V(energy["upper"]).Plus(lp.V(energy["lower"])), lp.Equal, lp.C(6))
			// energy is worth more in the upper partition
			p.Minimize(lp.V(energy["upper"]).Times(-1))

			sol := lp.Solve(p, lp.Options{Policy: tt.policy})
			require.Equal(t, lp.StatusOptimal, sol.Status, "err: %v", sol.Err)
			assert.InDelta(t, tt.upper, sol.Value(energy["upper"]), tol)
			assert.InDelta(t, tt.lower, sol.Value(energy["lower"]), tol)
			assert.InDelta(t, -tt.upper, sol.Objective, tol)
		})
	}
}

func TestCatalogCoversEveryKind(t *testing.T) {
	kinds := map[Kind]bool{}
	for _, d := range Catalog() {
		kinds[d.Kind] = true
	}
	for _, k := range []Kind{KindPassthrough, KindPowerLimit, KindEfficiency, KindPricing, KindDemandPricing, KindSocPricing, KindBatteryBalance} {
		assert.True(t, kinds[k], "missing %s", k)
	}
}
