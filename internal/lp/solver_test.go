package lp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

func key(q string) Key { return Key{Entity: "test", Quantity: q} }

func TestSolveTwoConstraintLP(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	y := p.NewVar(key("y"), 0, math.Inf(1))
	p.AddTagged(key("c1"), V(x).Plus(V(y).Times(2)), LessEq, C(4))
	p.AddTagged(key("c2"), V(x).Times(3).Plus(V(y)), LessEq, C(6))
	p.Minimize(V(x).Plus(V(y)).Times(-1))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, -2.8, sol.Objective, tol)
	assert.InDelta(t, 1.6, sol.Value(x), tol)
	assert.InDelta(t, 1.2, sol.Primal[key("y")], tol)
	assert.InDelta(t, 0.4, sol.Dual[key("c1")], tol)
	assert.InDelta(t, 0.2, sol.Dual[key("c2")], tol)
}

func TestSolveHonoursVariableBounds(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 1, 3)
	y := p.NewVar(key("y"), 2, 2)
	p.Add(key("sum"), V(x).Plus(V(y)), LessEq, C(10))
	p.Minimize(V(x).Times(-1).Plus(V(y)))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 3, sol.Value(x), tol)
	assert.InDelta(t, 2, sol.Value(y), tol)
	assert.InDelta(t, -1, sol.Objective, tol)
	assert.Nil(t, sol.Dual)
}

func TestSolveInfeasible(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	p.Add(key("neg"), V(x), LessEq, C(-1))
	p.Minimize(V(x))

	sol := Solve(p, Options{})
	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.ErrorIs(t, sol.Err, ErrInfeasible)
	assert.Nil(t, sol.Primal)
}

func TestSolveUnbounded(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	p.Minimize(V(x).Times(-1))
	assert.Equal(t, StatusUnbounded, Solve(p, Options{}).Status)

	p = NewProblem()
	x = p.NewVar(key("x"), 0, math.Inf(1))
	y := p.NewVar(key("y"), 0, math.Inf(1))
	p.Add(key("gap"), V(x).Minus(V(y)), LessEq, C(1))
	p.Minimize(V(x).Plus(V(y)).Times(-1))
	assert.Equal(t, StatusUnbounded, Solve(p, Options{}).Status)
}

func TestSolveDependentRows(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	y := p.NewVar(key("y"), 0, math.Inf(1))
	p.AddTagged(key("a"), V(x).Plus(V(y)), Equal, C(2))
	p.Add(key("b"), V(x).Times(2).Plus(V(y).Times(2)), Equal, C(4))
	p.Minimize(V(x).Plus(V(y).Times(2)))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 2, sol.Objective, tol)
	assert.InDelta(t, 1, sol.Dual[key("a")], tol)

	p = NewProblem()
	x = p.NewVar(key("x"), 0, math.Inf(1))
	y = p.NewVar(key("y"), 0, math.Inf(1))
	p.Add(key("a"), V(x).Plus(V(y)), Equal, C(2))
	p.Add(key("b"), V(x).Times(2).Plus(V(y).Times(2)), Equal, C(5))
	p.Minimize(V(x))
	assert.Equal(t, StatusInfeasible, Solve(p, Options{}).Status)
}

func TestImpliedTaggedRowIsUnpriced(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	y := p.NewVar(key("y"), 0, math.Inf(1))
	z := p.NewVar(key("z"), 1, 1)
	p.Add(key("first"), V(x).Times(3).Plus(V(y).Times(3)), Equal, C(6))
	p.AddTagged(key("a"), V(x).Plus(V(y)), Equal, C(2))
	p.AddTagged(key("b"), V(x).Times(2).Plus(V(y).Times(2)), Equal, C(4))
	p.AddTagged(key("fixed"), V(z), LessEq, C(2))
	p.Minimize(V(x).Plus(V(y).Times(2)))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, 1, sol.Dual[key("a")], tol)
	assert.NotContains(t, sol.Dual, key("b"))
	assert.NotContains(t, sol.Dual, key("fixed"))
	assert.ElementsMatch(t, []Key{key("b"), key("fixed")}, sol.Unpriced)
}

func TestPreferenceBreaksTiesOutsideObjective(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, 1)
	y := p.NewVar(key("y"), 0, 1)
	p.Add(key("cover"), V(x).Plus(V(y)), GreaterEq, C(1))
	p.Minimize(V(x).Plus(V(y)))
	p.Prefer(V(y).Times(0.1))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 1, sol.Value(x), tol)
	assert.InDelta(t, 0, sol.Value(y), tol)
	assert.InDelta(t, 1, sol.Objective, tol)
	assert.Len(t, p.Objective().Terms, 2)
}

// A week of hourly inventory balances where cheap hours tie, so the optimum
// is degenerate. The marginal cost of demand is the cheapest earlier price.
func TestShadowPricesOnDegenerateHorizon(t *testing.T) {
	const periods = 168
	p := NewProblem()
	var cost []Term
	store := p.NewVar(Key{Entity: "test", Quantity: "store", Period: 0}, 0, 0)
	for i := 0; i < periods; i++ {
		price := 2.0
		if i%5 == 0 {
			price = 1
		}
		buy := p.NewVar(Key{Entity: "test", Quantity: "buy", Period: i}, 0, math.Inf(1))
		next := p.NewVar(Key{Entity: "test", Quantity: "store", Period: i + 1}, 0, 1000)
		p.AddTagged(Key{Entity: "test", Quantity: "balance", Period: i},
			V(store).Plus(V(buy)).Minus(V(next)), Equal, C(1))
		cost = append(cost, Term{Var: buy, Coef: price})
		store = next
	}
	p.Minimize(Expr{Terms: cost})

	start := time.Now()
	sol := Solve(p, Options{})
	elapsed := time.Since(start)
	require.Equal(t, StatusOptimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, periods, sol.Objective, 1e-5)
	require.Len(t, sol.Dual, periods)
	for i := 0; i < periods; i++ {
		assert.InDelta(t, 1, sol.Dual[Key{Entity: "test", Quantity: "balance", Period: i}], 1e-5, "period %d", i)
	}
	assert.Empty(t, sol.Unpriced)
	assert.Less(t, elapsed, 20*time.Second)
}

func TestShadowPriceComplementarySlackness(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	p.AddTagged(key("floor"), V(x), GreaterEq, C(3))
	p.AddTagged(key("loose"), V(x), GreaterEq, C(1))
	p.AddTagged(key("cap"), V(x), LessEq, C(10))
	p.Minimize(V(x).Times(2))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 2, sol.Dual[key("floor")], tol)
	assert.Zero(t, sol.Dual[key("loose")])
	assert.Zero(t, sol.Dual[key("cap")])
}

func TestShadowPriceEquality(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, math.Inf(1))
	p.AddTagged(key("fix"), V(x), Equal, C(2))
	p.Minimize(V(x).Times(3))

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 6, sol.Objective, tol)
	assert.InDelta(t, 3, sol.Dual[key("fix")], tol)
}

func TestDuplicateTagIsAnError(t *testing.T) {
	p := NewProblem()
	x := p.NewVar(key("x"), 0, 1)
	p.AddTagged(key("dup"), V(x), LessEq, C(1))
	p.AddTagged(key("dup"), V(x), LessEq, C(1))

	sol := Solve(p, Options{})
	assert.Equal(t, StatusError, sol.Status)
	assert.Error(t, sol.Err)
}

func knapsack() (*Problem, []Var) {
	p := NewProblem()
	values := []float64{10, 7, 4}
	weights := []float64{3, 2, 2}
	var zs []Var
	var weight, value Expr
	for i := range values {
		z := p.NewCandidate("pick", Key{Entity: "item", Quantity: "pick", Period: i})
		zs = append(zs, z)
		weight = weight.AddTerm(z, weights[i])
		value = value.AddTerm(z, values[i])
	}
	p.AddTagged(key("capacity"), weight, LessEq, C(4))
	p.Minimize(value.Times(-1))
	return p, zs
}

func TestEscalationModes(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want float64
	}{
		{"continuous", Continuous, -(7 + 10*2.0/3)},
		{"first", EscalateFirst, -13.5},
		{"all", EscalateAll, -11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, zs := knapsack()
			sol := Solve(p, Options{Policy: Policy{Groups: map[string]Mode{"pick": tt.mode}}})
			require.Equal(t, StatusOptimal, sol.Status, "err: %v", sol.Err)
			assert.InDelta(t, tt.want, sol.Objective, tol)
			assert.Contains(t, sol.Dual, key("capacity"))
			if tt.mode == EscalateAll {
				assert.Greater(t, sol.Nodes, 1)
				assert.InDelta(t, 0, sol.Value(zs[0]), tol)
				assert.InDelta(t, 1, sol.Value(zs[1]), tol)
				assert.InDelta(t, 1, sol.Value(zs[2]), tol)
			}
		})
	}
}

func TestNodeLimitWithoutIncumbent(t *testing.T) {
	p, _ := knapsack()
	sol := Solve(p, Options{Policy: Policy{Default: EscalateAll}, MaxNodes: 1})
	assert.Equal(t, StatusError, sol.Status)
	assert.ErrorIs(t, sol.Err, ErrNodeLimit)
}

func TestPolicyModeFor(t *testing.T) {
	pol := Policy{
		Default: Continuous,
		Groups: map[string]Mode{
			"*/direction":        EscalateAll,
			"inverter/direction": EscalateFirst,
		},
	}
	assert.Equal(t, EscalateFirst, pol.ModeFor("inverter/direction"))
	assert.Equal(t, EscalateAll, pol.ModeFor("grid/direction"))
	assert.Equal(t, Continuous, pol.ModeFor("grid/other"))

	m, err := ParseMode("ALL")
	require.NoError(t, err)
	assert.Equal(t, EscalateAll, m)
	_, err = ParseMode("sometimes")
	assert.Error(t, err)
}

func TestProblemGroupDefaultMode(t *testing.T) {
	p, _ := knapsack()
	p.DefaultMode("pick", EscalateAll)
	assert.Equal(t, []string{"pick"}, p.Groups())

	sol := Solve(p, Options{})
	require.Equal(t, StatusOptimal, sol.Status, "err: %v", sol.Err)
	assert.InDelta(t, -11, sol.Objective, tol)

	p, _ = knapsack()
	p.DefaultMode("pick", EscalateAll)
	sol = Solve(p, Options{Policy: Policy{Groups: map[string]Mode{"p*": Continuous}}})
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, -(7 + 10*2.0/3), sol.Objective, tol)
	assert.True(t, Policy{Groups: map[string]Mode{"p*": Continuous}}.Names("pick"))
	assert.False(t, Policy{Default: EscalateAll}.Names("pick"))
}

func TestLookupBackend(t *testing.T) {
	b, err := LookupBackend("")
	require.NoError(t, err)
	assert.Equal(t, "simplex", b.Name())

	_, err = LookupBackend("cplex")
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Equal(t, []string{"simplex"}, BackendNames())
}

func TestExprHelpersDoNotAlias(t *testing.T) {
	a := V(0).AddTerm(1, 2)
	b := a.Times(3)
	c := a.Plus(C(1))
	assert.Equal(t, 1.0, a.Terms[0].Coef)
	assert.Equal(t, 6.0, b.Terms[1].Coef)
	assert.Equal(t, 1.0, c.Constant)
	assert.Equal(t, 7.0, c.Eval([]float64{2, 2}))
}
