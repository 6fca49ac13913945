package lp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// structTol decides when a bound range collapses to a fixed value and when a
// row is numerically dependent on others.
const structTol = 1e-9

// Status is the outcome of a solve.
type Status int

const (
	StatusUnsolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusError
)

var statusNames = [...]string{"unsolved", "optimal", "infeasible", "unbounded", "error"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("lp: unknown status %q", b)
}

// Solution holds the primal values of every variable and the shadow prices
// of tagged constraints. Objective excludes preferences.
//
// Shadow prices are the change in objective per unit change of the
// constraint's right-hand side, signed so that inequalities are >= 0:
// for <= it is the saving from raising the bound, for >= the saving from
// lowering it. For == it is the marginal cost of raising the right-hand side.
type Solution struct {
	Status    Status
	Objective float64
	Primal    map[Key]float64
	Dual      map[Key]float64
	// Unpriced lists tagged constraints with no shadow price of their own:
	// those implied by other constraints and those over fixed variables only.
	Unpriced []Key
	Nodes    int
	Err      error

	x []float64
}

// Value returns the primal value of v, or 0 when there is no solution.
func (s *Solution) Value(v Var) float64 {
	if s.x == nil {
		return 0
	}
	return s.x[v]
}

// Eval evaluates e at the primal solution.
func (s *Solution) Eval(e Expr) float64 {
	if s.x == nil {
		return e.Constant
	}
	return e.Eval(s.x)
}

// Options configure Solve. The zero value solves the continuous relaxation
// with the simplex backend.
type Options struct {
	Backend Backend
	Policy  Policy
	// Tolerance for integrality and complementary slackness. Zero means 1e-7.
	Tolerance float64
	// MaxNodes caps branch and bound. Zero means 10000.
	MaxNodes int
	Logger   zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Backend == nil {
		o.Backend = Simplex{}
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-7
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = 10000
	}
	return o
}

// Solve optimizes p. Failures are reported through Solution.Status and
// Solution.Err; Solve itself never panics on a malformed problem.
func Solve(p *Problem, opts Options) *Solution {
	opts = opts.withDefaults()
	if p.err != nil {
		return &Solution{Status: StatusError, Err: p.err}
	}

	lb := make([]float64, len(p.vars))
	ub := make([]float64, len(p.vars))
	for i, v := range p.vars {
		lb[i], ub[i] = v.lb, v.ub
	}

	ints := opts.Policy.integers(p)
	var r relaxation
	nodes := 1
	if len(ints) == 0 {
		r = solveRelaxation(p, lb, ub, opts)
	} else {
		r, nodes = branchAndBound(p, lb, ub, ints, opts)
	}

	sol := &Solution{Status: r.status, Nodes: nodes, Err: r.err}
	opts.Logger.Debug().
		Str("backend", opts.Backend.Name()).
		Int("vars", len(p.vars)).
		Int("constraints", len(p.constraints)).
		Int("integers", len(ints)).
		Int("nodes", nodes).
		Stringer("status", r.status).
		Msg("lp solve finished")
	if r.status != StatusOptimal {
		return sol
	}

	sol.x = r.x
	sol.Objective = p.objective.Eval(r.x)
	sol.Primal = make(map[Key]float64, len(p.vars))
	for i, v := range p.vars {
		sol.Primal[v.key] = r.x[i]
	}

	if len(p.tagged) > 0 {
		for _, v := range ints {
			lb[v] = math.Round(r.x[v])
			ub[v] = lb[v]
		}
		dual, unpriced, err := shadowPrices(p, lb, ub, r.x, opts)
		if err != nil {
			opts.Logger.Warn().Err(err).Msg("shadow prices unavailable")
		}
		sol.Dual, sol.Unpriced = dual, unpriced
	}
	return sol
}

type relaxation struct {
	status Status
	x      []float64
	obj    float64
	err    error
}

func statusOf(err error) relaxation {
	switch {
	case errors.Is(err, ErrInfeasible):
		return relaxation{status: StatusInfeasible, err: err}
	case errors.Is(err, ErrUnbounded):
		return relaxation{status: StatusUnbounded, err: err}
	default:
		return relaxation{status: StatusError, err: err}
	}
}

func solveRelaxation(p *Problem, lb, ub []float64, opts Options) relaxation {
	sf, err := toStandard(p, lb, ub, structTol)
	if err != nil {
		return statusOf(err)
	}
	var xs []float64
	if sf.rows() > 0 {
		xs, err = opts.Backend.Solve(sf.c, sf.a, sf.b)
		if err != nil {
			return statusOf(err)
		}
	}
	x := sf.expand(xs)
	return relaxation{status: StatusOptimal, x: x, obj: p.cost().Eval(x)}
}

type bbNode struct {
	lb, ub []float64
}

// branchAndBound runs depth-first search over LP relaxations, branching on
// the most fractional integer variable. Children never mutate slices they
// share with their parent.
func branchAndBound(p *Problem, lb, ub []float64, ints []Var, opts Options) (relaxation, int) {
	stack := []bbNode{{lb: lb, ub: ub}}
	best := relaxation{status: StatusInfeasible, err: ErrInfeasible}
	var nodes int
	for len(stack) > 0 {
		if nodes >= opts.MaxNodes {
			if best.status == StatusOptimal {
				opts.Logger.Warn().Int("nodes", nodes).Msg("node limit reached, returning incumbent")
				return best, nodes
			}
			return relaxation{status: StatusError, err: ErrNodeLimit}, nodes
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		r := solveRelaxation(p, n.lb, n.ub, opts)
		if r.status == StatusInfeasible {
			continue
		}
		if r.status != StatusOptimal {
			return r, nodes
		}
		if best.status == StatusOptimal && r.obj >= best.obj-opts.Tolerance*(1+math.Abs(best.obj)) {
			continue
		}

		branch, dist := Var(-1), 0.0
		for _, v := range ints {
			f := r.x[v] - math.Floor(r.x[v])
			if d := math.Min(f, 1-f); d > opts.Tolerance && d > dist {
				branch, dist = v, d
			}
		}
		if branch < 0 {
			for _, v := range ints {
				r.x[v] = math.Round(r.x[v])
			}
			r.obj = p.cost().Eval(r.x)
			best = r
			continue
		}

		fl := math.Floor(r.x[branch])
		down := bbNode{lb: n.lb, ub: clone(n.ub)}
		down.ub[branch] = fl
		up := bbNode{lb: clone(n.lb), ub: n.ub}
		up.lb[branch] = fl + 1
		// the child nearer the relaxed value is explored first
		if r.x[branch]-fl >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}
	return best, nodes
}

func clone(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	return out
}

// shadowPrices prices the tagged constraints at the optimum x. The prices
// are the dual y of the standard form, the derivative of the optimum with
// respect to b, read off an optimal basis. Tagged constraints without a row
// of their own are returned as unpriced. When no basis can be recovered the
// map is nil and every tagged constraint is unpriced.
func shadowPrices(p *Problem, lb, ub, x []float64, opts Options) (map[Key]float64, []Key, error) {
	sf, err := toStandard(p, lb, ub, structTol)
	if err != nil {
		return nil, taggedKeys(p), err
	}
	var unpriced []Key
	skip := make(map[int]bool, len(sf.unpriced))
	for _, ci := range sf.unpriced {
		skip[ci] = true
		unpriced = append(unpriced, p.constraints[ci].Key)
	}
	sortKeys(unpriced)

	out := make(map[Key]float64, len(p.tagged))
	for key, ci := range p.tagged {
		if !skip[ci] {
			out[key] = 0
		}
	}
	if sf.rows() == 0 {
		return out, unpriced, nil
	}

	y, err := basisDuals(sf, sf.point(x), opts.Tolerance)
	if err != nil {
		return nil, taggedKeys(p), fmt.Errorf("dual recovery: %w", err)
	}

	for r, ci := range sf.rowCons {
		if ci < 0 {
			continue
		}
		con := p.constraints[ci]
		if !con.Tagged {
			continue
		}
		lhs := con.Expr.Eval(x)
		var price, slack float64
		switch con.Sense {
		case LessEq:
			price, slack = -y[r], -lhs
		case GreaterEq:
			price, slack = y[r], lhs
		default:
			price = y[r]
		}
		if slack > 10*opts.Tolerance*(1+math.Abs(con.Expr.Constant)) || math.Abs(price) < 1e-9 {
			price = 0
		}
		out[con.Key] = price
	}
	return out, unpriced, nil
}

func taggedKeys(p *Problem) []Key {
	keys := make([]Key, 0, len(p.tagged))
	for key := range p.tagged {
		keys = append(keys, key)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}

// basisDuals returns the dual vector y of an optimal basis around the
// standard-form point xs: Bᵀy = c_B with every reduced cost c - Aᵀy >= 0.
// The backend reports no basis, so one is built from the columns xs uses,
// completed with slacks, and then repaired with Bland's rule pivots until
// it is dual feasible.
func basisDuals(sf *standardForm, xs []float64, tol float64) ([]float64, error) {
	m, n := sf.a.Dims()

	rank := func(j int) int {
		switch {
		case xs[j] > tol:
			return 0
		case !sf.structural[j]:
			return 1
		default:
			return 2
		}
	}
	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rank(order[a]), rank(order[b])
		if ra != rb {
			return ra < rb
		}
		return ra == 0 && xs[order[a]] > xs[order[b]]
	})

	var e echelon
	basis := make([]int, 0, m)
	for _, j := range order {
		if len(basis) == m {
			break
		}
		col := mat.Col(nil, j, sf.a)
		if ok, _ := e.add(col, 0, math.Max(1, maxAbs(col)), tol); ok {
			basis = append(basis, j)
		}
	}
	if len(basis) < m {
		return nil, fmt.Errorf("%w: columns span %d of %d rows", ErrBackend, len(basis), m)
	}

	inBasis := make([]bool, n)
	xb := make([]float64, m)
	cb := make([]float64, m)
	for i, j := range basis {
		inBasis[j] = true
		xb[i] = math.Max(0, xs[j])
		cb[i] = sf.c[j]
	}
	binv, err := invertBasis(sf.a, basis)
	if err != nil {
		return nil, err
	}

	cbv := mat.NewVecDense(m, cb)
	y := mat.NewVecDense(m, nil)
	d := mat.NewVecDense(n, nil)
	u := mat.NewVecDense(m, nil)
	for iter := 0; iter < 10*m+100; iter++ {
		y.MulVec(binv.T(), cbv)
		d.MulVec(sf.a.T(), y)

		enter := -1
		for j := 0; j < n; j++ {
			if !inBasis[j] && sf.c[j]-d.AtVec(j) < -1e-9*(1+math.Abs(sf.c[j])) {
				enter = j
				break
			}
		}
		if enter < 0 {
			return y.RawVector().Data, nil
		}

		u.MulVec(binv, sf.a.ColView(enter))
		leave, theta := -1, 0.0
		for i := 0; i < m; i++ {
			ui := u.AtVec(i)
			if ui <= tol {
				continue
			}
			r := xb[i] / ui
			if leave < 0 || r < theta-tol || (r <= theta+tol && basis[i] < basis[leave]) {
				leave, theta = i, r
			}
		}
		if leave < 0 {
			return nil, ErrUnbounded
		}

		for i := range xb {
			xb[i] = math.Max(0, xb[i]-theta*u.AtVec(i))
		}
		xb[leave] = theta
		pivotInverse(binv, u, leave)
		inBasis[basis[leave]] = false
		inBasis[enter] = true
		basis[leave] = enter
		cb[leave] = sf.c[enter]

		if (iter+1)%50 == 0 {
			if binv, err = invertBasis(sf.a, basis); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: dual recovery did not converge", ErrBackend)
}

func invertBasis(a *mat.Dense, basis []int) (*mat.Dense, error) {
	m := len(basis)
	b := mat.NewDense(m, m, nil)
	for i, j := range basis {
		b.SetCol(i, mat.Col(nil, j, a))
	}
	var inv mat.Dense
	if err := inv.Inverse(b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%w: singular basis: %v", ErrBackend, err)
		}
	}
	return &inv, nil
}

// pivotInverse updates binv in place after the column with B⁻¹a = u
// replaces basis position l.
func pivotInverse(binv *mat.Dense, u *mat.VecDense, l int) {
	m, _ := binv.Dims()
	row := binv.RawRowView(l)
	floats.Scale(1/u.AtVec(l), row)
	for i := 0; i < m; i++ {
		if f := u.AtVec(i); i != l && f != 0 {
			floats.AddScaled(binv.RawRowView(i), -f, row)
		}
	}
}
