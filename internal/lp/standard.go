package lp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// standardForm is a Problem rewritten as
//
//	minimize cᵀx' + constant  s.t.  A x' = b, x' >= 0
//
// with every variable shifted by its lower bound, finite upper bounds and
// inequalities turned into slack columns, all-zero columns dropped and
// linearly dependent rows removed.
type standardForm struct {
	c        []float64
	a        *mat.Dense
	b        []float64
	constant float64

	varCol     []int     // Var -> column, -1 when fixed or dropped
	base       []float64 // Var value at x' = 0
	rowCons    []int     // row -> constraint index, -1 for upper-bound rows
	structural []bool    // column -> true for variables, false for slacks

	// unpriced lists tagged constraints without a row of their own: those
	// over fixed variables only and those implied by other equalities.
	unpriced []int
}

func (sf *standardForm) rows() int { return len(sf.b) }

func (sf *standardForm) cols() int { return len(sf.c) }

// point maps a Problem point onto the columns, each slack taking its row's
// residual.
func (sf *standardForm) point(x []float64) []float64 {
	xs := make([]float64, sf.cols())
	for v, col := range sf.varCol {
		if col >= 0 {
			xs[col] = x[v] - sf.base[v]
		}
	}
	if sf.a == nil {
		return xs
	}
	m, n := sf.a.Dims()
	for r := 0; r < m; r++ {
		res, slack := sf.b[r], -1
		for j := 0; j < n; j++ {
			a := sf.a.At(r, j)
			switch {
			case a == 0:
			case sf.structural[j]:
				res -= a * xs[j]
			default:
				slack = j
			}
		}
		if slack >= 0 {
			xs[slack] = res / sf.a.At(r, slack)
		}
	}
	return xs
}

// expand maps a standard-form point back onto the Problem's variables.
func (sf *standardForm) expand(xs []float64) []float64 {
	x := make([]float64, len(sf.base))
	copy(x, sf.base)
	for v, col := range sf.varCol {
		if col >= 0 && xs != nil {
			x[v] += xs[col]
		}
	}
	return x
}

type sparseRow struct {
	coef map[int]float64
	rhs  float64
	cons int
}

func toStandard(p *Problem, lb, ub []float64, tol float64) (*standardForm, error) {
	nv := len(p.vars)
	sf := &standardForm{
		varCol: make([]int, nv),
		base:   make([]float64, nv),
	}

	// Structural columns: one per free-ranging variable.
	var ncol int
	for v := 0; v < nv; v++ {
		if ub[v] < lb[v]-tol {
			return nil, ErrInfeasible
		}
		sf.base[v] = lb[v]
		if ub[v]-lb[v] <= tol {
			sf.varCol[v] = -1
			continue
		}
		sf.varCol[v] = ncol
		ncol++
	}
	nstruct := ncol

	var rows []sparseRow
	for i, con := range p.constraints {
		row := sparseRow{coef: make(map[int]float64), rhs: -con.Expr.Constant, cons: i}
		for _, t := range con.Expr.Terms {
			row.rhs -= t.Coef * sf.base[t.Var]
			if col := sf.varCol[t.Var]; col >= 0 {
				row.coef[col] += t.Coef
			}
		}
		for col, c := range row.coef {
			if c == 0 {
				delete(row.coef, col)
			}
		}
		if len(row.coef) == 0 {
			if !trivialHolds(con.Sense, row.rhs, tol) {
				return nil, ErrInfeasible
			}
			if con.Tagged {
				sf.unpriced = append(sf.unpriced, i)
			}
			continue
		}
		switch con.Sense {
		case LessEq:
			row.coef[ncol] = 1
			ncol++
		case GreaterEq:
			row.coef[ncol] = -1
			ncol++
		}
		rows = append(rows, row)
	}
	for v := 0; v < nv; v++ {
		col := sf.varCol[v]
		if col < 0 || math.IsInf(ub[v], 1) {
			continue
		}
		rows = append(rows, sparseRow{
			coef: map[int]float64{col: 1, ncol: 1},
			rhs:  ub[v] - lb[v],
			cons: -1,
		})
		ncol++
	}

	cost := make([]float64, ncol)
	objective := p.cost()
	sf.constant = objective.Constant
	for _, t := range objective.Terms {
		sf.constant += t.Coef * sf.base[t.Var]
		if col := sf.varCol[t.Var]; col >= 0 {
			cost[col] += t.Coef
		}
	}

	// Drop columns no row touches: they sit at zero unless unbounded below.
	used := make([]bool, ncol)
	for _, row := range rows {
		for col := range row.coef {
			used[col] = true
		}
	}
	remap := make([]int, ncol)
	var kept int
	for col := 0; col < ncol; col++ {
		if !used[col] {
			if cost[col] < -tol {
				return nil, ErrUnbounded
			}
			remap[col] = -1
			continue
		}
		remap[col] = kept
		kept++
	}
	for v := range sf.varCol {
		if col := sf.varCol[v]; col >= 0 && col < nstruct {
			sf.varCol[v] = remap[col]
		}
	}
	sf.c = make([]float64, kept)
	sf.structural = make([]bool, kept)
	for col, k := range remap {
		if k >= 0 {
			sf.c[k] = cost[col]
			sf.structural[k] = col < nstruct
		}
	}
	if len(rows) == 0 {
		return sf, nil
	}

	// Tagged rows go first so a redundant untagged row never displaces one.
	sort.SliceStable(rows, func(i, j int) bool {
		return rowTagged(p, rows[i]) && !rowTagged(p, rows[j])
	})
	dense := make([][]float64, len(rows))
	rhs := make([]float64, len(rows))
	for i, row := range rows {
		dense[i] = make([]float64, kept)
		for col, c := range row.coef {
			dense[i][remap[col]] = c
		}
		rhs[i] = row.rhs
	}
	keep, err := independentRows(dense, rhs, tol)
	if err != nil {
		return nil, err
	}
	chosen := make(map[int]bool, len(keep))
	for _, i := range keep {
		chosen[i] = true
	}
	for i, row := range rows {
		if !chosen[i] && rowTagged(p, row) {
			sf.unpriced = append(sf.unpriced, row.cons)
		}
	}

	sf.a = mat.NewDense(len(keep), kept, nil)
	sf.b = make([]float64, len(keep))
	sf.rowCons = make([]int, len(keep))
	for r, i := range keep {
		sf.a.SetRow(r, dense[i])
		sf.b[r] = rhs[i]
		sf.rowCons[r] = rows[i].cons
	}
	return sf, nil
}

func trivialHolds(sense Sense, rhs, tol float64) bool {
	switch sense {
	case LessEq:
		return rhs >= -tol
	case GreaterEq:
		return rhs <= tol
	default:
		return math.Abs(rhs) <= tol
	}
}

func rowTagged(p *Problem, row sparseRow) bool {
	return row.cons >= 0 && p.constraints[row.cons].Tagged
}

type pivotRow struct {
	coef  []float64
	rhs   float64
	pivot int
}

// echelon holds linearly independent vectors in row echelon form: each kept
// vector is zero at the pivots of those kept before it.
type echelon struct {
	rows []pivotRow
}

// add reduces v and rhs against the kept vectors. When the remainder is not
// negligible relative to scale it is kept and add reports true; otherwise it
// returns the reduced right-hand side. v is consumed.
func (e *echelon) add(v []float64, rhs, scale, tol float64) (bool, float64) {
	for _, br := range e.rows {
		if f := v[br.pivot]; f != 0 {
			floats.AddScaled(v, -f, br.coef)
			rhs -= f * br.rhs
			v[br.pivot] = 0
		}
	}

	piv, big := -1, 0.0
	for j, x := range v {
		if math.Abs(x) > big {
			piv, big = j, math.Abs(x)
		}
	}
	if big <= tol*scale {
		return false, rhs
	}

	inv := 1 / v[piv]
	floats.Scale(inv, v)
	v[piv] = 1
	e.rows = append(e.rows, pivotRow{coef: v, rhs: rhs * inv, pivot: piv})
	return true, rhs
}

// independentRows returns the indices of a maximal linearly independent
// subset of rows, in order. A dropped row whose right-hand side disagrees
// with the combination of kept rows makes the system infeasible.
func independentRows(a [][]float64, b []float64, tol float64) ([]int, error) {
	var e echelon
	var keep []int
	for i, row := range a {
		scale := math.Max(1, math.Max(maxAbs(row), math.Abs(b[i])))
		r := make([]float64, len(row))
		copy(r, row)
		ok, rhs := e.add(r, b[i], scale, tol)
		if !ok {
			if math.Abs(rhs) > 1e3*tol*scale {
				return nil, ErrInfeasible
			}
			continue
		}
		keep = append(keep, i)
	}
	return keep, nil
}

func maxAbs(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
