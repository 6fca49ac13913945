// Package lp builds linear programs over named variables and solves them
// through a pluggable backend.
//
// Variables and constraints are addressed by Key so callers can read primal
// values and shadow prices back without tracking indices. A Problem is built
// once and solved with Solve; solving never mutates it.
package lp

import (
	"fmt"
	"math"
)

// Var indexes a variable inside one Problem.
type Var int

// Key names a variable or constraint: the owning element or connection, the
// quantity, and the period it applies to.
type Key struct {
	Entity   string
	Quantity string
	Period   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s[%d]", k.Entity, k.Quantity, k.Period)
}

// Sense is the comparison a constraint enforces between its sides.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "=="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is one coefficient-variable product.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression. Terms may repeat a variable; they are summed.
// Methods return new expressions and never modify the receiver.
type Expr struct {
	Terms    []Term
	Constant float64
}

// V is the expression consisting of v alone.
func V(v Var) Expr { return Expr{Terms: []Term{{Var: v, Coef: 1}}} }

// C is a constant expression.
func C(c float64) Expr { return Expr{Constant: c} }

// Sum adds expressions.
func Sum(es ...Expr) Expr {
	var n int
	for _, e := range es {
		n += len(e.Terms)
	}
	out := Expr{Terms: make([]Term, 0, n)}
	for _, e := range es {
		out.Terms = append(out.Terms, e.Terms...)
		out.Constant += e.Constant
	}
	return out
}

func (e Expr) Plus(o Expr) Expr { return Sum(e, o) }

func (e Expr) Minus(o Expr) Expr { return Sum(e, o.Times(-1)) }

// Times scales every coefficient and the constant by k.
func (e Expr) Times(k float64) Expr {
	out := Expr{Terms: make([]Term, len(e.Terms)), Constant: e.Constant * k}
	for i, t := range e.Terms {
		out.Terms[i] = Term{Var: t.Var, Coef: t.Coef * k}
	}
	return out
}

// AddTerm returns e + coef*v.
func (e Expr) AddTerm(v Var, coef float64) Expr {
	out := Expr{Terms: make([]Term, len(e.Terms), len(e.Terms)+1), Constant: e.Constant}
	copy(out.Terms, e.Terms)
	out.Terms = append(out.Terms, Term{Var: v, Coef: coef})
	return out
}

// Eval computes the expression at x, indexed by Var.
func (e Expr) Eval(x []float64) float64 {
	v := e.Constant
	for _, t := range e.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// Constraint is Expr <sense> 0 once both sides have been moved left.
type Constraint struct {
	Key    Key
	Expr   Expr
	Sense  Sense
	Tagged bool
}

type variable struct {
	key       Key
	lb, ub    float64
	group     string
	candidate bool
}

// Problem is a linear program under construction.
type Problem struct {
	vars        []variable
	constraints []Constraint
	objective   Expr
	preference  Expr
	groups      map[string][]Var
	groupOrder  []string
	groupMode   map[string]Mode
	tagged      map[Key]int
	err         error
}

func NewProblem() *Problem {
	return &Problem{
		groups:    make(map[string][]Var),
		groupMode: make(map[string]Mode),
		tagged:    make(map[Key]int),
	}
}

// NewVar adds a continuous variable with bounds lb <= x <= ub.
// lb must be finite; ub may be math.Inf(1).
func (p *Problem) NewVar(key Key, lb, ub float64) Var {
	if p.err == nil && (math.IsInf(lb, 0) || math.IsNaN(lb) || math.IsNaN(ub) || ub < lb) {
		p.err = fmt.Errorf("lp: variable %s has invalid bounds [%g, %g]", key, lb, ub)
	}
	p.vars = append(p.vars, variable{key: key, lb: lb, ub: ub})
	return Var(len(p.vars) - 1)
}

// NewCandidate adds a [0, 1] variable that an escalation policy may
// restrict to {0, 1}. Candidates are grouped so the policy can escalate
// per group, in creation order.
func (p *Problem) NewCandidate(group string, key Key) Var {
	v := p.NewVar(key, 0, 1)
	p.vars[v].group = group
	p.vars[v].candidate = true
	if _, ok := p.groups[group]; !ok {
		p.groupOrder = append(p.groupOrder, group)
	}
	p.groups[group] = append(p.groups[group], v)
	return v
}

// DefaultMode sets the escalation group gets when a policy with a
// Continuous default does not name it.
func (p *Problem) DefaultMode(group string, m Mode) {
	p.groupMode[group] = m
}

// Add records lhs <sense> rhs.
func (p *Problem) Add(key Key, lhs Expr, sense Sense, rhs Expr) {
	p.add(key, lhs, sense, rhs, false)
}

// AddTagged records lhs <sense> rhs and requests its shadow price.
func (p *Problem) AddTagged(key Key, lhs Expr, sense Sense, rhs Expr) {
	p.add(key, lhs, sense, rhs, true)
}

func (p *Problem) add(key Key, lhs Expr, sense Sense, rhs Expr, tagged bool) {
	if tagged {
		if _, dup := p.tagged[key]; dup && p.err == nil {
			p.err = fmt.Errorf("lp: duplicate tagged constraint %s", key)
		}
		p.tagged[key] = len(p.constraints)
	}
	p.constraints = append(p.constraints, Constraint{
		Key:    key,
		Expr:   lhs.Minus(rhs),
		Sense:  sense,
		Tagged: tagged,
	})
}

// Minimize adds e to the objective. Repeated calls accumulate.
func (p *Problem) Minimize(e Expr) {
	p.objective.Terms = append(p.objective.Terms, e.Terms...)
	p.objective.Constant += e.Constant
}

// Prefer adds e to the minimized cost without counting it in the reported
// objective. It breaks ties between otherwise equal optima.
func (p *Problem) Prefer(e Expr) {
	p.preference.Terms = append(p.preference.Terms, e.Terms...)
	p.preference.Constant += e.Constant
}

// cost is what the backend minimizes: the objective plus preferences.
func (p *Problem) cost() Expr {
	if len(p.preference.Terms) == 0 {
		return p.objective
	}
	terms := make([]Term, 0, len(p.objective.Terms)+len(p.preference.Terms))
	terms = append(terms, p.objective.Terms...)
	terms = append(terms, p.preference.Terms...)
	return Expr{Terms: terms, Constant: p.objective.Constant + p.preference.Constant}
}

func (p *Problem) NumVars() int { return len(p.vars) }

func (p *Problem) NumConstraints() int { return len(p.constraints) }

func (p *Problem) NumTagged() int { return len(p.tagged) }

// VarKey returns the key v was created with.
func (p *Problem) VarKey(v Var) Key { return p.vars[v].key }

// Bounds returns the declared bounds of v.
func (p *Problem) Bounds(v Var) (lb, ub float64) { return p.vars[v].lb, p.vars[v].ub }

func (p *Problem) Constraint(i int) Constraint { return p.constraints[i] }

// Objective is the reported objective; preferences are not part of it.
func (p *Problem) Objective() Expr { return p.objective }

// Groups lists candidate groups in creation order.
func (p *Problem) Groups() []string {
	out := make([]string, len(p.groupOrder))
	copy(out, p.groupOrder)
	return out
}

// Candidates lists the variables of a group in creation order.
func (p *Problem) Candidates(group string) []Var {
	return append([]Var(nil), p.groups[group]...)
}

// Err reports the first construction error, if any.
func (p *Problem) Err() error { return p.err }
