package network

import (
	"sort"

	"energy-network/internal/element"
	"energy-network/internal/lp"
)

// Result is the optimum read back per element and connection. Power is in kW
// per period, energy in kWh at period boundaries.
type Result struct {
	Status      lp.Status                   `json:"status"`
	Objective   float64                     `json:"objective"`
	Nodes       int                         `json:"nodes"`
	Error       string                      `json:"error,omitempty"`
	Elements    map[string]ElementResult    `json:"elements,omitempty"`
	Connections map[string]ConnectionResult `json:"connections,omitempty"`
	// Costs splits the objective by the element or connection owning each
	// priced variable.
	Costs map[string]float64 `json:"costs,omitempty"`
	// Unpriced names tagged constraints implied by others, which carry no
	// shadow price of their own.
	Unpriced []string `json:"unpriced,omitempty"`

	Solution *lp.Solution `json:"-"`
}

// ElementResult holds one element's schedule.
type ElementResult struct {
	Name string       `json:"name"`
	Kind element.Kind `json:"kind"`
	// NetInflow is the power delivered into the element by all connections.
	NetInflow []float64 `json:"net_inflow"`
	// Energy has one entry per period boundary; storage only.
	Energy []float64 `json:"energy,omitempty"`
	// Price is the marginal cost of one more kWh consumed at a junction.
	Price  []float64            `json:"price,omitempty"`
	Shadow map[string][]float64 `json:"shadow,omitempty"`
}

// ConnectionResult holds one connection's flows at both ends.
type ConnectionResult struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Target string `json:"target"`
	// Forward and Reverse are measured at the source end.
	Forward         []float64            `json:"forward"`
	Reverse         []float64            `json:"reverse"`
	PowerIntoSource []float64            `json:"power_into_source"`
	PowerIntoTarget []float64            `json:"power_into_target"`
	Shadow          map[string][]float64 `json:"shadow,omitempty"`
}

// Net is forward minus reverse at the source end.
func (c ConnectionResult) Net() []float64 {
	out := make([]float64, len(c.Forward))
	for t := range out {
		out[t] = c.Forward[t] - c.Reverse[t]
	}
	return out
}

// Solve runs the solver and collects the result.
func (m *Model) Solve(opts lp.Options) *Result {
	sol := lp.Solve(m.Problem, opts)
	res := &Result{Status: sol.Status, Nodes: sol.Nodes, Solution: sol}
	if sol.Err != nil {
		res.Error = sol.Err.Error()
	}
	if sol.Status != lp.StatusOptimal {
		return res
	}
	res.Objective = sol.Objective
	res.Costs = make(map[string]float64)
	for _, term := range m.Problem.Objective().Terms {
		res.Costs[m.Problem.VarKey(term.Var).Entity] += term.Coef * sol.Value(term.Var)
	}
	for _, key := range sol.Unpriced {
		res.Unpriced = append(res.Unpriced, key.String())
	}
	shadows := groupShadows(sol.Dual)
	hours := m.Grid.Hours()

	res.Elements = make(map[string]ElementResult, len(m.network.Elements))
	for _, el := range m.network.Elements {
		name := el.ElementName()
		er := ElementResult{
			Name:      name,
			Kind:      el.Kind(),
			NetInflow: evalAll(sol, m.inflow[name]),
			Shadow:    shadows[name],
		}
		if st, ok := m.storage[name]; ok {
			er.Energy = evalAll(sol, st.Energy)
		}
		if balance, ok := er.Shadow["balance"]; ok {
			sign := 1.0
			if j, ok := el.(element.Junction); ok {
				if sense, _ := j.Balance(); sense == lp.LessEq {
					sign = -1
				}
			}
			er.Price = make([]float64, len(hours))
			for t := range hours {
				if t < len(balance) {
					er.Price[t] = sign * balance[t] / hours[t]
				}
			}
		}
		res.Elements[name] = er
	}

	res.Connections = make(map[string]ConnectionResult, len(m.flows))
	for _, cf := range m.flows {
		cr := ConnectionResult{
			Name:            cf.conn.Name,
			Source:          cf.conn.Source,
			Target:          cf.conn.Target,
			Forward:         evalAll(sol, cf.in.Forward),
			Reverse:         evalAll(sol, cf.in.Reverse),
			PowerIntoSource: make([]float64, len(hours)),
			PowerIntoTarget: make([]float64, len(hours)),
			Shadow:          shadows[cf.conn.Name],
		}
		outF, outR := evalAll(sol, cf.out.Forward), evalAll(sol, cf.out.Reverse)
		for t := range hours {
			cr.PowerIntoSource[t] = cr.Reverse[t] - cr.Forward[t]
			cr.PowerIntoTarget[t] = outF[t] - outR[t]
		}
		res.Connections[cf.conn.Name] = cr
	}
	return res
}

// ElementNames lists elements in a stable order.
func (r *Result) ElementNames() []string {
	return sortedKeys(r.Elements)
}

// ConnectionNames lists connections in a stable order.
func (r *Result) ConnectionNames() []string {
	return sortedKeys(r.Connections)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func evalAll(sol *lp.Solution, exprs []lp.Expr) []float64 {
	out := make([]float64, len(exprs))
	for i, e := range exprs {
		out[i] = sol.Eval(e)
	}
	return out
}

// groupShadows arranges duals as entity -> quantity -> per-period values.
func groupShadows(duals map[lp.Key]float64) map[string]map[string][]float64 {
	out := make(map[string]map[string][]float64)
	for k, v := range duals {
		byQty, ok := out[k.Entity]
		if !ok {
			byQty = make(map[string][]float64)
			out[k.Entity] = byQty
		}
		vals := byQty[k.Quantity]
		if k.Period >= len(vals) {
			grown := make([]float64, k.Period+1)
			copy(grown, vals)
			vals = grown
		}
		vals[k.Period] = v
		byQty[k.Quantity] = vals
	}
	return out
}
