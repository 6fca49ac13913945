// Package network assembles elements and connections into one linear program
// over a period grid and reads the optimum back per element and connection.
package network

import (
	"math"

	"energy-network/internal/element"
	"energy-network/internal/lp"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"
)

// Connection carries power from Source to Target through Segments.
// Forward flow runs source to target, reverse flow target to source.
type Connection struct {
	Name     string
	Source   string
	Target   string
	Segments []segment.Segment
}

// Network is the static description of elements and how they connect.
type Network struct {
	Elements    []element.Element
	Connections []Connection
}

// Add appends elements.
func (n *Network) Add(elements ...element.Element) {
	n.Elements = append(n.Elements, elements...)
}

// Connect appends a connection.
func (n *Network) Connect(name, source, target string, segments ...segment.Segment) {
	n.Connections = append(n.Connections, Connection{Name: name, Source: source, Target: target, Segments: segments})
}

// Validate checks the structure without resolving any parameter. Every
// problem found is reported, not just the first.
func (n Network) Validate() error {
	var errs ValidationErrors
	if len(n.Elements) == 0 {
		errs = append(errs, &ValidationError{Kind: KindEmptyNetwork, Name: "network"})
	}
	names := make(map[string]bool, len(n.Elements))
	for _, el := range n.Elements {
		name := el.ElementName()
		if names[name] {
			errs = append(errs, &ValidationError{Kind: KindDuplicateName, Name: name})
		}
		names[name] = true
	}

	linked := make(map[string]bool, len(n.Elements))
	conns := make(map[string]bool, len(n.Connections))
	for _, c := range n.Connections {
		if conns[c.Name] || names[c.Name] {
			errs = append(errs, &ValidationError{Kind: KindDuplicateName, Name: c.Name})
		}
		conns[c.Name] = true
		for _, end := range []string{c.Source, c.Target} {
			if !names[end] {
				errs = append(errs, &ValidationError{Kind: KindUnknownElement, Name: end})
			}
			linked[end] = true
		}
		if c.Source == c.Target {
			errs = append(errs, &ValidationError{Kind: KindSelfLoop, Name: c.Name})
		}
	}
	for _, el := range n.Elements {
		if !linked[el.ElementName()] {
			errs = append(errs, &ValidationError{Kind: KindIsolated, Name: el.ElementName()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type connectionFlows struct {
	conn Connection
	in   segment.Flow
	out  segment.Flow
}

// Model is a network unrolled over a grid, ready to solve. It can be solved
// repeatedly with different options.
type Model struct {
	Problem *lp.Problem
	Grid    timeseries.Grid

	network Network
	storage map[string]segment.Storage
	flows   []connectionFlows
	inflow  map[string][]lp.Expr
}

// Build validates the network and creates every variable and constraint.
func Build(n Network, grid timeseries.Grid) (*Model, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if grid.Len() == 0 {
		return nil, &ValidationError{Kind: KindSeriesLength, Name: "grid", Err: timeseries.ErrEmptyGrid}
	}

	p := lp.NewProblem()
	m := &Model{
		Problem: p,
		Grid:    grid,
		network: n,
		storage: make(map[string]segment.Storage),
		inflow:  make(map[string][]lp.Expr, len(n.Elements)),
	}
	periods := grid.Len()
	for _, el := range n.Elements {
		m.inflow[el.ElementName()] = make([]lp.Expr, periods)
		s, ok := el.(element.Storage)
		if !ok {
			continue
		}
		bounds, err := s.Resolve(grid)
		if err != nil {
			return nil, classify(s.Name, err)
		}
		m.storage[s.Name] = segment.Storage{Energy: s.Energy(p, bounds), Capacity: bounds.Capacity}
	}

	for _, c := range n.Connections {
		var in segment.Flow
		for t := 0; t < periods; t++ {
			f := p.NewVar(lp.Key{Entity: c.Name, Quantity: "forward", Period: t}, 0, math.Inf(1))
			r := p.NewVar(lp.Key{Entity: c.Name, Quantity: "reverse", Period: t}, 0, math.Inf(1))
			in.Forward = append(in.Forward, lp.V(f))
			in.Reverse = append(in.Reverse, lp.V(r))
		}
		ctx := segment.Context{
			Problem:    p,
			Grid:       grid,
			Connection: c.Name,
			Source:     c.Source,
			Target:     c.Target,
			Storage:    m.lookupStorage,
		}
		out, err := segment.Chain(ctx, c.Segments, in)
		if err != nil {
			return nil, classify(c.Name, err)
		}
		m.flows = append(m.flows, connectionFlows{conn: c, in: in, out: out})

		src, dst := m.inflow[c.Source], m.inflow[c.Target]
		for t := 0; t < periods; t++ {
			src[t] = src[t].Plus(in.Reverse[t]).Minus(in.Forward[t])
			dst[t] = dst[t].Plus(out.Forward[t]).Minus(out.Reverse[t])
		}
	}

	hours := grid.Hours()
	for _, el := range n.Elements {
		switch e := el.(type) {
		case element.Junction:
			e.Constrain(p, m.inflow[e.Name])
		case element.Storage:
			e.Conserve(p, m.storage[e.Name].Energy, m.inflow[e.Name], hours)
		}
	}
	return m, nil
}

func (m *Model) lookupStorage(name string) (segment.Storage, bool) {
	s, ok := m.storage[name]
	return s, ok
}

// Optimize builds and solves in one step. The error is non-nil only when the
// network fails validation; solver outcomes are reported in Result.Status.
func Optimize(n Network, grid timeseries.Grid, opts lp.Options) (*Result, error) {
	m, err := Build(n, grid)
	if err != nil {
		return nil, err
	}
	return m.Solve(opts), nil
}
