package lp

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"
)

var (
	ErrInfeasible     = errors.New("lp: problem is infeasible")
	ErrUnbounded      = errors.New("lp: problem is unbounded")
	ErrBackend        = errors.New("lp: backend failure")
	ErrUnknownBackend = errors.New("lp: unknown backend")
	ErrNodeLimit      = errors.New("lp: branch and bound node limit reached")
)

// Backend solves a linear program in standard form:
//
//	minimize cᵀx  s.t.  A x = b, x >= 0
//
// A is guaranteed to have full row rank and no all-zero column.
type Backend interface {
	Name() string
	Solve(c []float64, a mat.Matrix, b []float64) ([]float64, error)
}

// Simplex is the dense simplex method from gonum.
type Simplex struct {
	// Tolerance on the reduced costs at optimality. Zero means 1e-10.
	Tolerance float64
}

func (Simplex) Name() string { return "simplex" }

func (s Simplex) Solve(c []float64, a mat.Matrix, b []float64) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("%w: %v", ErrBackend, r)
		}
	}()
	tol := s.Tolerance
	if tol <= 0 {
		tol = 1e-10
	}
	_, x, err = gonumlp.Simplex(c, a, b, tol, nil)
	switch {
	case errors.Is(err, gonumlp.ErrInfeasible):
		return nil, ErrInfeasible
	case errors.Is(err, gonumlp.ErrUnbounded):
		return nil, ErrUnbounded
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return x, nil
}

var backends = map[string]func() Backend{
	"simplex": func() Backend { return Simplex{} },
}

// LookupBackend returns a fresh backend by name. The empty name selects simplex.
func LookupBackend(name string) (Backend, error) {
	if name == "" {
		name = "simplex"
	}
	mk, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return mk(), nil
}

// BackendNames lists the registered backends.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
