package network

import (
	"errors"
	"fmt"
	"strings"

	"energy-network/internal/element"
	"energy-network/internal/segment"
	"energy-network/internal/timeseries"
)

// ErrorKind classifies a ValidationError.
type ErrorKind string

const (
	KindEmptyNetwork   ErrorKind = "empty_network"
	KindIsolated       ErrorKind = "isolated_element"
	KindUnknownElement ErrorKind = "unknown_element"
	KindDuplicateName  ErrorKind = "duplicate_name"
	KindSelfLoop       ErrorKind = "self_loop"
	KindBoundOrder     ErrorKind = "bound_order"
	KindSeriesLength   ErrorKind = "series_length"
	KindParameter      ErrorKind = "parameter"
)

// ValidationError reports a network that cannot be turned into a problem.
type ValidationError struct {
	Kind ErrorKind
	// Name is the element or connection at fault.
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("network: %s: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("network: %s: %s: %v", e.Kind, e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidationErrors collects every structural problem found in one pass.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// classify wraps an element or segment failure with the kind a caller can
// act on.
func classify(name string, err error) *ValidationError {
	kind := KindParameter
	switch {
	case errors.Is(err, timeseries.ErrLengthMismatch):
		kind = KindSeriesLength
	case errors.Is(err, element.ErrInvalid):
		kind = KindBoundOrder
	case errors.Is(err, segment.ErrInvalidParameter):
		kind = KindParameter
	}
	return &ValidationError{Kind: kind, Name: name, Err: err}
}
