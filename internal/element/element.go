// Package element defines the nodes of an energy network: storage that carries
// energy between periods and junctions that balance power within one.
package element

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by element validation failures.
var ErrInvalid = errors.New("element: invalid")

// Kind identifies an element variant.
type Kind string

const (
	KindStorage  Kind = "storage"
	KindJunction Kind = "junction"
)

// Element is a Storage or a Junction.
type Element interface {
	ElementName() string
	Kind() Kind
	isElement()
}

func invalid(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, name, fmt.Sprintf(format, args...))
}

func invalidParam(name, param string, err error) error {
	return fmt.Errorf("%w: %s: %s: %w", ErrInvalid, name, param, err)
}
