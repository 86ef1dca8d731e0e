package stencil

import (
	"github.com/notargets/StencilKernel/storage"
)

// Overload is one implementation of a functor, applied on the levels of its
// interval
type Overload[T storage.Scalar] struct {
	Interval Interval
	Do       func(eval *Evaluation[T])
	// OKL is the same update written as kernel source, used on devices whose
	// memory Go code cannot address. Fields are reached through the FIELD
	// macro at the point (i, c, j, k).
	OKL string
}

// Functor is a user-defined elementary stencil function
type Functor[T storage.Scalar] interface {
	Name() string
	// ArgList returns the accessors in slot order
	ArgList() []Accessor
	Overloads() []Overload[T]
}

// KernelSource is implemented by functors that can be compiled for a device
type KernelSource interface {
	// KernelBody returns the OKL body of the n-th overload
	KernelBody(n int) (string, bool)
}

type functor[T storage.Scalar] struct {
	name      string
	args      []Accessor
	overloads []Overload[T]
}

// NewFunctor assembles a functor from its accessors and overloads
func NewFunctor[T storage.Scalar](name string, args []Accessor, overloads ...Overload[T]) Functor[T] {
	return &functor[T]{
		name:      name,
		args:      append([]Accessor(nil), args...),
		overloads: append([]Overload[T](nil), overloads...),
	}
}

func (f *functor[T]) Name() string { return f.name }

func (f *functor[T]) ArgList() []Accessor { return f.args }

func (f *functor[T]) Overloads() []Overload[T] { return f.overloads }

func (f *functor[T]) KernelBody(n int) (string, bool) {
	if n < 0 || n >= len(f.overloads) || f.overloads[n].OKL == "" {
		return "", false
	}
	return f.overloads[n].OKL, true
}
