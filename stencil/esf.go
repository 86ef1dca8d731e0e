package stencil

import (
	"errors"
	"fmt"

	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
)

var (
	// ErrArity is returned when placeholders and accessors do not pair up
	ErrArity = errors.New("argument count mismatch")
	// ErrLocation is returned when a placeholder and its accessor disagree
	// on the location kind
	ErrLocation = errors.New("location mismatch")
)

// ESF binds a functor to the placeholders it is applied to and the location
// kind it iterates over
type ESF[T storage.Scalar] struct {
	functor  Functor[T]
	location topology.Location
	args     []Arg
	slots    map[Arg]int
}

// MakeESF validates and binds a functor. Placeholder n is bound to the
// accessor in slot n.
func MakeESF[T storage.Scalar](f Functor[T], loc topology.Location, args ...Arg) (*ESF[T], error) {
	accessors := f.ArgList()
	if len(args) != len(accessors) {
		return nil, fmt.Errorf("%s: %d placeholders for %d accessors: %w",
			f.Name(), len(args), len(accessors), ErrArity)
	}

	esf := &ESF[T]{
		functor:  f,
		location: loc,
		args:     append([]Arg(nil), args...),
		slots:    make(map[Arg]int, len(args)),
	}
	for n, a := range accessors {
		if a.Slot != n {
			return nil, fmt.Errorf("%s: accessor at position %d declares slot %d: %w",
				f.Name(), n, a.Slot, ErrArity)
		}
		if a.Location != args[n].Location {
			return nil, fmt.Errorf("%s: %v bound to %v: %w", f.Name(), args[n], a, ErrLocation)
		}
		if a.Intent == ReadWrite && !a.Extent.IsZero() {
			return nil, fmt.Errorf("%s: %v writes with non-zero extent", f.Name(), a)
		}
		if _, dup := esf.slots[args[n]]; dup {
			return nil, fmt.Errorf("%s: %v bound twice", f.Name(), args[n])
		}
		esf.slots[args[n]] = n
	}

	overloads := f.Overloads()
	for n, o := range overloads {
		if o.Interval.Len() == 0 {
			return nil, fmt.Errorf("%s: overload %d has empty interval %v", f.Name(), n, o.Interval)
		}
		for m := 0; m < n; m++ {
			if overloads[m].Interval.Overlaps(o.Interval) {
				return nil, fmt.Errorf("%s: overloads %d %v and %d %v overlap",
					f.Name(), m, overloads[m].Interval, n, o.Interval)
			}
		}
	}
	return esf, nil
}

func (e *ESF[T]) Functor() Functor[T] { return e.functor }

func (e *ESF[T]) Location() topology.Location { return e.location }

// Args returns the placeholders in slot order
func (e *ESF[T]) Args() []Arg { return e.args }

func (e *ESF[T]) Accessors() []Accessor { return e.functor.ArgList() }

// Slot returns the accessor slot arg is bound to
func (e *ESF[T]) Slot(arg Arg) (int, bool) {
	n, ok := e.slots[arg]
	return n, ok
}

// OverloadAt returns the index of the overload covering level k, or -1
func (e *ESF[T]) OverloadAt(k int) int {
	for n, o := range e.functor.Overloads() {
		if o.Interval.Contains(k) {
			return n
		}
	}
	return -1
}

func (e *ESF[T]) String() string {
	return fmt.Sprintf("esf %s on %v %v", e.functor.Name(), e.location, e.args)
}

// HasParameter reports whether arg is one of the placeholders esf is bound
// to. A nil ESF or one without arguments has no parameters.
func HasParameter[T storage.Scalar](esf *ESF[T], arg Arg) bool {
	if esf == nil {
		return false
	}
	_, ok := esf.slots[arg]
	return ok
}
