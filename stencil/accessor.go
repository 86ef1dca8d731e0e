// Package stencil declares elementary stencil functions (ESFs): the functor a
// user writes, the accessors it reads and writes through, the placeholders
// those accessors are bound to, and the evaluation context the functor sees
// at each grid point.
package stencil

import (
	"fmt"

	"github.com/notargets/StencilKernel/topology"
)

// Intent is the access mode of an accessor
type Intent uint8

const (
	ReadOnly Intent = iota
	ReadWrite
)

func (i Intent) String() string {
	if i == ReadWrite {
		return "inout"
	}
	return "in"
}

// Extent is the horizontal reach of an accessor around the evaluated point,
// as non-negative distances in each direction
type Extent struct {
	IMinus, IPlus, JMinus, JPlus int
}

// Symmetric returns an extent reaching n points in every direction
func Symmetric(n int) Extent {
	return Extent{n, n, n, n}
}

// Union returns the smallest extent covering e and o
func (e Extent) Union(o Extent) Extent {
	return Extent{
		IMinus: max(e.IMinus, o.IMinus),
		IPlus:  max(e.IPlus, o.IPlus),
		JMinus: max(e.JMinus, o.JMinus),
		JPlus:  max(e.JPlus, o.JPlus),
	}
}

// Add composes two extents: reaching e from every point reached by o
func (e Extent) Add(o Extent) Extent {
	return Extent{
		IMinus: e.IMinus + o.IMinus,
		IPlus:  e.IPlus + o.IPlus,
		JMinus: e.JMinus + o.JMinus,
		JPlus:  e.JPlus + o.JPlus,
	}
}

func (e Extent) IsZero() bool { return e == Extent{} }

func (e Extent) String() string {
	return fmt.Sprintf("extent<%d,%d,%d,%d>", e.IMinus, e.IPlus, e.JMinus, e.JPlus)
}

// Accessor describes one argument slot of a functor
type Accessor struct {
	Slot     int
	Location topology.Location
	Intent   Intent
	Extent   Extent
}

// In declares a read-only accessor
func In(slot int, loc topology.Location, ext Extent) Accessor {
	return Accessor{Slot: slot, Location: loc, Intent: ReadOnly, Extent: ext}
}

// InOut declares a read-write accessor. Writes happen at the evaluated point
// only, so its extent is zero.
func InOut(slot int, loc topology.Location) Accessor {
	return Accessor{Slot: slot, Location: loc, Intent: ReadWrite}
}

func (a Accessor) String() string {
	return fmt.Sprintf("accessor %d %s %v %v", a.Slot, a.Intent, a.Location, a.Extent)
}

// Arg is a placeholder a stage binds to a field. Two args are the same
// placeholder when all their fields match.
type Arg struct {
	ID       int
	Name     string
	Location topology.Location
}

func NewArg(id int, name string, loc topology.Location) Arg {
	return Arg{ID: id, Name: name, Location: loc}
}

func (a Arg) String() string {
	return fmt.Sprintf("arg<%d,%s,%v>", a.ID, a.Name, a.Location)
}
