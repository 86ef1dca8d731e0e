package stencil

import (
	"fmt"

	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
	"gonum.org/v1/gonum/floats"
)

// Evaluation is the context a functor sees at one grid point. Its views were
// selected once for the executing backend; the executor moves it from point
// to point. An Evaluation is not safe for concurrent use, executors running
// concurrent units give each unit its own.
type Evaluation[T storage.Scalar] struct {
	topo      topology.Topology
	loc       topology.Location
	accessors []Accessor
	views     []storage.View[T]
	metas     []*storage.MetaData
	checked   bool
	real      bool

	point topology.Point
	nbrs  []topology.Point
	vals  []T
	sums  []float64
}

// NewEvaluation builds the context for one ESF. views and metas are indexed
// by accessor slot.
func NewEvaluation[T storage.Scalar](topo topology.Topology, loc topology.Location,
	accessors []Accessor, views []storage.View[T], metas []*storage.MetaData,
	mode storage.Mode) *Evaluation[T] {
	if len(views) != len(accessors) || len(metas) != len(accessors) {
		panic(fmt.Sprintf("evaluation: %d accessors, %d views, %d metadata",
			len(accessors), len(views), len(metas)))
	}
	return &Evaluation[T]{
		topo:      topo,
		loc:       loc,
		accessors: accessors,
		views:     views,
		metas:     metas,
		checked:   mode == storage.Checked,
		real:      storage.DataTypeOf[T]().IsReal(),
		nbrs:      make([]topology.Point, 0, 8),
	}
}

// MoveTo positions the context on p
func (e *Evaluation[T]) MoveTo(p topology.Point) { e.point = p }

// Point returns the evaluated point
func (e *Evaluation[T]) Point() topology.Point { return e.point }

// Location returns the location kind the ESF iterates over
func (e *Evaluation[T]) Location() topology.Location { return e.loc }

// Get returns the value of a at the evaluated point
func (e *Evaluation[T]) Get(a Accessor) T {
	return e.Value(a, e.point)
}

// At returns the value of a at the evaluated point displaced by off
func (e *Evaluation[T]) At(a Accessor, off topology.Offset) T {
	return e.Value(a, off.Apply(e.point))
}

// Value returns the value of a at an arbitrary point, typically a neighbor
func (e *Evaluation[T]) Value(a Accessor, p topology.Point) T {
	meta := e.metas[a.Slot]
	if e.checked && !meta.Contains(p) {
		panic(fmt.Sprintf("read of %v at %v outside %v", a, p, meta))
	}
	return e.views[a.Slot].Get(meta.Index(p))
}

// Set writes v through a at the evaluated point
func (e *Evaluation[T]) Set(a Accessor, v T) {
	if e.checked && a.Intent != ReadWrite {
		panic(fmt.Sprintf("write through read-only %v at %v", a, e.point))
	}
	meta := e.metas[a.Slot]
	e.views[a.Slot].Set(meta.Index(e.point), v)
}

// Neighbours returns the neighbors of kind `to` of the evaluated point. The
// slice is reused by the next call.
func (e *Evaluation[T]) Neighbours(to topology.Location) []topology.Point {
	e.nbrs = topology.AppendNeighbours(e.topo, e.nbrs[:0], e.loc, to, e.point)
	return e.nbrs
}

// Reduce folds fn over the values of a at the neighbors of the evaluated
// point, in neighbor order, starting from init
func (e *Evaluation[T]) Reduce(a Accessor, init T, fn func(acc, v T) T) T {
	acc := init
	for _, p := range e.Neighbours(a.Location) {
		acc = fn(acc, e.Value(a, p))
	}
	return acc
}

// Sum returns the sum of a over the neighbors of the evaluated point. Real
// types are summed in float64 and converted back, integers in T.
func (e *Evaluation[T]) Sum(a Accessor) T {
	if e.real {
		e.sums = e.sums[:0]
		for _, p := range e.Neighbours(a.Location) {
			e.sums = append(e.sums, float64(e.Value(a, p)))
		}
		return T(floats.Sum(e.sums))
	}
	e.vals = e.vals[:0]
	for _, p := range e.Neighbours(a.Location) {
		e.vals = append(e.vals, e.Value(a, p))
	}
	var sum T
	for _, v := range e.vals {
		sum += v
	}
	return sum
}
