package storage

import (
	"fmt"

	"github.com/notargets/StencilKernel/device"
	"github.com/notargets/StencilKernel/topology"
	"gonum.org/v1/gonum/mat"
)

// Field is a named dense array over (i, c, j, k) for one location kind. It
// owns its DualBuffer and releases it with Release.
type Field[T Scalar] struct {
	Name string
	Meta *MetaData
	buf  *DualBuffer[T]
}

// NewField allocates a field described by meta. With a nil runtime the field
// lives on the host only.
func NewField[T Scalar](name string, meta *MetaData, rt device.Runtime, mode Mode) *Field[T] {
	return &Field[T]{
		Name: name,
		Meta: meta,
		buf:  NewDualBuffer[T](rt, meta.Len(), mode),
	}
}

func (f *Field[T]) Buffer() *DualBuffer[T] { return f.buf }

func (f *Field[T]) Location() topology.Location { return f.Meta.Location }

// Initialize sets every host element to v
func (f *Field[T]) Initialize(v T) {
	host := f.buf.Host()
	for i := range host {
		host[i] = v
	}
}

// InitializeFunc sets every host element from fn evaluated at its point
func (f *Field[T]) InitializeFunc(fn func(p topology.Point) T) {
	host := f.buf.Host()
	for idx := range host {
		host[idx] = fn(f.Meta.Point(idx))
	}
}

// At returns the host value at p
func (f *Field[T]) At(p topology.Point) T {
	if f.buf.Mode() == Checked && !f.Meta.Contains(p) {
		panic(fmt.Sprintf("field %s: point %v outside %v", f.Name, p, f.Meta))
	}
	return f.buf.Host()[f.Meta.Index(p)]
}

// Set writes the host value at p
func (f *Field[T]) Set(p topology.Point, v T) {
	if f.buf.Mode() == Checked && !f.Meta.Contains(p) {
		panic(fmt.Sprintf("field %s: point %v outside %v", f.Name, p, f.Meta))
	}
	f.buf.Host()[f.Meta.Index(p)] = v
}

func (f *Field[T]) PushToDevice() { f.buf.PushToDevice() }

func (f *Field[T]) PullToHost() { f.buf.PullToHost() }

func (f *Field[T]) Release() { f.buf.Release() }

// Slab copies the host values of color c at level k into a matrix with one
// row per j and one column per i
func (f *Field[T]) Slab(c, k int) *mat.Dense {
	ni, nj := f.Meta.Dims[0], f.Meta.Dims[2]
	data := make([]float64, ni*nj)
	host := f.buf.Host()
	for j := 0; j < nj; j++ {
		for i := 0; i < ni; i++ {
			data[j*ni+i] = float64(host[f.Meta.Index(topology.Point{I: i, C: c, J: j, K: k})])
		}
	}
	return mat.NewDense(nj, ni, data)
}

func (f *Field[T]) String() string {
	return fmt.Sprintf("Field %s %v %v", f.Name, f.Meta, f.buf)
}
