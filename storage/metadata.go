package storage

import (
	"fmt"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/topology"
)

// MetaData describes how a 4-D field over (i, c, j, k) is laid out in its
// linear buffer
type MetaData struct {
	Location topology.Location
	Dims     [backend.NumAxes]int // ni, nc, nj, nk
	Layout   backend.LayoutMap
	Strides  [backend.NumAxes]int
}

func NewMetaData(loc topology.Location, dims [backend.NumAxes]int, layout backend.LayoutMap) (*MetaData, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	for axis, n := range dims {
		if n <= 0 {
			return nil, fmt.Errorf("dimension %d of %v storage must be positive, got %d", axis, loc, n)
		}
	}
	return &MetaData{
		Location: loc,
		Dims:     dims,
		Layout:   layout,
		Strides:  layout.Strides(dims),
	}, nil
}

// Len returns the number of elements the layout spans
func (m *MetaData) Len() int {
	return m.Dims[0] * m.Dims[1] * m.Dims[2] * m.Dims[3]
}

// Index maps a point to its linear offset
func (m *MetaData) Index(p topology.Point) int {
	return p.I*m.Strides[backend.AxisI] + p.C*m.Strides[backend.AxisC] +
		p.J*m.Strides[backend.AxisJ] + p.K*m.Strides[backend.AxisK]
}

// Contains reports whether p lies inside the allocation
func (m *MetaData) Contains(p topology.Point) bool {
	return p.I >= 0 && p.I < m.Dims[backend.AxisI] &&
		p.C >= 0 && p.C < m.Dims[backend.AxisC] &&
		p.J >= 0 && p.J < m.Dims[backend.AxisJ] &&
		p.K >= 0 && p.K < m.Dims[backend.AxisK]
}

// Point is the inverse of Index
func (m *MetaData) Point(idx int) (p topology.Point) {
	// Peel axes from the largest stride down
	for r := 0; r < backend.NumAxes; r++ {
		for axis := 0; axis < backend.NumAxes; axis++ {
			if m.Layout[axis] != r {
				continue
			}
			v := idx / m.Strides[axis]
			idx -= v * m.Strides[axis]
			switch axis {
			case backend.AxisI:
				p.I = v
			case backend.AxisC:
				p.C = v
			case backend.AxisJ:
				p.J = v
			case backend.AxisK:
				p.K = v
			}
		}
	}
	return
}

func (m *MetaData) String() string {
	return fmt.Sprintf("%v[%dx%dx%dx%d] %v", m.Location,
		m.Dims[0], m.Dims[1], m.Dims[2], m.Dims[3], m.Layout)
}
