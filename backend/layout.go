package backend

import (
	"fmt"
)

// Axis positions of a 4-D field index
const (
	AxisI = iota
	AxisC
	AxisJ
	AxisK
	NumAxes
)

// LayoutMap assigns a rank to each of the (i, c, j, k) axes. The axis with the
// highest rank is contiguous in memory, the axis with rank 0 has the largest
// stride.
type LayoutMap [NumAxes]int

var (
	// HostLayout keeps i contiguous, then color, then j, then k
	HostLayout = LayoutMap{3, 2, 1, 0}
	// DeviceLayout keeps i contiguous, then j, so consecutive execution units
	// touch consecutive addresses along a horizontal row
	DeviceLayout = LayoutMap{3, 1, 2, 0}
)

// Validate checks that the ranks are a permutation of 0..3
func (l LayoutMap) Validate() error {
	var seen [NumAxes]bool
	for axis, r := range l {
		if r < 0 || r >= NumAxes {
			return fmt.Errorf("layout %v: axis %d has rank %d outside [0,%d)", l, axis, r, NumAxes)
		}
		if seen[r] {
			return fmt.Errorf("layout %v: rank %d assigned twice", l, r)
		}
		seen[r] = true
	}
	return nil
}

// Strides returns the element stride of each axis for the given extents
func (l LayoutMap) Strides(dims [NumAxes]int) (strides [NumAxes]int) {
	// Walk ranks from the contiguous axis outward
	stride := 1
	for r := NumAxes - 1; r >= 0; r-- {
		for axis := 0; axis < NumAxes; axis++ {
			if l[axis] == r {
				strides[axis] = stride
				stride *= dims[axis]
			}
		}
	}
	return
}

func (l LayoutMap) String() string {
	return fmt.Sprintf("layout<%d,%d,%d,%d>", l[0], l[1], l[2], l[3])
}
