package stencil

import (
	"fmt"
	"sort"
)

// Interval is the half-open level range [Begin, End)
type Interval struct {
	Begin, End int
}

func (iv Interval) Contains(k int) bool { return k >= iv.Begin && k < iv.End }

func (iv Interval) Len() int { return max(iv.End-iv.Begin, 0) }

func (iv Interval) Overlaps(o Interval) bool {
	return iv.Begin < o.End && o.Begin < iv.End
}

func (iv Interval) String() string { return fmt.Sprintf("[%d,%d)", iv.Begin, iv.End) }

// Direction is the order levels of a section are visited in
type Direction uint8

const (
	Forward Direction = iota
	Backward
	// Parallel sections carry no ordering guarantee between levels
	Parallel
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "parallel"
	}
}

// Section is one interval of the vertical axis and its traversal order
type Section struct {
	Interval
	Direction Direction
}

// Axis is the ordered list of sections a stage traverses
type Axis []Section

// NewAxis splits [0, depth) at the given level boundaries, giving every
// section the same direction
func NewAxis(depth int, dir Direction, splits ...int) (Axis, error) {
	bounds := append([]int{0}, splits...)
	bounds = append(bounds, depth)
	axis := make(Axis, 0, len(bounds)-1)
	for n := 0; n+1 < len(bounds); n++ {
		axis = append(axis, Section{Interval{bounds[n], bounds[n+1]}, dir})
	}
	if dir == Backward {
		for l, r := 0, len(axis)-1; l < r; l, r = l+1, r-1 {
			axis[l], axis[r] = axis[r], axis[l]
		}
	}
	if err := axis.Validate(depth); err != nil {
		return nil, err
	}
	return axis, nil
}

// Validate checks that the sections tile [0, depth) without gaps or overlaps,
// and that neighboring sections sharing a direction follow it: ascending
// for Forward, descending for Backward
func (a Axis) Validate(depth int) error {
	if len(a) == 0 {
		return fmt.Errorf("axis has no sections")
	}
	ivs := make([]Interval, len(a))
	for n, s := range a {
		if s.End <= s.Begin {
			return fmt.Errorf("axis section %d: empty interval %v", n, s.Interval)
		}
		ivs[n] = s.Interval
		if n == 0 || a[n-1].Direction != s.Direction {
			continue
		}
		prev := a[n-1].Interval
		switch {
		case s.Direction == Forward && s.Begin < prev.Begin:
			return fmt.Errorf("axis section %d: forward %v listed after %v", n, s.Interval, prev)
		case s.Direction == Backward && s.Begin > prev.Begin:
			return fmt.Errorf("axis section %d: backward %v listed after %v", n, s.Interval, prev)
		}
	}
	sort.Slice(ivs, func(x, y int) bool { return ivs[x].Begin < ivs[y].Begin })
	next := 0
	for _, iv := range ivs {
		if iv.Begin != next {
			return fmt.Errorf("axis does not tile [0,%d): expected a section at %d, found %v", depth, next, iv)
		}
		next = iv.End
	}
	if next != depth {
		return fmt.Errorf("axis ends at %d, depth is %d", next, depth)
	}
	return nil
}

// Levels returns every level in traversal order
func (a Axis) Levels() []int {
	var out []int
	for _, s := range a {
		out = append(out, s.Levels()...)
	}
	return out
}

// Levels returns the section's levels in traversal order. Parallel sections
// are listed ascending.
func (s Section) Levels() []int {
	out := make([]int, 0, s.Len())
	if s.Direction == Backward {
		for k := s.End - 1; k >= s.Begin; k-- {
			out = append(out, k)
		}
		return out
	}
	for k := s.Begin; k < s.End; k++ {
		out = append(out, k)
	}
	return out
}
