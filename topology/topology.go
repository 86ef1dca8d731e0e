// Package topology describes the location kinds of a grid, their colors, and
// the neighbor relations between points. Neighbor tables are consumed read-only
// by the kernel executors.
package topology

import "errors"

// ErrUnsupported is returned for a (from, to) pair a topology has no table for
var ErrUnsupported = errors.New("unsupported location pair")

// Topology is the grid connectivity consumed by the execution strategies
type Topology interface {
	// ColorCount returns the number of colors of a location kind, or 0 when the
	// topology does not define that location
	ColorCount(loc Location) int
	// NeighboursOf returns the ordered neighbors of kind `to` of point p of kind `from`
	NeighboursOf(from, to Location, p Point) []Point
}

// NeighbourAppender is implemented by topologies that can write neighbors into a
// caller owned slice, avoiding an allocation per point in the hot loop
type NeighbourAppender interface {
	AppendNeighbours(dst []Point, from, to Location, p Point) []Point
}

// AppendNeighbours appends the neighbors of p to dst using the fastest path the
// topology offers
func AppendNeighbours(t Topology, dst []Point, from, to Location, p Point) []Point {
	if a, ok := t.(NeighbourAppender); ok {
		return a.AppendNeighbours(dst, from, to, p)
	}
	return append(dst, t.NeighboursOf(from, to, p)...)
}

// Defines reports whether the topology declares the location kind
func Defines(t Topology, loc Location) bool {
	return t.ColorCount(loc) > 0
}
