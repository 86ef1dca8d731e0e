package topology

import (
	"fmt"
	"strings"
)

// Location identifies a class of grid entities
type Location uint8

const (
	Cells Location = iota
	Edges
	Vertices
)

// Locations lists every location kind in declaration order
var Locations = []Location{Cells, Edges, Vertices}

func (l Location) String() string {
	switch l {
	case Cells:
		return "cells"
	case Edges:
		return "edges"
	case Vertices:
		return "vertices"
	default:
		return fmt.Sprintf("location(%d)", uint8(l))
	}
}

// ParseLocation converts a configuration string into a Location
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cells", "cell":
		return Cells, nil
	case "edges", "edge":
		return Edges, nil
	case "vertices", "vertex":
		return Vertices, nil
	}
	return 0, fmt.Errorf("unknown location %q (expected cells, edges or vertices)", s)
}

// Point addresses one scalar slot: horizontal index I, color C, horizontal index J, level K
type Point struct {
	I, C, J, K int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", p.I, p.C, p.J, p.K)
}

// Offset is a relative displacement in (i, color, j, k)
type Offset struct {
	DI, DC, DJ, DK int
}

// Apply returns p displaced by o
func (o Offset) Apply(p Point) Point {
	return Point{I: p.I + o.DI, C: p.C + o.DC, J: p.J + o.DJ, K: p.K + o.DK}
}
