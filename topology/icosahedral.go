package topology

// Icosahedral is the structured triangular mesh used by icosahedral grids.
// Each (i, j) rhombus holds one vertex, three edges and two triangular cells:
//
//	vertex v(i,j)
//	edge   e0(i,j): v(i,j)   - v(i+1,j)
//	edge   e1(i,j): v(i+1,j) - v(i,j+1)
//	edge   e2(i,j): v(i,j)   - v(i,j+1)
//	cell   c0(i,j): v(i,j), v(i+1,j), v(i,j+1)
//	cell   c1(i,j): v(i+1,j), v(i+1,j+1), v(i,j+1)
//
// Neighbors are resolved from fixed offset tables; levels are never crossed.
type Icosahedral struct{}

// link is one table entry: displacement in i and j plus the absolute target color
type link struct {
	di, c, dj int
}

// connectivity[from][to][color] lists the neighbors of a point of kind `from`
var connectivity = [3][3][][]link{
	Cells: {
		Cells: {
			{{-1, 1, 0}, {0, 1, 0}, {0, 1, -1}},
			{{1, 0, 0}, {0, 0, 0}, {0, 0, 1}},
		},
		Edges: {
			{{0, 0, 0}, {0, 1, 0}, {0, 2, 0}},
			{{0, 1, 0}, {0, 0, 1}, {1, 2, 0}},
		},
		Vertices: {
			{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}},
			{{1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
		},
	},
	Edges: {
		Cells: {
			{{0, 0, 0}, {0, 1, -1}},
			{{0, 0, 0}, {0, 1, 0}},
			{{0, 0, 0}, {-1, 1, 0}},
		},
		Edges: {
			{{0, 1, 0}, {0, 2, 0}, {0, 1, -1}, {1, 2, -1}},
			{{0, 0, 0}, {0, 2, 0}, {0, 0, 1}, {1, 2, 0}},
			{{0, 0, 0}, {0, 1, 0}, {-1, 1, 0}, {-1, 0, 1}},
		},
		Vertices: {
			{{0, 0, 0}, {1, 0, 0}},
			{{1, 0, 0}, {0, 0, 1}},
			{{0, 0, 0}, {0, 0, 1}},
		},
	},
	Vertices: {
		Cells: {
			{{0, 0, 0}, {-1, 1, 0}, {-1, 0, 0}, {-1, 1, -1}, {0, 0, -1}, {0, 1, -1}},
		},
		Edges: {
			{{0, 0, 0}, {0, 2, 0}, {-1, 1, 0}, {-1, 0, 0}, {0, 2, -1}, {0, 1, -1}},
		},
		Vertices: {
			{{1, 0, 0}, {0, 0, 1}, {-1, 0, 1}, {-1, 0, 0}, {0, 0, -1}, {1, 0, -1}},
		},
	},
}

// NewIcosahedral returns the icosahedral topology
func NewIcosahedral() *Icosahedral {
	return &Icosahedral{}
}

// ColorCount returns 2 for cells, 3 for edges and 1 for vertices
func (t *Icosahedral) ColorCount(loc Location) int {
	switch loc {
	case Cells:
		return 2
	case Edges:
		return 3
	case Vertices:
		return 1
	}
	return 0
}

// NeighboursOf returns the neighbors of kind `to` of point p of kind `from`.
// Points outside the color range of `from` have no neighbors.
func (t *Icosahedral) NeighboursOf(from, to Location, p Point) []Point {
	return t.AppendNeighbours(nil, from, to, p)
}

// AppendNeighbours implements NeighbourAppender
func (t *Icosahedral) AppendNeighbours(dst []Point, from, to Location, p Point) []Point {
	links := t.links(from, to, p.C)
	for _, l := range links {
		dst = append(dst, Point{I: p.I + l.di, C: l.c, J: p.J + l.dj, K: p.K})
	}
	return dst
}

// MaxNeighbours returns the largest neighbor count of any color for a pair
func (t *Icosahedral) MaxNeighbours(from, to Location) int {
	if int(from) >= len(connectivity) || int(to) >= len(connectivity[from]) {
		return 0
	}
	n := 0
	for _, links := range connectivity[from][to] {
		if len(links) > n {
			n = len(links)
		}
	}
	return n
}

func (t *Icosahedral) links(from, to Location, color int) []link {
	if int(from) >= len(connectivity) || int(to) >= len(connectivity[from]) {
		return nil
	}
	byColor := connectivity[from][to]
	if color < 0 || color >= len(byColor) {
		return nil
	}
	return byColor[color]
}
