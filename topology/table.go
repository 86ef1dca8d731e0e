package topology

import (
	"fmt"
	"sort"

	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// Table is an explicit neighbor table for unstructured meshes. It defines a
// single location (cells, one color); cell n is addressed as Point{I: n}.
type Table struct {
	adj [][]int
}

// NewTable creates a table from per-cell adjacency lists
func NewTable(adj [][]int) (*Table, error) {
	for c, nbrs := range adj {
		for _, n := range nbrs {
			if n < 0 || n >= len(adj) {
				return nil, fmt.Errorf("cell %d: neighbor %d outside [0,%d)", c, n, len(adj))
			}
		}
	}
	t := &Table{adj: make([][]int, len(adj))}
	for c := range adj {
		t.adj[c] = append([]int(nil), adj[c]...)
	}
	return t, nil
}

// NewTableFromElements derives cell adjacency from element-to-vertex
// connectivity. Two elements are neighbors when they share a face: an edge for
// triangles, a triangle for tetrahedra. Neighbors are ordered by local face.
func NewTableFromElements(etov [][]int) (*Table, error) {
	type faceKey [3]int
	owners := make(map[faceKey][]int)
	faces := make([][]faceKey, len(etov))

	for e, verts := range etov {
		var combos [][]int
		switch len(verts) {
		case 3:
			combos = [][]int{{0, 1}, {1, 2}, {2, 0}}
		case 4:
			combos = [][]int{{0, 1, 2}, {0, 1, 3}, {1, 2, 3}, {0, 2, 3}}
		default:
			return nil, fmt.Errorf("element %d: %d vertices, only triangles and tetrahedra are supported",
				e, len(verts))
		}
		for _, combo := range combos {
			ids := make([]int, len(combo))
			for i, local := range combo {
				ids[i] = verts[local]
			}
			sort.Ints(ids)
			key := faceKey{-1, -1, -1}
			copy(key[:], ids)
			faces[e] = append(faces[e], key)
			owners[key] = append(owners[key], e)
		}
	}

	adj := make([][]int, len(etov))
	for e := range etov {
		for _, key := range faces[e] {
			shared := owners[key]
			if len(shared) > 2 {
				return nil, fmt.Errorf("element %d: face %v shared by %d elements", e, key, len(shared))
			}
			for _, other := range shared {
				if other != e {
					adj[e] = append(adj[e], other)
				}
			}
		}
	}
	return &Table{adj: adj}, nil
}

// FromMeshFile reads a mesh file and builds the cell neighbor table from its
// element connectivity
func FromMeshFile(path string) (*Table, error) {
	msh, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh %s: %w", path, err)
	}
	t, err := NewTableFromElements(msh.EtoV)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", path, err)
	}
	return t, nil
}

// NumCells returns the number of cells in the table
func (t *Table) NumCells() int {
	return len(t.adj)
}

// ColorCount returns 1 for cells and 0 for every other location
func (t *Table) ColorCount(loc Location) int {
	if loc == Cells {
		return 1
	}
	return 0
}

// NeighboursOf returns the cell neighbors of cell p; other pairs have none
func (t *Table) NeighboursOf(from, to Location, p Point) []Point {
	return t.AppendNeighbours(nil, from, to, p)
}

// AppendNeighbours implements NeighbourAppender
func (t *Table) AppendNeighbours(dst []Point, from, to Location, p Point) []Point {
	if from != Cells || to != Cells || p.C != 0 || p.I < 0 || p.I >= len(t.adj) {
		return dst
	}
	for _, n := range t.adj[p.I] {
		dst = append(dst, Point{I: n, J: p.J, K: p.K})
	}
	return dst
}
