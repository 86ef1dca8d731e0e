// Package runner executes stages of elementary stencil functions over a grid
// on the host or on a device.
package runner

import (
	"fmt"
	"sync"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/device"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
	"github.com/notargets/StencilKernel/utils"
	"go.uber.org/zap"
)

// DimensionInfo describes one horizontal axis of a grid
type DimensionInfo struct {
	HaloMinus, HaloPlus int
	// Begin and End bound the interior, End is exclusive
	Begin, End int
	Total      int
}

// Grid owns the fields of a computation and the backend they were laid out
// for. Free releases every field the grid created.
type Grid struct {
	cfg    Config
	topo   topology.Topology
	rt     device.Runtime
	traits backend.Traits

	mu     sync.Mutex
	fields []interface{ Release() }
	freed  bool
}

// NewGrid validates the configuration and resolves the backend traits. A
// device arch requires a runtime.
func NewGrid(cfg Config, topo topology.Topology, rt device.Runtime) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topo == nil {
		return nil, fmt.Errorf("grid requires a topology")
	}
	traits, err := backend.TraitsOf(cfg.Arch)
	if err != nil {
		return nil, err
	}
	if cfg.Arch == backend.Device && rt == nil {
		return nil, fmt.Errorf("%v arch requires a device runtime", cfg.Arch)
	}
	return &Grid{cfg: cfg, topo: topo, rt: rt, traits: traits}, nil
}

func (g *Grid) Config() Config { return g.cfg }

func (g *Grid) Topology() topology.Topology { return g.topo }

func (g *Grid) Runtime() device.Runtime { return g.rt }

func (g *Grid) Traits() backend.Traits { return g.traits }

// DimensionI returns the i axis description
func (g *Grid) DimensionI() DimensionInfo {
	return DimensionInfo{
		HaloMinus: g.cfg.HaloI,
		HaloPlus:  g.cfg.HaloI,
		Begin:     g.cfg.HaloI,
		End:       g.cfg.NI - g.cfg.HaloI,
		Total:     g.cfg.NI,
	}
}

// DimensionJ returns the j axis description
func (g *Grid) DimensionJ() DimensionInfo {
	return DimensionInfo{
		HaloMinus: g.cfg.HaloJ,
		HaloPlus:  g.cfg.HaloJ,
		Begin:     g.cfg.HaloJ,
		End:       g.cfg.NJ - g.cfg.HaloJ,
		Total:     g.cfg.NJ,
	}
}

// Dims returns the storage extents of a location kind
func (g *Grid) Dims(loc topology.Location) ([backend.NumAxes]int, error) {
	nc := g.topo.ColorCount(loc)
	if nc == 0 {
		return [backend.NumAxes]int{}, fmt.Errorf("%v: %w", loc, topology.ErrUnsupported)
	}
	return [backend.NumAxes]int{g.cfg.NI, nc, g.cfg.NJ, g.cfg.NK}, nil
}

// MakeStorage allocates a field for loc with the grid's layout. The field
// has a device side whenever the grid has a runtime.
func MakeStorage[T storage.Scalar](g *Grid, loc topology.Location, name string) (*storage.Field[T], error) {
	dims, err := g.Dims(loc)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", name, err)
	}
	meta, err := storage.NewMetaData(loc, dims, g.traits.Layout)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.freed {
		return nil, fmt.Errorf("storage %s: grid already freed", name)
	}
	f := storage.NewField[T](name, meta, g.rt, g.cfg.Mode)
	g.fields = append(g.fields, f)
	utils.Logger().Debug("allocated storage",
		zap.String("name", name),
		zap.Stringer("meta", meta),
		zap.Bool("device", f.Buffer().HasDevice()))
	return f, nil
}

// Free releases every field created by the grid
func (g *Grid) Free() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.freed {
		return
	}
	g.freed = true
	for _, f := range g.fields {
		f.Release()
	}
	g.fields = nil
}
