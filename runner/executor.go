package runner

import (
	"errors"
	"fmt"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
)

// ErrStrategy is returned when no executor implements a strategy kind
var ErrStrategy = errors.New("no executor for strategy")

// KernelExecutor runs the ESFs of a stage over the grid. Bind selects the
// views the executor works on, Prepare builds everything Execute needs, and
// Execute may be called any number of times. Free releases what Prepare
// acquired.
type KernelExecutor[T storage.Scalar] interface {
	Bind(plan *Plan[T]) error
	Prepare() error
	Execute() error
	Free()
}

var (
	_ KernelExecutor[float64] = (*NaiveExecutor[float64])(nil)
	_ KernelExecutor[float32] = (*NaiveExecutor[float32])(nil)
	_ KernelExecutor[float64] = (*PartitionedExecutor[float64])(nil)
	_ KernelExecutor[int32]   = (*PartitionedExecutor[int32])(nil)
)

// newExecutor resolves the executor implementing a strategy kind
func newExecutor[T storage.Scalar](kind backend.StrategyKind, cfg Config) (KernelExecutor[T], error) {
	switch kind {
	case backend.Naive:
		return &NaiveExecutor[T]{}, nil
	case backend.Partitioned:
		return &PartitionedExecutor[T]{Units: cfg.NumUnits(), Strategy: cfg.Partition}, nil
	}
	return nil, fmt.Errorf("%v: %w", kind, ErrStrategy)
}

// Domain is the horizontal range [IBegin, IEnd) x [JBegin, JEnd) an ESF is
// evaluated on
type Domain struct {
	IBegin, IEnd, JBegin, JEnd int
}

func (d Domain) Size() int {
	return max(d.IEnd-d.IBegin, 0) * max(d.JEnd-d.JBegin, 0)
}

// Positions linearizes the domain as j*ni + i, row by row
func (d Domain) Positions(ni int) []int64 {
	out := make([]int64, 0, d.Size())
	for j := d.JBegin; j < d.JEnd; j++ {
		for i := d.IBegin; i < d.IEnd; i++ {
			out = append(out, int64(j*ni+i))
		}
	}
	return out
}

func (d Domain) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", d.IBegin, d.IEnd, d.JBegin, d.JEnd)
}

// ErrHalo is returned when an ESF would read outside the allocation
var ErrHalo = errors.New("extent exceeds halo")

// computeDomain enlarges the interior by the extent later ESFs read of this
// one. The ESF's own reads from that domain must stay inside the halo.
func computeDomain(i, j DimensionInfo, required, reads stencil.Extent) (Domain, error) {
	reach := required.Add(reads)
	if reach.IMinus > i.HaloMinus || reach.IPlus > i.HaloPlus ||
		reach.JMinus > j.HaloMinus || reach.JPlus > j.HaloPlus {
		return Domain{}, fmt.Errorf("reach %v beyond halo i=%d,%d j=%d,%d: %w",
			reach, i.HaloMinus, i.HaloPlus, j.HaloMinus, j.HaloPlus, ErrHalo)
	}
	return Domain{
		IBegin: i.Begin - required.IMinus,
		IEnd:   i.End + required.IPlus,
		JBegin: j.Begin - required.JMinus,
		JEnd:   j.End + required.JPlus,
	}, nil
}

// Plan is everything an executor needs to run a stage
type Plan[T storage.Scalar] struct {
	Grid *Grid
	Axis stencil.Axis
	ESFs []*stencil.ESF[T]
	// Fields[e][slot] is the field bound to accessor slot of ESF e
	Fields  [][]*storage.Field[T]
	Domains []Domain
}

// buildDispatch maps level -> ESF -> overload index, -1 where no overload
// covers the level
func buildDispatch[T storage.Scalar](plan *Plan[T]) [][]int {
	nk := plan.Grid.cfg.NK
	table := make([][]int, nk)
	for k := 0; k < nk; k++ {
		table[k] = make([]int, len(plan.ESFs))
		for e, esf := range plan.ESFs {
			table[k][e] = esf.OverloadAt(k)
		}
	}
	return table
}

// checkGoOverloads verifies that every overload reachable through the
// dispatch table has a Go implementation
func checkGoOverloads[T storage.Scalar](plan *Plan[T], dispatch [][]int) error {
	for _, row := range dispatch {
		for e, n := range row {
			if n >= 0 && plan.ESFs[e].Functor().Overloads()[n].Do == nil {
				return fmt.Errorf("%v: overload %d has no Go implementation", plan.ESFs[e], n)
			}
		}
	}
	return nil
}

// bindEvaluation builds the evaluation context of ESF e over the views
// selected for ctx
func bindEvaluation[T storage.Scalar](plan *Plan[T], e int, ctx backend.Arch) (*stencil.Evaluation[T], error) {
	esf := plan.ESFs[e]
	fields := plan.Fields[e]
	views := make([]storage.View[T], len(fields))
	metas := make([]*storage.MetaData, len(fields))
	for slot, f := range fields {
		views[slot] = f.Buffer().Select(ctx)
		if !views[slot].Valid() {
			return nil, fmt.Errorf("%v: field %s has no %v view Go code can address", esf, f.Name, ctx)
		}
		metas[slot] = f.Meta
	}
	return stencil.NewEvaluation[T](plan.Grid.topo, esf.Location(), esf.Accessors(),
		views, metas, plan.Grid.cfg.Mode), nil
}
