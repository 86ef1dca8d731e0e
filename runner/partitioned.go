package runner

import (
	"fmt"
	"sync"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/partitions"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
	"github.com/notargets/StencilKernel/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PartitionedExecutor splits the horizontal domain of every ESF into
// execution units that run concurrently against device memory. Units of one
// ESF never wait on each other; ESFs and levels are separated by a barrier,
// except that the levels of a Parallel section run without one.
//
// Go functors need memory the runtime maps into the address space. Otherwise
// every functor must provide kernel source and the runtime must compile it.
type PartitionedExecutor[T storage.Scalar] struct {
	Units    int
	Strategy partitions.PartitionStrategy

	plan      *Plan[T]
	layouts   []*partitions.PartitionLayout
	positions [][]int64
	evals     [][]*stencil.Evaluation[T] // [esf][unit]
	dispatch  [][]int
	okl       *oklProgram[T]
}

func (x *PartitionedExecutor[T]) Bind(plan *Plan[T]) error {
	if x.Units <= 0 {
		return fmt.Errorf("partitioned executor: %d units", x.Units)
	}
	x.plan = plan
	ni := plan.Grid.cfg.NI

	mapped := true
	for e := range plan.ESFs {
		for _, f := range plan.Fields[e] {
			if !f.Buffer().HasDevice() {
				return fmt.Errorf("%v: field %s has no device allocation", plan.ESFs[e], f.Name)
			}
			mapped = mapped && f.Buffer().Mapped()
		}
	}

	x.layouts = make([]*partitions.PartitionLayout, len(plan.ESFs))
	x.positions = make([][]int64, len(plan.ESFs))
	for e := range plan.ESFs {
		x.positions[e] = plan.Domains[e].Positions(ni)
		layout, err := partitions.NewPartitionBuilder(len(x.positions[e]), x.Units, x.Strategy).BuildPartitions()
		if err != nil {
			return fmt.Errorf("%v: %w", plan.ESFs[e], err)
		}
		x.layouts[e] = layout
	}

	if !mapped {
		okl, err := newOKLProgram(plan, x.layouts, x.positions)
		if err != nil {
			return err
		}
		x.okl = okl
		return nil
	}

	x.evals = make([][]*stencil.Evaluation[T], len(plan.ESFs))
	for e := range plan.ESFs {
		x.evals[e] = make([]*stencil.Evaluation[T], x.layouts[e].NumPartitions)
		for u := range x.evals[e] {
			eval, err := bindEvaluation(plan, e, backend.Device)
			if err != nil {
				return err
			}
			x.evals[e][u] = eval
		}
	}
	return nil
}

func (x *PartitionedExecutor[T]) Prepare() error {
	if x.plan == nil {
		return fmt.Errorf("partitioned executor: prepare before bind")
	}
	dispatch := buildDispatch(x.plan)
	if x.okl != nil {
		if err := x.okl.build(dispatch); err != nil {
			return err
		}
	} else if err := checkGoOverloads(x.plan, dispatch); err != nil {
		return err
	}
	x.dispatch = dispatch
	for e, layout := range x.layouts {
		stats := layout.PartitionStatistics()
		utils.Logger().Debug("partitioned esf",
			zap.Stringer("esf", x.plan.ESFs[e]),
			zap.Int("units", stats.NumPartitions),
			zap.Int("kpartMax", layout.KpartMax),
			zap.Float64("imbalance", stats.Imbalance),
			zap.Bool("kernel", x.okl != nil))
	}
	return nil
}

func (x *PartitionedExecutor[T]) Execute() error {
	if x.dispatch == nil {
		return fmt.Errorf("partitioned executor: execute before prepare")
	}
	for _, sec := range x.plan.Axis {
		if x.okl != nil {
			for _, k := range sec.Levels() {
				if err := x.kernelLevel(k); err != nil {
					return err
				}
			}
			continue
		}
		if sec.Direction == stencil.Parallel {
			x.parallelSection(sec.Levels())
			continue
		}
		for _, k := range sec.Levels() {
			x.parallelSection([]int{k})
		}
	}
	return nil
}

// parallelSection runs every ESF over the given levels, one barrier per ESF
// and color
func (x *PartitionedExecutor[T]) parallelSection(levels []int) {
	topo := x.plan.Grid.topo
	for e, esf := range x.plan.ESFs {
		active := false
		for _, k := range levels {
			active = active || x.dispatch[k][e] >= 0
		}
		if !active {
			continue
		}
		for c := 0; c < topo.ColorCount(esf.Location()); c++ {
			x.fanOut(e, func(u int) {
				for _, k := range levels {
					if n := x.dispatch[k][e]; n >= 0 {
						x.sweep(e, u, c, k, esf.Functor().Overloads()[n].Do)
					}
				}
			})
		}
	}
}

// fanOut runs work once per non-empty unit of ESF e and waits for all of
// them. A panic inside a unit is raised again on the calling goroutine.
func (x *PartitionedExecutor[T]) fanOut(e int, work func(unit int)) {
	var (
		g     errgroup.Group
		once  sync.Once
		fault any
	)
	g.SetLimit(x.Units)
	for u, p := range x.layouts[e].Partitions {
		if p.NumElements == 0 {
			continue
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { fault = r })
				}
			}()
			work(u)
			return nil
		})
	}
	_ = g.Wait()
	if fault != nil {
		panic(fault)
	}
}

func (x *PartitionedExecutor[T]) sweep(e, u, c, k int, do func(*stencil.Evaluation[T])) {
	ni := x.plan.Grid.cfg.NI
	eval := x.evals[e][u]
	positions := x.positions[e]
	for _, n := range x.layouts[e].Partitions[u].Elements {
		pos := int(positions[n])
		eval.MoveTo(topology.Point{I: pos % ni, C: c, J: pos / ni, K: k})
		do(eval)
	}
}

func (x *PartitionedExecutor[T]) kernelLevel(k int) error {
	topo := x.plan.Grid.topo
	for e, esf := range x.plan.ESFs {
		n := x.dispatch[k][e]
		if n < 0 || len(x.positions[e]) == 0 {
			continue
		}
		for c := 0; c < topo.ColorCount(esf.Location()); c++ {
			if err := x.okl.launch(e, n, k, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *PartitionedExecutor[T]) Free() {
	if x.okl != nil {
		x.okl.free()
		x.okl = nil
	}
	x.evals = nil
	x.dispatch = nil
}
