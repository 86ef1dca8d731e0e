package runner

import (
	"errors"
	"fmt"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
	"github.com/notargets/StencilKernel/utils"
	"go.uber.org/zap"
)

var (
	// ErrLifecycle is returned when stage methods are called out of order
	ErrLifecycle = errors.New("stage lifecycle violation")
	// ErrUnbound is returned when a placeholder has no field
	ErrUnbound = errors.New("unbound placeholder")
)

type stageState uint8

const (
	stageBuilt stageState = iota
	stageReady
	stageSteady
	stageFinalized
)

func (s stageState) String() string {
	return [...]string{"built", "ready", "steady", "finalized"}[s]
}

// Stage is a sequence of ESFs applied over a vertical axis. Its lifecycle is
// Ready, Steady, any number of Run calls, then Finalize.
type Stage[T storage.Scalar] struct {
	grid     *Grid
	axis     stencil.Axis
	esfs     []*stencil.ESF[T]
	bindings map[stencil.Arg]*storage.Field[T]
	copies   map[stencil.Arg]ActionFlags
	extents  map[stencil.Arg]stencil.Extent

	plan  *Plan[T]
	exec  KernelExecutor[T]
	state stageState
}

// NewStage validates the composition, computes extents and compute domains,
// and resolves the executor for the grid's backend
func NewStage[T storage.Scalar](g *Grid, axis stencil.Axis, esfs []*stencil.ESF[T],
	bindings map[stencil.Arg]*storage.Field[T], opts ...StageOption) (*Stage[T], error) {
	if err := axis.Validate(g.cfg.NK); err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	if len(esfs) == 0 {
		return nil, fmt.Errorf("stage has no ESFs")
	}

	options := stageOptions{copies: make(map[stencil.Arg]ActionFlags)}
	for _, opt := range opts {
		opt(&options)
	}

	for _, esf := range esfs {
		if !topology.Defines(g.topo, esf.Location()) {
			return nil, fmt.Errorf("%v: %v not defined by the topology: %w",
				esf, esf.Location(), stencil.ErrLocation)
		}
		for _, a := range esf.Accessors() {
			if !topology.Defines(g.topo, a.Location) {
				return nil, fmt.Errorf("%v: %v not defined by the topology: %w", esf, a, stencil.ErrLocation)
			}
		}
	}

	args := stencil.ArgsOf(esfs)
	used := make(map[stencil.Arg]bool, len(args))
	for _, arg := range args {
		used[arg] = true
		f, ok := bindings[arg]
		if !ok || f == nil {
			return nil, fmt.Errorf("%v: %w", arg, ErrUnbound)
		}
		if f.Location() != arg.Location {
			return nil, fmt.Errorf("%v bound to %v field %s: %w", arg, f.Location(), f.Name, stencil.ErrLocation)
		}
		dims, err := g.Dims(arg.Location)
		if err != nil {
			return nil, err
		}
		if f.Meta.Dims != dims || f.Meta.Layout != g.traits.Layout {
			return nil, fmt.Errorf("field %s (%v) was not laid out for this grid", f.Name, f.Meta)
		}
	}
	for arg := range options.copies {
		if !used[arg] {
			return nil, fmt.Errorf("copy action on %v, which no ESF uses: %w", arg, ErrUnbound)
		}
	}

	exec, err := newExecutor[T](g.traits.Strategy, g.cfg)
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}

	s := &Stage[T]{
		grid:     g,
		axis:     append(stencil.Axis(nil), axis...),
		esfs:     append([]*stencil.ESF[T](nil), esfs...),
		bindings: make(map[stencil.Arg]*storage.Field[T], len(args)),
		copies:   options.copies,
		extents:  make(map[stencil.Arg]stencil.Extent, len(args)),
		exec:     exec,
	}
	for _, arg := range args {
		s.bindings[arg] = bindings[arg]
		s.extents[arg] = stencil.ExtentOf(esfs, arg)
	}

	required := stencil.RequiredExtents(esfs)
	s.plan = &Plan[T]{
		Grid:    g,
		Axis:    s.axis,
		ESFs:    s.esfs,
		Fields:  make([][]*storage.Field[T], len(esfs)),
		Domains: make([]Domain, len(esfs)),
	}
	for e, esf := range esfs {
		var reads stencil.Extent
		for slot, a := range esf.Accessors() {
			s.plan.Fields[e] = append(s.plan.Fields[e], bindings[esf.Args()[slot]])
			reads = reads.Union(a.Extent)
		}
		d, err := computeDomain(g.DimensionI(), g.DimensionJ(), required[e], reads)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", esf, err)
		}
		s.plan.Domains[e] = d
	}
	return s, nil
}

// Extent returns the union of the extents arg is accessed with
func (s *Stage[T]) Extent(arg stencil.Arg) stencil.Extent { return s.extents[arg] }

// Domain returns the compute domain of the e-th ESF
func (s *Stage[T]) Domain(e int) Domain { return s.plan.Domains[e] }

// Ready binds the executor to the views of its backend
func (s *Stage[T]) Ready() error {
	if s.state != stageBuilt {
		return fmt.Errorf("ready on %v stage: %w", s.state, ErrLifecycle)
	}
	if err := s.exec.Bind(s.plan); err != nil {
		return fmt.Errorf("stage ready: %w", err)
	}
	s.state = stageReady
	utils.Logger().Debug("stage ready",
		zap.Stringer("arch", s.grid.traits.Arch),
		zap.Stringer("strategy", s.grid.traits.Strategy),
		zap.Int("esfs", len(s.esfs)))
	return nil
}

// Steady builds the level dispatch table and any device kernels
func (s *Stage[T]) Steady() error {
	if s.state != stageReady {
		return fmt.Errorf("steady on %v stage: %w", s.state, ErrLifecycle)
	}
	if err := s.exec.Prepare(); err != nil {
		return fmt.Errorf("stage steady: %w", err)
	}
	s.state = stageSteady
	return nil
}

// Run executes the stage once. On a device backend the scheduled copy
// actions are performed around the execution.
func (s *Stage[T]) Run() error {
	if s.state != stageSteady {
		return fmt.Errorf("run on %v stage: %w", s.state, ErrLifecycle)
	}
	onDevice := s.grid.traits.Arch == backend.Device
	if onDevice {
		for arg, flags := range s.copies {
			if flags.HasAction(CopyTo) {
				s.bindings[arg].PushToDevice()
			}
		}
	}
	if err := s.exec.Execute(); err != nil {
		return fmt.Errorf("stage run: %w", err)
	}
	if onDevice {
		for arg, flags := range s.copies {
			if flags.HasAction(CopyBack) {
				s.bindings[arg].PullToHost()
			}
		}
	}
	return nil
}

// Finalize releases the executor's resources. Fields stay with their grid.
func (s *Stage[T]) Finalize() error {
	if s.state == stageFinalized {
		return fmt.Errorf("finalize on %v stage: %w", s.state, ErrLifecycle)
	}
	s.exec.Free()
	s.state = stageFinalized
	return nil
}
