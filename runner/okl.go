package runner

import (
	"fmt"
	"regexp"
	"unsafe"

	"github.com/notargets/StencilKernel/device"
	"github.com/notargets/StencilKernel/partitions"
	"github.com/notargets/StencilKernel/runner/builder"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/utils"
	"go.uber.org/zap"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// oklProgram runs a stage on a device whose memory Go code cannot address:
// each overload of each ESF becomes one compiled kernel
type oklProgram[T storage.Scalar] struct {
	rt       device.Runtime
	compiler device.KernelBuilder
	plan     *Plan[T]

	builders  []*builder.Builder
	sources   []stencil.KernelSource
	offsets   []device.Memory // per ESF, nil when the ESF has no positions
	positions []device.Memory
	fieldArgs [][]interface{}
	arity     []int
	kernels   [][]device.Kernel // [esf][overload]
}

func newOKLProgram[T storage.Scalar](plan *Plan[T], layouts []*partitions.PartitionLayout,
	positions [][]int64) (*oklProgram[T], error) {
	rt := plan.Grid.rt
	compiler, ok := rt.(device.KernelBuilder)
	if !ok {
		return nil, fmt.Errorf("runtime %s neither maps its memory nor compiles kernels", rt.Mode())
	}

	p := &oklProgram[T]{
		rt:        rt,
		compiler:  compiler,
		plan:      plan,
		builders:  make([]*builder.Builder, len(plan.ESFs)),
		sources:   make([]stencil.KernelSource, len(plan.ESFs)),
		offsets:   make([]device.Memory, len(plan.ESFs)),
		positions: make([]device.Memory, len(plan.ESFs)),
		fieldArgs: make([][]interface{}, len(plan.ESFs)),
		arity:     make([]int, len(plan.ESFs)),
		kernels:   make([][]device.Kernel, len(plan.ESFs)),
	}

	for e, esf := range plan.ESFs {
		src, ok := esf.Functor().(stencil.KernelSource)
		if !ok {
			p.free()
			return nil, fmt.Errorf("%v: runtime %s requires kernel source", esf, rt.Mode())
		}
		p.sources[e] = src

		layout := layouts[e]
		k := make([]int, layout.NumPartitions)
		for u, part := range layout.Partitions {
			k[u] = part.NumElements
		}
		kb := builder.NewBuilder(builder.Config{
			K:         k,
			FloatType: storage.DataTypeOf[T](),
			IntType:   storage.INT64,
			NI:        plan.Grid.cfg.NI,
			NJ:        plan.Grid.cfg.NJ,
		})

		names := make(map[string]bool)
		for slot, a := range esf.Accessors() {
			name := esf.Args()[slot].Name
			if !identifier.MatchString(name) || names[name] {
				p.free()
				return nil, fmt.Errorf("%v: argument name %q is not a unique kernel identifier", esf, name)
			}
			names[name] = true
			f := plan.Fields[e][slot]
			kb.AddArray(builder.ArraySpec{
				Name:     name,
				IsOutput: a.Intent == stencil.ReadWrite,
				Strides:  f.Meta.Strides,
			})
			p.fieldArgs[e] = append(p.fieldArgs[e], f.Buffer().Device())
		}
		kb.GeneratePreamble()
		p.builders[e] = kb
		p.arity[e] = len(kb.GetKernelSignatureInfo())
		if total := kb.GetTotalElements(); total != len(positions[e]) {
			p.free()
			return nil, fmt.Errorf("%v: units hold %d positions, domain has %d", esf, total, len(positions[e]))
		}

		if len(positions[e]) == 0 {
			continue
		}
		offsets, elements := layout.Flatten()
		// Partition elements index the position list, kernels want the positions
		for n, idx := range elements {
			elements[n] = positions[e][idx]
		}
		var err error
		if p.offsets[e], err = rt.Malloc(int64(len(offsets)*8), unsafe.Pointer(&offsets[0])); err != nil {
			p.free()
			return nil, fmt.Errorf("%v: unit offsets: %w", esf, err)
		}
		if p.positions[e], err = rt.Malloc(int64(len(elements)*8), unsafe.Pointer(&elements[0])); err != nil {
			p.free()
			return nil, fmt.Errorf("%v: positions: %w", esf, err)
		}
	}
	return p, nil
}

// build compiles every overload the dispatch table reaches
func (p *oklProgram[T]) build(dispatch [][]int) error {
	for e, esf := range p.plan.ESFs {
		p.kernels[e] = make([]device.Kernel, len(esf.Functor().Overloads()))
	}
	for _, row := range dispatch {
		for e, n := range row {
			if n < 0 || p.kernels[e][n] != nil {
				continue
			}
			esf := p.plan.ESFs[e]
			body, ok := p.sources[e].KernelBody(n)
			if !ok {
				return fmt.Errorf("%v: overload %d has no kernel source", esf, n)
			}
			name := fmt.Sprintf("%s_%d_%d", kernelName(esf.Functor().Name()), e, n)
			kernel, err := p.compiler.BuildKernel(p.builders[e].GenerateKernel(name, body), name)
			if err != nil {
				return fmt.Errorf("%v: %w", esf, err)
			}
			p.kernels[e][n] = kernel
			utils.Logger().Info("built kernel",
				zap.String("kernel", name), zap.String("runtime", p.rt.Mode()))
		}
	}
	return nil
}

func (p *oklProgram[T]) launch(e, n, level, color int) error {
	args := make([]interface{}, 0, 4+len(p.fieldArgs[e]))
	args = append(args, int64(level), int64(color), p.offsets[e], p.positions[e])
	args = append(args, p.fieldArgs[e]...)
	if len(args) != p.arity[e] {
		return fmt.Errorf("%v: %d kernel arguments, signature declares %d", p.plan.ESFs[e], len(args), p.arity[e])
	}
	if err := p.kernels[e][n].Run(args...); err != nil {
		return fmt.Errorf("kernel execution failed: %w", err)
	}
	p.rt.Finish()
	return nil
}

func (p *oklProgram[T]) free() {
	for e := range p.kernels {
		for _, k := range p.kernels[e] {
			if k != nil {
				k.Free()
			}
		}
		p.kernels[e] = nil
	}
	for e := range p.offsets {
		if p.offsets[e] != nil {
			p.offsets[e].Free()
			p.offsets[e] = nil
		}
		if p.positions[e] != nil {
			p.positions[e].Free()
			p.positions[e] = nil
		}
	}
}

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]`)

func kernelName(functor string) string {
	name := nonIdentifier.ReplaceAllString(functor, "_")
	if name == "" || !identifier.MatchString(name) {
		name = "esf_" + name
	}
	return name
}
