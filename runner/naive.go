package runner

import (
	"fmt"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
)

// NaiveExecutor visits every point sequentially on the host
type NaiveExecutor[T storage.Scalar] struct {
	plan     *Plan[T]
	evals    []*stencil.Evaluation[T]
	dispatch [][]int
}

func (x *NaiveExecutor[T]) Bind(plan *Plan[T]) error {
	x.plan = plan
	x.evals = make([]*stencil.Evaluation[T], len(plan.ESFs))
	for e := range plan.ESFs {
		eval, err := bindEvaluation(plan, e, backend.Host)
		if err != nil {
			return err
		}
		x.evals[e] = eval
	}
	return nil
}

func (x *NaiveExecutor[T]) Prepare() error {
	if x.plan == nil {
		return fmt.Errorf("naive executor: prepare before bind")
	}
	dispatch := buildDispatch(x.plan)
	if err := checkGoOverloads(x.plan, dispatch); err != nil {
		return err
	}
	x.dispatch = dispatch
	return nil
}

func (x *NaiveExecutor[T]) Execute() error {
	if x.dispatch == nil {
		return fmt.Errorf("naive executor: execute before prepare")
	}
	for _, sec := range x.plan.Axis {
		for _, k := range sec.Levels() {
			x.level(k)
		}
	}
	return nil
}

func (x *NaiveExecutor[T]) level(k int) {
	topo := x.plan.Grid.topo
	for e, esf := range x.plan.ESFs {
		n := x.dispatch[k][e]
		if n < 0 {
			continue
		}
		do := esf.Functor().Overloads()[n].Do
		eval := x.evals[e]
		d := x.plan.Domains[e]
		for c := 0; c < topo.ColorCount(esf.Location()); c++ {
			for j := d.JBegin; j < d.JEnd; j++ {
				for i := d.IBegin; i < d.IEnd; i++ {
					eval.MoveTo(topology.Point{I: i, C: c, J: j, K: k})
					do(eval)
				}
			}
		}
	}
}

func (x *NaiveExecutor[T]) Free() {
	x.evals = nil
	x.dispatch = nil
}
