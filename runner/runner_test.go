package runner

import (
	"testing"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/device"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
	"github.com/notargets/StencilKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	argIn  = stencil.NewArg(0, "in", topology.Cells)
	argOut = stencil.NewArg(1, "out", topology.Cells)
	argTmp = stencil.NewArg(2, "tmp", topology.Cells)
)

func init() {
	utils.SetLogger(zap.NewNop())
}

func testConfig(arch backend.Arch) Config {
	cfg := DefaultConfig()
	cfg.Arch = arch
	cfg.NI, cfg.NJ, cfg.NK = 8, 7, 4
	cfg.Units = 3
	return cfg
}

// newGrid creates a grid, with an emulated runtime for the device arch
func newGrid(t *testing.T, cfg Config, topo topology.Topology) *Grid {
	t.Helper()
	var rt device.Runtime
	if cfg.Arch == backend.Device {
		rt = device.NewEmulated()
	}
	g, err := NewGrid(cfg, topo, rt)
	require.NoError(t, err)
	t.Cleanup(g.Free)
	return g
}

func makeField(t *testing.T, g *Grid, name string, init func(p topology.Point) float64) *storage.Field[float64] {
	t.Helper()
	f, err := MakeStorage[float64](g, topology.Cells, name)
	require.NoError(t, err)
	f.InitializeFunc(init)
	f.PushToDevice()
	return f
}

func inputValue(p topology.Point) float64 {
	return float64(p.I) + 0.5*float64(p.J) + 0.25*float64(p.C) + 10*float64(p.K)
}

func constant(v float64) func(topology.Point) float64 {
	return func(topology.Point) float64 { return v }
}

// onCells sums the cell neighbours of every cell
func onCells(nk int) stencil.Functor[float64] {
	in := stencil.In(0, topology.Cells, stencil.Symmetric(1))
	out := stencil.InOut(1, topology.Cells)
	return stencil.NewFunctor[float64]("on_cells", []stencil.Accessor{in, out}, stencil.Overload[float64]{
		Interval: stencil.Interval{Begin: 0, End: nk},
		Do: func(eval *stencil.Evaluation[float64]) {
			eval.Set(out, eval.Reduce(in, 0, func(acc, v float64) float64 { return acc + v }))
		},
	})
}

func identity(nk int) stencil.Functor[float64] {
	in := stencil.In(0, topology.Cells, stencil.Extent{})
	out := stencil.InOut(1, topology.Cells)
	return stencil.NewFunctor[float64]("identity", []stencil.Accessor{in, out}, stencil.Overload[float64]{
		Interval: stencil.Interval{Begin: 0, End: nk},
		Do: func(eval *stencil.Evaluation[float64]) {
			eval.Set(out, eval.Get(in))
		},
		OKL: "FIELD(out, i, c, j, k) = FIELD(in, i, c, j, k);",
	})
}

func buildStage(t *testing.T, g *Grid, axis stencil.Axis, esfs []*stencil.ESF[float64],
	bindings map[stencil.Arg]*storage.Field[float64], opts ...StageOption) *Stage[float64] {
	t.Helper()
	s, err := NewStage(g, axis, esfs, bindings, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Ready())
	require.NoError(t, s.Steady())
	return s
}

func parallelAxis(t *testing.T, nk int) stencil.Axis {
	axis, err := stencil.NewAxis(nk, stencil.Parallel)
	require.NoError(t, err)
	return axis
}

// referenceSum iterates neighbours directly
func referenceSum(topo topology.Topology, in *storage.Field[float64], p topology.Point) float64 {
	var sum float64
	for _, q := range topo.NeighboursOf(topology.Cells, topology.Cells, p) {
		sum += in.At(q)
	}
	return sum
}

// forEachPoint visits every point of a cell field, reporting whether it is
// in the interior
func forEachPoint(g *Grid, fn func(p topology.Point, interior bool)) {
	di, dj := g.DimensionI(), g.DimensionJ()
	cfg := g.Config()
	for k := 0; k < cfg.NK; k++ {
		for c := 0; c < g.Topology().ColorCount(topology.Cells); c++ {
			for j := 0; j < cfg.NJ; j++ {
				for i := 0; i < cfg.NI; i++ {
					interior := i >= di.Begin && i < di.End && j >= dj.Begin && j < dj.End
					fn(topology.Point{I: i, C: c, J: j, K: k}, interior)
				}
			}
		}
	}
}

func TestStage_NeighbourSum(t *testing.T) {
	cfg := testConfig(backend.Host)
	ico := topology.NewIcosahedral()
	g := newGrid(t, cfg, ico)

	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(-1))

	esf, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argOut)
	require.NoError(t, err)
	s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
	require.NoError(t, s.Run())
	require.NoError(t, s.Finalize())

	forEachPoint(g, func(p topology.Point, interior bool) {
		if interior {
			require.InDelta(t, referenceSum(ico, in, p), out.At(p), 1e-12, "%v", p)
		} else {
			require.Equal(t, -1.0, out.At(p), "halo point %v modified", p)
		}
	})
	assert.Equal(t, stencil.Symmetric(1), s.Extent(argIn))
	assert.Equal(t, stencil.Extent{}, s.Extent(argOut))
}

func TestStage_Identity6x6x6(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NI, cfg.NJ, cfg.NK = 6, 6, 6
	tbl, err := topology.NewTable(make([][]int, 6))
	require.NoError(t, err)
	g := newGrid(t, cfg, tbl)

	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(0))
	esf, err := stencil.MakeESF(identity(cfg.NK), topology.Cells, argIn, argOut)
	require.NoError(t, err)
	s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
	require.NoError(t, s.Run())

	count := 0
	forEachPoint(g, func(p topology.Point, interior bool) {
		if interior {
			count++
			require.Equal(t, in.At(p), out.At(p), "%v", p)
		} else {
			require.Equal(t, 0.0, out.At(p), "%v", p)
		}
	})
	assert.Equal(t, 4*4*6, count)
}

func TestStage_IntervalOrdering(t *testing.T) {
	testCases := []struct {
		name     string
		dir      stencil.Direction
		expected []int
	}{
		{"Forward", stencil.Forward, []int{0, 1, 2, 3}},
		{"Backward", stencil.Backward, []int{3, 2, 1, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(backend.Host)
			g := newGrid(t, cfg, topology.NewIcosahedral())
			in := makeField(t, g, "in", inputValue)
			out := makeField(t, g, "out", constant(0))

			var observed []int
			first := topology.Point{I: 1, C: 0, J: 1}
			outAcc := stencil.InOut(1, topology.Cells)
			record := func(eval *stencil.Evaluation[float64]) {
				p := eval.Point()
				if p.I == first.I && p.J == first.J && p.C == first.C {
					observed = append(observed, p.K)
				}
				eval.Set(outAcc, 1)
			}
			f := stencil.NewFunctor[float64]("record",
				[]stencil.Accessor{stencil.In(0, topology.Cells, stencil.Extent{}), outAcc},
				stencil.Overload[float64]{Interval: stencil.Interval{Begin: 0, End: 2}, Do: record},
				stencil.Overload[float64]{Interval: stencil.Interval{Begin: 2, End: 4}, Do: record},
			)
			esf, err := stencil.MakeESF(f, topology.Cells, argIn, argOut)
			require.NoError(t, err)

			axis, err := stencil.NewAxis(cfg.NK, tc.dir, 2)
			require.NoError(t, err)
			s := buildStage(t, g, axis, []*stencil.ESF[float64]{esf},
				map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
			require.NoError(t, s.Run())
			assert.Equal(t, tc.expected, observed)
		})
	}
}

func TestStage_OverloadDispatch(t *testing.T) {
	cfg := testConfig(backend.Host)
	g := newGrid(t, cfg, topology.NewIcosahedral())
	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(-1))

	outAcc := stencil.InOut(1, topology.Cells)
	setTo := func(v float64) func(*stencil.Evaluation[float64]) {
		return func(eval *stencil.Evaluation[float64]) { eval.Set(outAcc, v) }
	}
	f := stencil.NewFunctor[float64]("levels",
		[]stencil.Accessor{stencil.In(0, topology.Cells, stencil.Extent{}), outAcc},
		stencil.Overload[float64]{Interval: stencil.Interval{Begin: 0, End: 2}, Do: setTo(1)},
		stencil.Overload[float64]{Interval: stencil.Interval{Begin: 2, End: 3}, Do: setTo(2)},
	)
	esf, err := stencil.MakeESF(f, topology.Cells, argIn, argOut)
	require.NoError(t, err)
	s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
	require.NoError(t, s.Run())

	expected := []float64{1, 1, 2, -1}
	forEachPoint(g, func(p topology.Point, interior bool) {
		if interior {
			require.Equal(t, expected[p.K], out.At(p), "%v", p)
		}
	})
}

func TestStage_Idempotent(t *testing.T) {
	cfg := testConfig(backend.Host)
	g := newGrid(t, cfg, topology.NewIcosahedral())
	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(0))

	esf, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argOut)
	require.NoError(t, err)
	s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})

	require.NoError(t, s.Run())
	first := append([]float64(nil), out.Buffer().Host()...)
	require.NoError(t, s.Run())
	assert.Equal(t, first, out.Buffer().Host())
}

func TestStage_ChainedESFs(t *testing.T) {
	cfg := testConfig(backend.Host)
	cfg.HaloI, cfg.HaloJ = 2, 2
	ico := topology.NewIcosahedral()
	g := newGrid(t, cfg, ico)

	in := makeField(t, g, "in", inputValue)
	tmp := makeField(t, g, "tmp", constant(0))
	out := makeField(t, g, "out", constant(0))

	first, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argTmp)
	require.NoError(t, err)
	second, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argTmp, argOut)
	require.NoError(t, err)
	s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{first, second},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argTmp: tmp, argOut: out})

	// The first ESF computes one ring beyond the interior
	assert.Equal(t, Domain{IBegin: 1, IEnd: 7, JBegin: 1, JEnd: 6}, s.Domain(0))
	assert.Equal(t, Domain{IBegin: 2, IEnd: 6, JBegin: 2, JEnd: 5}, s.Domain(1))

	require.NoError(t, s.Run())
	forEachPoint(g, func(p topology.Point, interior bool) {
		if !interior {
			return
		}
		var want float64
		for _, q := range ico.NeighboursOf(topology.Cells, topology.Cells, p) {
			want += referenceSum(ico, in, q)
		}
		require.InDelta(t, want, out.At(p), 1e-9, "%v", p)
	})
}

func TestStage_CheckedWriteThroughIn(t *testing.T) {
	cfg := testConfig(backend.Host)
	g := newGrid(t, cfg, topology.NewIcosahedral())
	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(0))

	inAcc := stencil.In(0, topology.Cells, stencil.Extent{})
	f := stencil.NewFunctor[float64]("bad",
		[]stencil.Accessor{inAcc, stencil.InOut(1, topology.Cells)},
		stencil.Overload[float64]{
			Interval: stencil.Interval{Begin: 0, End: cfg.NK},
			Do:       func(eval *stencil.Evaluation[float64]) { eval.Set(inAcc, 0) },
		})
	esf, err := stencil.MakeESF(f, topology.Cells, argIn, argOut)
	require.NoError(t, err)
	s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
	assert.Panics(t, func() { _ = s.Run() })
}

func TestStage_Lifecycle(t *testing.T) {
	cfg := testConfig(backend.Host)
	g := newGrid(t, cfg, topology.NewIcosahedral())
	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(0))
	esf, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argOut)
	require.NoError(t, err)

	s, err := NewStage(g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
		map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Run(), ErrLifecycle)
	assert.ErrorIs(t, s.Steady(), ErrLifecycle)
	require.NoError(t, s.Ready())
	assert.ErrorIs(t, s.Ready(), ErrLifecycle)
	assert.ErrorIs(t, s.Run(), ErrLifecycle)
	require.NoError(t, s.Steady())
	require.NoError(t, s.Run())
	require.NoError(t, s.Run())
	require.NoError(t, s.Finalize())
	assert.ErrorIs(t, s.Finalize(), ErrLifecycle)
	assert.ErrorIs(t, s.Run(), ErrLifecycle)
}

func TestNewStage_Errors(t *testing.T) {
	cfg := testConfig(backend.Host)
	g := newGrid(t, cfg, topology.NewIcosahedral())
	in := makeField(t, g, "in", inputValue)
	out := makeField(t, g, "out", constant(0))
	edges, err := MakeStorage[float64](g, topology.Edges, "edges")
	require.NoError(t, err)

	esf, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argOut)
	require.NoError(t, err)
	esfs := []*stencil.ESF[float64]{esf}
	axis := parallelAxis(t, cfg.NK)

	t.Run("Unbound", func(t *testing.T) {
		_, err := NewStage(g, axis, esfs, map[stencil.Arg]*storage.Field[float64]{argIn: in})
		assert.ErrorIs(t, err, ErrUnbound)
	})
	t.Run("WrongLocation", func(t *testing.T) {
		_, err := NewStage(g, axis, esfs, map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: edges})
		assert.ErrorIs(t, err, stencil.ErrLocation)
	})
	t.Run("BadAxis", func(t *testing.T) {
		short := stencil.Axis{{Interval: stencil.Interval{Begin: 0, End: 2}, Direction: stencil.Forward}}
		_, err := NewStage(g, short, esfs, map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
		assert.Error(t, err)
	})
	t.Run("CopyOnUnusedArg", func(t *testing.T) {
		_, err := NewStage(g, axis, esfs, map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out},
			WithCopy(argTmp, CopyBack))
		assert.ErrorIs(t, err, ErrUnbound)
	})
	t.Run("LocationUnknownToTopology", func(t *testing.T) {
		tbl, err := topology.NewTable([][]int{{}})
		require.NoError(t, err)
		tg := newGrid(t, cfg, tbl)
		edgeArg := stencil.NewArg(9, "e", topology.Edges)
		f := stencil.NewFunctor[float64]("edges", []stencil.Accessor{stencil.InOut(0, topology.Edges)})
		eesf, err := stencil.MakeESF(f, topology.Edges, edgeArg)
		require.NoError(t, err)
		_, err = NewStage(tg, axis, []*stencil.ESF[float64]{eesf}, nil)
		assert.ErrorIs(t, err, stencil.ErrLocation)
		_, err = MakeStorage[float64](tg, topology.Edges, "e")
		assert.ErrorIs(t, err, topology.ErrUnsupported)
	})
	t.Run("ForwardSectionsOutOfOrder", func(t *testing.T) {
		unordered := stencil.Axis{
			{Interval: stencil.Interval{Begin: 2, End: 4}, Direction: stencil.Forward},
			{Interval: stencil.Interval{Begin: 0, End: 2}, Direction: stencil.Forward},
		}
		_, err := NewStage(g, unordered, esfs, map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
		assert.Error(t, err)
	})
}

func TestNewStage_ExtentBeyondHalo(t *testing.T) {
	t.Run("NoHalo", func(t *testing.T) {
		cfg := testConfig(backend.Host)
		cfg.HaloI, cfg.HaloJ = 0, 0
		g := newGrid(t, cfg, topology.NewIcosahedral())
		in := makeField(t, g, "in", inputValue)
		out := makeField(t, g, "out", constant(-1))

		esf, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argOut)
		require.NoError(t, err)
		_, err = NewStage(g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{esf},
			map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
		assert.ErrorIs(t, err, ErrHalo)

		// Zero extents run on the whole allocation
		id, err := stencil.MakeESF(identity(cfg.NK), topology.Cells, argIn, argOut)
		require.NoError(t, err)
		s := buildStage(t, g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{id},
			map[stencil.Arg]*storage.Field[float64]{argIn: in, argOut: out})
		assert.Equal(t, Domain{IBegin: 0, IEnd: cfg.NI, JBegin: 0, JEnd: cfg.NJ}, s.Domain(0))
		require.NoError(t, s.Run())
		p := topology.Point{I: 0, C: 1, J: 3}
		assert.Equal(t, in.At(p), out.At(p))
	})
	t.Run("ChainNeedsTwoRings", func(t *testing.T) {
		cfg := testConfig(backend.Host)
		g := newGrid(t, cfg, topology.NewIcosahedral())
		in := makeField(t, g, "in", inputValue)
		tmp := makeField(t, g, "tmp", constant(0))
		out := makeField(t, g, "out", constant(0))

		first, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argIn, argTmp)
		require.NoError(t, err)
		second, err := stencil.MakeESF(onCells(cfg.NK), topology.Cells, argTmp, argOut)
		require.NoError(t, err)
		_, err = NewStage(g, parallelAxis(t, cfg.NK), []*stencil.ESF[float64]{first, second},
			map[stencil.Arg]*storage.Field[float64]{argIn: in, argTmp: tmp, argOut: out})
		assert.ErrorIs(t, err, ErrHalo)
	})
}

func TestComputeDomain(t *testing.T) {
	i := DimensionInfo{HaloMinus: 2, HaloPlus: 2, Begin: 2, End: 8, Total: 10}
	j := DimensionInfo{HaloMinus: 1, HaloPlus: 1, Begin: 1, End: 5, Total: 6}

	d, err := computeDomain(i, j, stencil.Extent{IMinus: 1, IPlus: 1}, stencil.Symmetric(1))
	require.NoError(t, err)
	assert.Equal(t, Domain{IBegin: 1, IEnd: 9, JBegin: 1, JEnd: 5}, d)

	_, err = computeDomain(i, j, stencil.Extent{}, stencil.Extent{JPlus: 2})
	assert.ErrorIs(t, err, ErrHalo)
	_, err = computeDomain(i, j, stencil.Extent{IMinus: 2}, stencil.Extent{IMinus: 1})
	assert.ErrorIs(t, err, ErrHalo)
}

func TestNewGrid_Errors(t *testing.T) {
	_, err := NewGrid(testConfig(backend.Device), topology.NewIcosahedral(), nil)
	assert.Error(t, err, "device arch without runtime")

	cfg := testConfig(backend.Host)
	cfg.HaloI = 5
	_, err = NewGrid(cfg, topology.NewIcosahedral(), nil)
	assert.Error(t, err)

	_, err = NewGrid(testConfig(backend.Host), nil, nil)
	assert.Error(t, err)
}

func TestGrid_FreeReleasesFields(t *testing.T) {
	rt := device.NewEmulated()
	g, err := NewGrid(testConfig(backend.Device), topology.NewIcosahedral(), rt)
	require.NoError(t, err)
	_, err = MakeStorage[float64](g, topology.Cells, "a")
	require.NoError(t, err)
	_, err = MakeStorage[float32](g, topology.Vertices, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Live())

	g.Free()
	g.Free()
	assert.Equal(t, 0, rt.Live())
	assert.Equal(t, int64(0), rt.Allocated())

	_, err = MakeStorage[float64](g, topology.Cells, "late")
	assert.Error(t, err)
}

func TestGrid_Dimensions(t *testing.T) {
	g := newGrid(t, testConfig(backend.Host), topology.NewIcosahedral())
	assert.Equal(t, DimensionInfo{HaloMinus: 1, HaloPlus: 1, Begin: 1, End: 7, Total: 8}, g.DimensionI())
	assert.Equal(t, DimensionInfo{HaloMinus: 1, HaloPlus: 1, Begin: 1, End: 6, Total: 7}, g.DimensionJ())

	dims, err := g.Dims(topology.Edges)
	require.NoError(t, err)
	assert.Equal(t, [backend.NumAxes]int{8, 3, 7, 4}, dims)
}
