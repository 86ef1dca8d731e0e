package storage

import (
	"strings"
	"testing"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/device"
	"github.com/notargets/StencilKernel/topology"
	"github.com/notargets/StencilKernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDualBuffer_RoundTrip(t *testing.T) {
	rt := device.NewEmulated()
	a := NewDualBuffer[float64](rt, 17, Checked)
	b := NewDualBuffer[float64](rt, 17, Checked)
	defer a.Release()
	defer b.Release()

	for i := range a.Host() {
		a.Host()[i] = float64(i)*0.1 - 3
	}
	a.PushToDevice()

	// Copy device to device through the mapped views, then pull
	av, bv := a.DeviceView(), b.DeviceView()
	for i := 0; i < av.Len(); i++ {
		bv.Set(i, av.Get(i))
	}
	b.PullToHost()
	assert.Equal(t, a.Host(), b.Host())
}

func TestDualBuffer_CopiesAreIndependent(t *testing.T) {
	rt := device.NewEmulated()
	buf := NewDualBuffer[int32](rt, 4, Checked)
	defer buf.Release()

	buf.Host()[1] = 5
	assert.Equal(t, int32(0), buf.DeviceView().Get(1), "host write visible on device without push")

	buf.PushToDevice()
	assert.Equal(t, int32(5), buf.DeviceView().Get(1))

	buf.DeviceView().Set(2, 9)
	assert.Equal(t, int32(0), buf.Host()[2], "device write visible on host without pull")
	buf.PullToHost()
	assert.Equal(t, int32(9), buf.Host()[2])
}

func TestDualBuffer_Select(t *testing.T) {
	rt := device.NewEmulated()
	buf := NewDualBuffer[float32](rt, 3, Checked)
	defer buf.Release()

	buf.Select(backend.Host).Set(0, 1)
	buf.Select(backend.Device).Set(0, 2)
	assert.Equal(t, float32(1), buf.Host()[0])
	assert.Equal(t, float32(2), buf.DeviceView().Get(0))
}

func TestDualBuffer_HostOnly(t *testing.T) {
	buf := NewDualBuffer[float64](nil, 8, Checked)
	assert.False(t, buf.HasDevice())
	assert.False(t, buf.DeviceView().Valid())
	assert.True(t, buf.HostView().Valid())

	// Transfers are no-ops
	buf.Host()[0] = 1
	buf.PushToDevice()
	buf.PullToHost()
	assert.Equal(t, 1.0, buf.Host()[0])
	buf.Release()
	buf.Release()
}

func TestDualBuffer_CheckedAccess(t *testing.T) {
	buf := NewDualBuffer[float64](nil, 4, Checked)
	v := buf.HostView()
	assert.PanicsWithValue(t, "index 4 out of range [0,4)", func() { v.Get(4) })
	assert.Panics(t, func() { v.Set(-1, 0) })
	assert.Panics(t, func() { buf.DeviceView().Get(0) })

	fast := NewDualBuffer[float64](nil, 4, Fast)
	assert.NotPanics(t, func() { fast.HostView().Set(3, 1) })
}

func TestDualBuffer_HostAllocationPanics(t *testing.T) {
	assert.Panics(t, func() { NewDualBuffer[float64](nil, -1, Checked) })
}

func TestDualBuffer_DeviceAllocationFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := utils.SetLogger(zap.New(core))
	defer utils.SetLogger(prev)

	rt := device.NewEmulated(device.WithMemoryLimit(16))
	buf := NewDualBuffer[float64](rt, 4, Checked)
	defer buf.Release()

	assert.False(t, buf.HasDevice())
	assert.Nil(t, buf.Device())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, int64(32), entry.ContextMap()["bytes"])
	assert.Equal(t, device.ModeEmulated, entry.ContextMap()["runtime"])

	// Still usable on host
	buf.HostView().Set(3, 2.5)
	assert.Equal(t, 2.5, buf.Host()[3])
}

func TestDualBuffer_Release(t *testing.T) {
	rt := device.NewEmulated()
	buf := NewDualBuffer[int64](rt, 10, Checked)
	assert.Equal(t, int64(80), rt.Allocated())
	buf.Release()
	buf.Release()
	assert.Equal(t, int64(0), rt.Allocated())
	assert.Equal(t, 0, rt.Live())
}

func TestDualBuffer_String(t *testing.T) {
	rt := device.NewEmulated()
	buf := NewDualBuffer[float64](rt, 2, Checked)
	defer buf.Release()
	s := buf.String()
	assert.True(t, strings.HasPrefix(s, "DualBuffer[float64]{len=2 bytes=16 mode=checked"), s)
	assert.Contains(t, s, device.ModeEmulated)
}

func TestMetaData_IndexAndPoint(t *testing.T) {
	dims := [backend.NumAxes]int{5, 2, 4, 3}
	for _, layout := range []backend.LayoutMap{backend.HostLayout, backend.DeviceLayout} {
		meta, err := NewMetaData(topology.Cells, dims, layout)
		require.NoError(t, err)
		seen := make(map[int]bool, meta.Len())
		for k := 0; k < dims[3]; k++ {
			for j := 0; j < dims[2]; j++ {
				for c := 0; c < dims[1]; c++ {
					for i := 0; i < dims[0]; i++ {
						p := topology.Point{I: i, C: c, J: j, K: k}
						idx := meta.Index(p)
						require.False(t, seen[idx], "%v: duplicate index %d", layout, idx)
						seen[idx] = true
						require.Equal(t, p, meta.Point(idx))
					}
				}
			}
		}
		assert.Len(t, seen, meta.Len())
	}
}

func TestMetaData_Errors(t *testing.T) {
	_, err := NewMetaData(topology.Cells, [backend.NumAxes]int{0, 1, 1, 1}, backend.HostLayout)
	assert.Error(t, err)
	_, err = NewMetaData(topology.Cells, [backend.NumAxes]int{1, 1, 1, 1}, backend.LayoutMap{0, 0, 1, 2})
	assert.Error(t, err)
}

func TestField_InitializeAndSlab(t *testing.T) {
	meta, err := NewMetaData(topology.Cells, [backend.NumAxes]int{3, 2, 2, 2}, backend.HostLayout)
	require.NoError(t, err)
	f := NewField[float64]("in", meta, nil, Checked)
	defer f.Release()

	f.Initialize(7)
	assert.Equal(t, 7.0, f.At(topology.Point{I: 2, C: 1, J: 1, K: 1}))

	f.InitializeFunc(func(p topology.Point) float64 {
		return float64(100*p.K + 10*p.J + p.I)
	})
	slab := f.Slab(1, 1)
	r, c := slab.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 112.0, slab.At(1, 2))

	assert.Panics(t, func() { f.At(topology.Point{I: 3}) })
}

func TestDataTypeOf(t *testing.T) {
	type celsius float32
	assert.Equal(t, Float64, DataTypeOf[float64]())
	assert.Equal(t, Float32, DataTypeOf[celsius]())
	assert.Equal(t, INT32, DataTypeOf[int32]())
	assert.Equal(t, INT64, DataTypeOf[int64]())
	assert.Equal(t, 4, SizeOf[celsius]())
	assert.Equal(t, "double", Float64.CType())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("FAST")
	require.NoError(t, err)
	assert.Equal(t, Fast, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Checked, m)
	_, err = ParseMode("paranoid")
	assert.Error(t, err)
}
