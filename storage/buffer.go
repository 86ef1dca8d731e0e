package storage

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/device"
	"github.com/notargets/StencilKernel/utils"
	"go.uber.org/zap"
)

// DualBuffer holds one host allocation and one device allocation of the same
// length. The two copies are independent: writes on one side become visible
// on the other only through PushToDevice or PullToHost.
type DualBuffer[T Scalar] struct {
	length int
	mode   Mode
	host   []T

	rt  device.Runtime
	dev device.Memory // nil when no runtime or the allocation failed
	// devPtr addresses dev when the runtime maps its memory
	devPtr unsafe.Pointer

	released bool
}

// NewDualBuffer allocates length elements on the host and, when rt is not
// nil, on the device. A failed device allocation is logged and leaves the
// buffer host-only. A length that cannot be allocated on the host panics.
func NewDualBuffer[T Scalar](rt device.Runtime, length int, mode Mode) *DualBuffer[T] {
	size := SizeOf[T]()
	if length < 0 || int64(length) > math.MaxInt64/int64(size) {
		panic(fmt.Sprintf("cannot allocate %d elements of %s on host", length, DataTypeOf[T]()))
	}

	b := &DualBuffer[T]{
		length: length,
		mode:   mode,
		host:   make([]T, length),
		rt:     rt,
	}
	if rt == nil {
		return b
	}

	mem, err := rt.Malloc(b.Bytes(), nil)
	if err != nil {
		utils.Logger().Warn("device allocation failed, buffer is host only",
			zap.Int64("bytes", b.Bytes()),
			zap.String("runtime", rt.Mode()),
			zap.Error(err))
		return b
	}
	b.dev = mem
	if m, ok := mem.(device.Mapped); ok {
		b.devPtr = m.Pointer()
	}
	return b
}

// Len returns the number of elements
func (b *DualBuffer[T]) Len() int { return b.length }

// Bytes returns the size of one copy in bytes
func (b *DualBuffer[T]) Bytes() int64 { return int64(b.length) * int64(SizeOf[T]()) }

func (b *DualBuffer[T]) Mode() Mode { return b.mode }

// HasDevice reports whether a device allocation exists
func (b *DualBuffer[T]) HasDevice() bool { return b.dev != nil }

// Mapped reports whether Go code can address the device allocation
func (b *DualBuffer[T]) Mapped() bool { return b.devPtr != nil || (b.dev != nil && b.length == 0) }

// Device returns the device allocation, nil when there is none
func (b *DualBuffer[T]) Device() device.Memory { return b.dev }

// Host returns the host copy. The slice aliases the buffer.
func (b *DualBuffer[T]) Host() []T { return b.host }

// Select returns the view for the given execution context. Views share the
// buffer's allocations; a device view of an unmapped or missing device
// allocation is invalid.
func (b *DualBuffer[T]) Select(ctx backend.Arch) View[T] {
	switch ctx {
	case backend.Device:
		return b.DeviceView()
	default:
		return b.HostView()
	}
}

func (b *DualBuffer[T]) HostView() View[T] {
	v := View[T]{length: b.length, checked: b.mode == Checked, valid: true}
	if b.length > 0 {
		v.ptr = unsafe.Pointer(&b.host[0])
	}
	return v
}

func (b *DualBuffer[T]) DeviceView() View[T] {
	return View[T]{
		ptr:     b.devPtr,
		length:  b.length,
		checked: b.mode == Checked,
		valid:   b.Mapped(),
	}
}

// PushToDevice overwrites the device copy with the host copy
func (b *DualBuffer[T]) PushToDevice() {
	if b.dev == nil || b.length == 0 {
		return
	}
	b.dev.CopyFrom(unsafe.Pointer(&b.host[0]), b.Bytes())
}

// PullToHost overwrites the host copy with the device copy
func (b *DualBuffer[T]) PullToHost() {
	if b.dev == nil || b.length == 0 {
		return
	}
	b.dev.CopyTo(unsafe.Pointer(&b.host[0]), b.Bytes())
}

// Release frees both allocations. Views taken from the buffer must not be
// used afterwards.
func (b *DualBuffer[T]) Release() {
	if b.released {
		return
	}
	b.released = true
	if b.dev != nil {
		b.dev.Free()
		b.dev = nil
		b.devPtr = nil
	}
	b.host = nil
}

func (b *DualBuffer[T]) String() string {
	var hostPtr unsafe.Pointer
	if len(b.host) > 0 {
		hostPtr = unsafe.Pointer(&b.host[0])
	}
	devDesc := "none"
	if b.dev != nil {
		devDesc = fmt.Sprintf("%s %p", b.rt.Mode(), b.devPtr)
		if b.devPtr == nil {
			devDesc = b.rt.Mode() + " unmapped"
		}
	}
	return fmt.Sprintf("DualBuffer[%s]{len=%d bytes=%d mode=%s host=%p device=%s}",
		DataTypeOf[T](), b.length, b.Bytes(), b.mode, hostPtr, devDesc)
}

// View is one side of a DualBuffer as seen by executing code. In Fast mode
// Get and Set perform no bounds check and an out-of-range index is undefined
// behavior.
type View[T Scalar] struct {
	ptr     unsafe.Pointer
	length  int
	checked bool
	valid   bool
}

func (v View[T]) Len() int { return v.length }

// Valid reports whether Go code may access the view
func (v View[T]) Valid() bool { return v.valid }

func (v View[T]) Get(i int) T {
	if v.checked {
		v.check(i)
	}
	var zero T
	return *(*T)(unsafe.Add(v.ptr, uintptr(i)*unsafe.Sizeof(zero)))
}

func (v View[T]) Set(i int, val T) {
	if v.checked {
		v.check(i)
	}
	var zero T
	*(*T)(unsafe.Add(v.ptr, uintptr(i)*unsafe.Sizeof(zero))) = val
}

func (v View[T]) check(i int) {
	if !v.valid {
		panic("access through an invalid view")
	}
	if i < 0 || i >= v.length {
		panic(fmt.Sprintf("index %d out of range [0,%d)", i, v.length))
	}
}
