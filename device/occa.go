//go:build occa

package device

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// OCCA is a device backed by an OCCA runtime (Serial, OpenMP, CUDA, ...).
// Its memory is not Mapped: Go functors cannot execute against it, kernels
// are compiled from source instead.
type OCCA struct {
	Device *gocca.OCCADevice
}

// NewOCCA creates an OCCA device from a JSON property string such as
// `{"mode": "CUDA", "device_id": 0}`
func NewOCCA(props string) (*OCCA, error) {
	dev, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCCA device %s: %w", props, err)
	}
	return &OCCA{Device: dev}, nil
}

func (o *OCCA) Mode() string { return o.Device.Mode() }

func (o *OCCA) Malloc(bytes int64, src unsafe.Pointer) (Memory, error) {
	mem := o.Device.Malloc(bytes, src, nil)
	if mem == nil {
		return nil, fmt.Errorf("%w: %s could not allocate %d bytes", ErrAllocation, o.Mode(), bytes)
	}
	return &occaMemory{mem: mem, size: bytes}, nil
}

func (o *OCCA) Finish() { o.Device.Finish() }

func (o *OCCA) Free() { o.Device.Free() }

// BuildKernel compiles OKL source
func (o *OCCA) BuildKernel(source, name string) (Kernel, error) {
	var (
		kernel *gocca.OCCAKernel
		err    error
	)
	if o.Device.Mode() == "OpenMP" {
		// OpenMP does not receive -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = o.Device.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = o.Device.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", name)
	}
	return &occaKernel{kernel: kernel}, nil
}

type occaMemory struct {
	mem  *gocca.OCCAMemory
	size int64
}

func (m *occaMemory) CopyFrom(src unsafe.Pointer, bytes int64) { m.mem.CopyFrom(src, bytes) }

func (m *occaMemory) CopyTo(dst unsafe.Pointer, bytes int64) { m.mem.CopyTo(dst, bytes) }

func (m *occaMemory) Size() int64 { return m.size }

func (m *occaMemory) Free() {
	if m.mem != nil {
		m.mem.Free()
		m.mem = nil
	}
}

type occaKernel struct {
	kernel *gocca.OCCAKernel
}

func (k *occaKernel) Run(args ...interface{}) error {
	unwrapped := make([]interface{}, len(args))
	for i, arg := range args {
		if m, ok := arg.(*occaMemory); ok {
			unwrapped[i] = m.mem
		} else {
			unwrapped[i] = arg
		}
	}
	return k.kernel.RunWithArgs(unwrapped...)
}

func (k *occaKernel) Free() { k.kernel.Free() }
