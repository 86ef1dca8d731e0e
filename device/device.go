// Package device abstracts the accelerator a computation runs on. A Runtime
// allocates Memory in its own address space; host code moves data in and out
// with explicit CopyFrom/CopyTo calls only.
package device

import (
	"errors"
	"unsafe"
)

// ErrAllocation is returned when a runtime cannot satisfy an allocation
var ErrAllocation = errors.New("device allocation failed")

// Memory is one allocation in a runtime's address space
type Memory interface {
	// CopyFrom copies bytes from host memory at src into the allocation
	CopyFrom(src unsafe.Pointer, bytes int64)
	// CopyTo copies bytes from the allocation into host memory at dst
	CopyTo(dst unsafe.Pointer, bytes int64)
	Size() int64
	Free()
}

// Mapped is implemented by allocations whose storage Go code can address
// directly. Functors written in Go can only execute against mapped memory.
type Mapped interface {
	Pointer() unsafe.Pointer
}

// Runtime is an execution device
type Runtime interface {
	Mode() string
	// Malloc allocates bytes on the device, initialized from src when src is not nil
	Malloc(bytes int64, src unsafe.Pointer) (Memory, error)
	// Finish blocks until all queued device work completed
	Finish()
	Free()
}

// Kernel is a compiled device kernel
type Kernel interface {
	// Run launches the kernel; Memory arguments are passed as device pointers,
	// everything else by value
	Run(args ...interface{}) error
	Free()
}

// KernelBuilder is implemented by runtimes able to compile kernel source
type KernelBuilder interface {
	BuildKernel(source, name string) (Kernel, error)
}
