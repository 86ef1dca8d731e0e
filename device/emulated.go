package device

import (
	"fmt"
	"sync"
	"unsafe"
)

// ModeEmulated is the mode string reported by the emulated runtime
const ModeEmulated = "Emulated"

// Emulated is a device whose address space is a set of Go allocations kept
// apart from the host copies. Its memory is Mapped, so Go functors execute
// against it directly.
type Emulated struct {
	mu        sync.Mutex
	limit     int64 // zero means unlimited
	allocated int64
	live      int
}

// EmulatedOption configures an Emulated runtime
type EmulatedOption func(*Emulated)

// WithMemoryLimit caps the total bytes the runtime may hold at once
func WithMemoryLimit(bytes int64) EmulatedOption {
	return func(e *Emulated) {
		e.limit = bytes
	}
}

// NewEmulated creates an emulated device
func NewEmulated(opts ...EmulatedOption) *Emulated {
	e := &Emulated{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Emulated) Mode() string { return ModeEmulated }

// Malloc allocates 8-byte aligned storage
func (e *Emulated) Malloc(bytes int64, src unsafe.Pointer) (Memory, error) {
	if bytes < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, bytes)
	}

	e.mu.Lock()
	if e.limit > 0 && e.allocated+bytes > e.limit {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrAllocation, bytes, e.allocated, e.limit)
	}
	e.allocated += bytes
	e.live++
	e.mu.Unlock()

	mem := &emulatedMemory{
		rt:    e,
		words: make([]uint64, (bytes+7)/8),
		size:  bytes,
	}
	if src != nil && bytes > 0 {
		mem.CopyFrom(src, bytes)
	}
	return mem, nil
}

// Finish returns immediately; emulated work is synchronous
func (e *Emulated) Finish() {}

func (e *Emulated) Free() {}

// Allocated returns the bytes currently held
func (e *Emulated) Allocated() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocated
}

// Live returns the number of allocations not yet freed
func (e *Emulated) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

func (e *Emulated) release(bytes int64) {
	e.mu.Lock()
	e.allocated -= bytes
	e.live--
	e.mu.Unlock()
}

type emulatedMemory struct {
	rt    *Emulated
	words []uint64
	size  int64
	freed bool
}

func (m *emulatedMemory) Pointer() unsafe.Pointer {
	if len(m.words) == 0 {
		return nil
	}
	return unsafe.Pointer(&m.words[0])
}

func (m *emulatedMemory) bytes(n int64) []byte {
	if n > m.size {
		panic(fmt.Sprintf("device copy of %d bytes exceeds allocation of %d bytes", n, m.size))
	}
	return unsafe.Slice((*byte)(m.Pointer()), n)
}

func (m *emulatedMemory) CopyFrom(src unsafe.Pointer, bytes int64) {
	if bytes == 0 {
		return
	}
	copy(m.bytes(bytes), unsafe.Slice((*byte)(src), bytes))
}

func (m *emulatedMemory) CopyTo(dst unsafe.Pointer, bytes int64) {
	if bytes == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), bytes), m.bytes(bytes))
}

func (m *emulatedMemory) Size() int64 { return m.size }

func (m *emulatedMemory) Free() {
	if m.freed {
		return
	}
	m.freed = true
	m.words = nil
	m.rt.release(m.size)
}
