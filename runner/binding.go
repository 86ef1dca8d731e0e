package runner

import (
	"fmt"

	"github.com/notargets/StencilKernel/stencil"
)

// ActionFlags represents the memory operations to perform for a field around
// each run of a device stage
type ActionFlags int

const (
	// No action
	NoAction ActionFlags = 0
	// Copy from host to device before the run
	CopyTo ActionFlags = 1 << iota
	// Copy from device to host after the run
	CopyBack
	// Bidirectional copy (CopyTo | CopyBack)
	Copy = CopyTo | CopyBack
)

// HasAction checks if a specific action is set
func (a ActionFlags) HasAction(action ActionFlags) bool {
	return a&action != 0
}

func (a ActionFlags) String() string {
	switch a {
	case NoAction:
		return "none"
	case CopyTo:
		return "copyto"
	case CopyBack:
		return "copyback"
	case Copy:
		return "copy"
	default:
		return fmt.Sprintf("ActionFlags(%d)", int(a))
	}
}

type stageOptions struct {
	copies map[stencil.Arg]ActionFlags
}

// StageOption configures a stage
type StageOption func(*stageOptions)

// WithCopy schedules explicit transfers of the field bound to arg around every
// Run of a device stage. Flags for the same arg accumulate.
func WithCopy(arg stencil.Arg, flags ActionFlags) StageOption {
	return func(o *stageOptions) {
		o.copies[arg] |= flags
	}
}
