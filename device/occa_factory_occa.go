//go:build occa

package device

// Has reports whether the named runtime is compiled into this build
func Has(name string) bool {
	switch name {
	case Serial, OpenMP, CUDA:
		return true
	default:
		return name == ModeEmulated
	}
}

func NewOCCARuntime(props string) (Runtime, error) {
	return NewOCCA(props)
}
