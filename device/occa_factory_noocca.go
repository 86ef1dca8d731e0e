//go:build !occa

package device

import "fmt"

// Has reports whether the named runtime is compiled into this build
func Has(name string) bool {
	return name == ModeEmulated
}

func NewOCCARuntime(props string) (Runtime, error) {
	return nil, fmt.Errorf("occa runtime is not available in this build (props %s)", props)
}
