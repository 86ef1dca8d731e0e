package device

import "strings"

const (
	Serial = "Serial"
	OpenMP = "OpenMP"
	CUDA   = "CUDA"
)

// Available returns a comma-separated list of runtimes usable in this build
func Available() string {
	entries := []string{ModeEmulated}
	for _, name := range []string{Serial, OpenMP, CUDA} {
		if Has(name) {
			entries = append(entries, name)
		}
	}
	return strings.Join(entries, ",")
}

// Create returns the first runtime that can be created from the given OCCA
// property strings, falling back to an Emulated device. The second return
// value is false when the fallback was used.
func Create(props ...string) (Runtime, bool) {
	for _, p := range props {
		rt, err := NewOCCARuntime(p)
		if err == nil {
			return rt, true
		}
	}
	return NewEmulated(), false
}
