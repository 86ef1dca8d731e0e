package backend

import "fmt"

// StrategyKind names a kernel execution strategy
type StrategyKind uint8

const (
	// Naive visits every point sequentially on the host
	Naive StrategyKind = iota
	// Partitioned splits the horizontal domain into execution units that run
	// concurrently against device memory
	Partitioned
)

func (s StrategyKind) String() string {
	switch s {
	case Naive:
		return "naive"
	case Partitioned:
		return "partitioned"
	default:
		return fmt.Sprintf("StrategyKind(%d)", uint8(s))
	}
}

// Traits is the compile-time-like description of a backend
type Traits struct {
	Arch     Arch
	Layout   LayoutMap
	Strategy StrategyKind
}

var traitsTable = map[Arch]Traits{
	Host:   {Arch: Host, Layout: HostLayout, Strategy: Naive},
	Device: {Arch: Device, Layout: DeviceLayout, Strategy: Partitioned},
}

// TraitsOf resolves the traits bound to an arch
func TraitsOf(arch Arch) (Traits, error) {
	t, ok := traitsTable[arch]
	if !ok {
		return Traits{}, fmt.Errorf("no backend traits for %v", arch)
	}
	return t, nil
}
