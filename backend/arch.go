// Package backend binds a hardware tag to the way kernels execute on it and
// the way field storage is laid out in memory.
package backend

import (
	"fmt"
	"strings"
)

// Arch is the execution context a stage runs in
type Arch uint8

const (
	Host Arch = iota
	Device
)

func (a Arch) String() string {
	switch a {
	case Host:
		return "host"
	case Device:
		return "device"
	default:
		return fmt.Sprintf("Arch(%d)", uint8(a))
	}
}

func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "host", "cpu":
		return Host, nil
	case "device", "gpu":
		return Device, nil
	}
	return Host, fmt.Errorf("unknown arch %q", s)
}

// UnmarshalText lets config files carry the arch by name
func (a *Arch) UnmarshalText(text []byte) error {
	v, err := ParseArch(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Arch) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
