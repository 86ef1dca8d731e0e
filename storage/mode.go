package storage

import (
	"fmt"
	"strings"
)

// Mode selects whether field accesses are bounds and contract checked
type Mode uint8

const (
	// Checked panics on out-of-range access and on writes through read-only
	// accessors
	Checked Mode = iota
	// Fast skips every check; violations are undefined behavior
	Fast
)

func (m Mode) String() string {
	switch m {
	case Checked:
		return "checked"
	case Fast:
		return "fast"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "checked":
		return Checked, nil
	case "fast":
		return Fast, nil
	}
	return Checked, fmt.Errorf("unknown mode %q", s)
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
