package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/partitions"
	"github.com/notargets/StencilKernel/stencil"
	"github.com/notargets/StencilKernel/storage"
	"github.com/notargets/StencilKernel/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stencil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
arch: gpu
mode: fast
ni: 16
nj: 12
halo_i: 2
units: 4
partition: round_robin
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, backend.Device, cfg.Arch)
	assert.Equal(t, storage.Fast, cfg.Mode)
	assert.Equal(t, 16, cfg.NI)
	assert.Equal(t, 12, cfg.NJ)
	assert.Equal(t, 4, cfg.NK, "unset keys keep their defaults")
	assert.Equal(t, 2, cfg.HaloI)
	assert.Equal(t, 1, cfg.HaloJ)
	assert.Equal(t, 4, cfg.NumUnits())
	assert.Equal(t, partitions.RoundRobin, cfg.Partition)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "arch: fpga\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "ni: 2\nhalo_i: 2\n"))
	assert.Error(t, err)
}

func TestConfig_NumUnitsDefaultsToProcs(t *testing.T) {
	cfg := DefaultConfig()
	assert.Positive(t, cfg.NumUnits())
	cfg.Units = -1
	assert.Error(t, cfg.Validate())
}

func TestActionFlags(t *testing.T) {
	assert.True(t, Copy.HasAction(CopyTo))
	assert.True(t, Copy.HasAction(CopyBack))
	assert.False(t, CopyTo.HasAction(CopyBack))
	assert.False(t, NoAction.HasAction(CopyTo))
	assert.Equal(t, "copy", (CopyTo | CopyBack).String())

	opts := stageOptions{copies: make(map[stencil.Arg]ActionFlags)}
	arg := stencil.NewArg(0, "x", topology.Cells)
	WithCopy(arg, CopyTo)(&opts)
	WithCopy(arg, CopyBack)(&opts)
	assert.Equal(t, Copy, opts.copies[arg])
}
