package runner

import (
	"fmt"
	"os"
	"runtime"

	"github.com/notargets/StencilKernel/backend"
	"github.com/notargets/StencilKernel/partitions"
	"github.com/notargets/StencilKernel/storage"
	"gopkg.in/yaml.v3"
)

// Config describes a grid and how stages built on it execute
type Config struct {
	Arch backend.Arch `yaml:"arch"`
	Mode storage.Mode `yaml:"mode"`

	NI int `yaml:"ni"`
	NJ int `yaml:"nj"`
	NK int `yaml:"nk"`

	HaloI int `yaml:"halo_i"`
	HaloJ int `yaml:"halo_j"`

	// Units is the number of concurrent execution units on the device, zero
	// means GOMAXPROCS
	Units     int                          `yaml:"units"`
	Partition partitions.PartitionStrategy `yaml:"partition"`
}

// DefaultConfig returns a small checked host configuration
func DefaultConfig() Config {
	return Config{
		Arch:      backend.Host,
		Mode:      storage.Checked,
		NI:        8,
		NJ:        8,
		NK:        4,
		HaloI:     1,
		HaloJ:     1,
		Partition: partitions.BlockPartition,
	}
}

// LoadConfig reads a yaml file over the defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.NI <= 0 || c.NJ <= 0 || c.NK <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%dx%d", c.NI, c.NJ, c.NK)
	}
	if c.HaloI < 0 || c.HaloJ < 0 {
		return fmt.Errorf("halos must be non-negative, got %d,%d", c.HaloI, c.HaloJ)
	}
	if 2*c.HaloI > c.NI || 2*c.HaloJ > c.NJ {
		return fmt.Errorf("halos %d,%d leave no interior in %dx%d", c.HaloI, c.HaloJ, c.NI, c.NJ)
	}
	if c.Units < 0 {
		return fmt.Errorf("negative unit count %d", c.Units)
	}
	return nil
}

// NumUnits resolves the execution unit count
func (c Config) NumUnits() int {
	if c.Units > 0 {
		return c.Units
	}
	return runtime.GOMAXPROCS(0)
}
