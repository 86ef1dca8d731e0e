package builder

import (
	"fmt"
	"strings"

	"github.com/notargets/StencilKernel/storage"
)

// ArraySpec is one field passed to a kernel
type ArraySpec struct {
	Name     string
	IsOutput bool
	// Strides of the (i, c, j, k) axes in elements
	Strides [4]int
}

// Builder generates OKL source for stencil kernels executing over
// partitioned horizontal positions
type Builder struct {
	// Partition configuration
	NumPartitions int
	K             []int
	KpartMax      int // Maximum K value across all partitions

	// Type configuration
	FloatType storage.DataType
	IntType   storage.DataType

	// Horizontal extent used to decode a position into (i, j)
	NI, NJ int

	// Arrays in kernel argument order
	AllocatedArrays []ArraySpec

	// Generated code
	KernelPreamble string
}

// Config holds configuration for creating a Builder
type Config struct {
	K         []int
	FloatType storage.DataType
	IntType   storage.DataType
	NI, NJ    int
}

// NewBuilder creates a new Builder instance
func NewBuilder(cfg Config) *Builder {
	if len(cfg.K) == 0 {
		panic("K array cannot be empty")
	}
	if cfg.NI <= 0 || cfg.NJ <= 0 {
		panic(fmt.Sprintf("invalid horizontal extent %dx%d", cfg.NI, cfg.NJ))
	}
	kpartMax := 0
	for _, k := range cfg.K {
		if k > kpartMax {
			kpartMax = k
		}
	}
	floatType := cfg.FloatType
	if floatType == 0 {
		floatType = storage.Float64
	}
	intType := cfg.IntType
	if intType == 0 {
		intType = storage.INT64
	}
	kb := &Builder{
		NumPartitions:   len(cfg.K),
		K:               make([]int, len(cfg.K)),
		KpartMax:        kpartMax,
		FloatType:       floatType,
		IntType:         intType,
		NI:              cfg.NI,
		NJ:              cfg.NJ,
		AllocatedArrays: []ArraySpec{},
	}
	copy(kb.K, cfg.K)
	return kb
}

// AddArray appends a field to the kernel arguments
func (kb *Builder) AddArray(spec ArraySpec) {
	kb.AllocatedArrays = append(kb.AllocatedArrays, spec)
}

// GetTotalElements returns sum of all K values
func (kb *Builder) GetTotalElements() int {
	total := 0
	for _, k := range kb.K {
		total += k
	}
	return total
}

// GeneratePreamble generates the kernel preamble with types, sizes and
// field access macros
func (kb *Builder) GeneratePreamble() string {
	var sb strings.Builder

	sb.WriteString(kb.generateTypeDefinitions())
	sb.WriteString(kb.generateIndexMacros())

	kb.KernelPreamble = sb.String()
	return kb.KernelPreamble
}

func (kb *Builder) generateTypeDefinitions() string {
	var sb strings.Builder

	floatSuffix := ""
	if kb.FloatType == storage.Float32 {
		floatSuffix = "f"
	}
	sb.WriteString(fmt.Sprintf("typedef %s field_t;\n", kb.FloatType.CType()))
	sb.WriteString(fmt.Sprintf("typedef %s int_t;\n", kb.IntType.CType()))
	if kb.FloatType.IsReal() {
		sb.WriteString(fmt.Sprintf("#define FIELD_ZERO 0.0%s\n", floatSuffix))
	} else {
		sb.WriteString("#define FIELD_ZERO 0\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("#define NPART %d\n", kb.NumPartitions))
	sb.WriteString(fmt.Sprintf("#define KpartMax %d\n", kb.KpartMax))
	sb.WriteString(fmt.Sprintf("#define NI %d\n", kb.NI))
	sb.WriteString(fmt.Sprintf("#define NJ %d\n", kb.NJ))
	sb.WriteString("\n")

	return sb.String()
}

// generateIndexMacros emits one index macro per array, since fields on
// different locations carry different color counts and strides
func (kb *Builder) generateIndexMacros() string {
	var sb strings.Builder

	sb.WriteString("// Field access macros\n")
	for _, a := range kb.AllocatedArrays {
		sb.WriteString(fmt.Sprintf(
			"#define %s_IDX(i, c, j, k) ((i) * %d + (c) * %d + (j) * %d + (k) * %d)\n",
			a.Name, a.Strides[0], a.Strides[1], a.Strides[2], a.Strides[3]))
	}
	sb.WriteString("#define FIELD(name, i, c, j, k) name##_global[name##_IDX(i, c, j, k)]\n\n")

	return sb.String()
}

// GenerateKernel returns the complete source of a kernel: preamble followed
// by the kernel definition
func (kb *Builder) GenerateKernel(kernelName, body string) string {
	if kb.KernelPreamble == "" {
		kb.GeneratePreamble()
	}
	return kb.KernelPreamble + kb.GenerateKernelTemplate(kernelName, body)
}
