package builder

import (
	"fmt"
	"strings"
)

// GenerateKernelSignature generates the parameter list for kernel functions.
// The order is the order the runner passes arguments in.
func (kb *Builder) GenerateKernelSignature() string {
	params := []string{
		"const int_t level",
		"const int_t color",
		"const int_t* unit_offsets",
		"const int_t* positions",
	}

	for _, a := range kb.AllocatedArrays {
		constQualifier := "const "
		if a.IsOutput {
			constQualifier = ""
		}
		params = append(params, fmt.Sprintf("%sfield_t* %s_global", constQualifier, a.Name))
	}

	return strings.Join(params, ",\n\t")
}

// GenerateKernelDeclaration generates a complete kernel function declaration
func (kb *Builder) GenerateKernelDeclaration(kernelName string) string {
	return fmt.Sprintf("@kernel void %s(\n\t%s\n)",
		kernelName,
		kb.GenerateKernelSignature())
}

// GenerateKernelTemplate wraps a per-point body in the partition loops. The
// body sees i, c, j and k of the evaluated point.
func (kb *Builder) GenerateKernelTemplate(kernelName string, body string) string {
	var sb strings.Builder

	sb.WriteString(kb.GenerateKernelDeclaration(kernelName))
	sb.WriteString(" {\n")
	sb.WriteString("\tfor (int part = 0; part < NPART; ++part; @outer) {\n")
	sb.WriteString("\t\tfor (int n = 0; n < KpartMax; ++n; @inner) {\n")
	sb.WriteString("\t\t\tconst int_t first = unit_offsets[part];\n")
	sb.WriteString("\t\t\tif (n < unit_offsets[part + 1] - first) {\n")
	sb.WriteString("\t\t\t\tconst int_t pos = positions[first + n];\n")
	sb.WriteString("\t\t\t\tconst int_t i = pos % NI;\n")
	sb.WriteString("\t\t\t\tconst int_t j = pos / NI;\n")
	sb.WriteString("\t\t\t\tconst int_t c = color;\n")
	sb.WriteString("\t\t\t\tconst int_t k = level;\n")

	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) != "" {
			sb.WriteString("\t\t\t\t")
			sb.WriteString(strings.TrimSpace(line))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\t\t\t}\n")
	sb.WriteString("\t\t}\n")
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")

	return sb.String()
}

// KernelParameter describes one kernel argument
type KernelParameter struct {
	Type     string
	Name     string
	IsConst  bool
	Category string // "system", "array_data"
}

// GetKernelSignatureInfo returns structured information about kernel parameters
func (kb *Builder) GetKernelSignatureInfo() []KernelParameter {
	params := []KernelParameter{
		{Type: "int_t", Name: "level", IsConst: true, Category: "system"},
		{Type: "int_t", Name: "color", IsConst: true, Category: "system"},
		{Type: "int_t*", Name: "unit_offsets", IsConst: true, Category: "system"},
		{Type: "int_t*", Name: "positions", IsConst: true, Category: "system"},
	}
	for _, a := range kb.AllocatedArrays {
		params = append(params, KernelParameter{
			Type:     "field_t*",
			Name:     a.Name + "_global",
			IsConst:  !a.IsOutput,
			Category: "array_data",
		})
	}
	return params
}
