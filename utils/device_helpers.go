package utils

import (
	"github.com/notargets/StencilKernel/device"
	"go.uber.org/zap"
)

// CreateTestDevice creates a Runtime for testing, preferring parallel backends
// and falling back to the emulated device when OCCA is not compiled in
func CreateTestDevice() device.Runtime {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}
	rt, native := device.Create(backends...)
	Logger().Debug("created device",
		zap.String("mode", rt.Mode()), zap.Bool("native", native))
	return rt
}

