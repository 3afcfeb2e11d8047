//go:build linux

package platform

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

// NewProbes builds the Linux probe set.
func NewProbes(cfg config.Interface, logger *zap.Logger) (*Probes, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize platform probes with nil dependencies")
	}

	processes := NewProcessTable(logger)
	sysfs := NewSysFS("/sys")
	heuristics := cfg.Heuristics()

	capabilities := append(
		[]schemas.CapabilityProbe{NameCapabilityProbe(schemas.CapabilityScreenCapture, heuristics.ScreenCaptureApps)},
		ProcessCapabilityProbes(processes)...,
	)

	return &Probes{
		Processes:    processes,
		Capabilities: capabilities,
		Overlay:      NoOverlayProbe{},
		Audio:        NewSoundServerAudioProbe(ExecRunner, logger),
		Hardware:     NewXrandrHardwareProbe(ExecRunner, TCPListeners, logger),
		VM:           NewFingerprintVMProbe(NewHostFingerprintCollector(sysfs.ProductName, logger), heuristics.VM, logger),
	}, nil
}
