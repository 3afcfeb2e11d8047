//go:build !linux

package platform

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

// NewProbes builds the fallback probe set. Display inspection reports
// ErrUnsupportedPlatform, which surfaces as a module failure.
func NewProbes(cfg config.Interface, logger *zap.Logger) (*Probes, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize platform probes with nil dependencies")
	}
	logger.Warn("Host probes are limited on this platform.", zap.Error(ErrUnsupportedPlatform))

	processes := NewProcessTable(logger)
	heuristics := cfg.Heuristics()
	capabilities := append(
		[]schemas.CapabilityProbe{NameCapabilityProbe(schemas.CapabilityScreenCapture, heuristics.ScreenCaptureApps)},
		ProcessCapabilityProbes(processes)...,
	)

	return &Probes{
		Processes:    processes,
		Capabilities: capabilities,
		Overlay:      NoOverlayProbe{},
		Audio:        silentAudioProbe{},
		Hardware:     unsupportedHardwareProbe{listeners: TCPListeners, logger: logger},
		VM:           NewFingerprintVMProbe(NewHostFingerprintCollector(nil, logger), heuristics.VM, logger),
	}, nil
}
