package detectors

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/baseline"
	"github.com/xkilldash9x/vigil/internal/evidence"
)

const (
	weightHDMISplitter      = 0.7
	weightVirtualDisplay    = 0.5
	weightTwoDisplays       = 0.05
	weightManyDisplays      = 0.15
	weightDisplayCountDrift = 0.4
	weightNewDisplay        = 0.3
	weightUSBDisplay        = 0.2
	weightWirelessDisplay   = 0.25
	weightRemoteDesktop     = 0.8
)

// HardwareModule scores the display and remote access situation against the
// session baseline.
type HardwareModule struct {
	logger   *zap.Logger
	probe    schemas.HardwareProbe
	baseline *baseline.Store
}

// NewHardwareModule wires a HardwareModule. store may be nil when baseline
// collection is disabled.
func NewHardwareModule(logger *zap.Logger, probe schemas.HardwareProbe, store *baseline.Store) (*HardwareModule, error) {
	if logger == nil || probe == nil {
		return nil, fmt.Errorf("cannot initialize hardware module with nil dependencies")
	}
	return &HardwareModule{
		logger:   logger.With(zap.String("component", "hardware_module")),
		probe:    probe,
		baseline: store,
	}, nil
}

// Run builds the hardware suspicion report. The risk score is left raw; it
// never gates on a threshold here.
func (m *HardwareModule) Run(ctx context.Context) (schemas.HardwareSuspicionReport, error) {
	current, err := m.probe.CurrentDisplayConfiguration(ctx)
	if err != nil {
		return schemas.HardwareSuspicionReport{}, fmt.Errorf("unable to detect display configuration: %w", err)
	}
	remote := m.probe.RemoteDesktopActive(ctx)

	var acc evidence.Accumulator
	acc.Add(current.HasHDMISplitterSignature, weightHDMISplitter, "HDMI splitter signature detected")
	acc.Add(current.HasVirtualDisplay, weightVirtualDisplay, "Virtual display detected")

	if current.DisplayCount > 1 {
		weight := weightManyDisplays
		if current.DisplayCount == 2 {
			weight = weightTwoDisplays
		}
		acc.Add(true, weight, fmt.Sprintf("Multiple displays detected: %d displays", current.DisplayCount))
	}

	if m.baseline != nil {
		if baselineCount, changed, ok := m.baseline.DisplayDrift(current.DisplayCount); ok && changed {
			acc.Add(true, weightDisplayCountDrift, fmt.Sprintf(
				"Display configuration changed during session (baseline: %d, current: %d)",
				baselineCount, current.DisplayCount,
			))
		}
		for _, d := range m.baseline.NewDisplays(current.Displays) {
			acc.Add(true, weightNewDisplay, "New display connected during session: "+displayLabel(d))
		}
	}

	for _, d := range current.Displays {
		acc.Add(d.ConnectionType == schemas.ConnectionUSB, weightUSBDisplay, "USB display detected: "+displayLabel(d))
		acc.Add(d.ConnectionType == schemas.ConnectionWireless, weightWirelessDisplay, "Wireless display detected: "+displayLabel(d))
	}

	acc.Add(remote, weightRemoteDesktop, "Remote desktop connection detected")

	result := acc.Result()
	m.logger.Debug("Hardware evaluation complete",
		zap.Int("displays", current.DisplayCount),
		zap.Float64("risk", result.Confidence),
	)
	return schemas.HardwareSuspicionReport{
		RiskScore:           result.Confidence,
		DisplayCount:        current.DisplayCount,
		HasVirtualDisplay:   current.HasVirtualDisplay,
		HasHDMISplitter:     current.HasHDMISplitterSignature,
		RemoteDesktopActive: remote,
		Flags:               result.Reasons,
	}, nil
}

func displayLabel(d schemas.DisplayInfo) string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
