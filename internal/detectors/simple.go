package detectors

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// minOverlayDimension filters out tiny layered windows such as tooltips.
const minOverlayDimension = 50

// OverlayModule reports hidden overlay windows large enough to be useful.
type OverlayModule struct {
	probe schemas.OverlayProbe
}

// NewOverlayModule wraps an OverlayProbe.
func NewOverlayModule(probe schemas.OverlayProbe) (*OverlayModule, error) {
	if probe == nil {
		return nil, fmt.Errorf("cannot initialize overlay module with nil probe")
	}
	return &OverlayModule{probe: probe}, nil
}

// Run returns the overlays wider and taller than minOverlayDimension.
func (m *OverlayModule) Run(ctx context.Context) ([]schemas.OverlayWindow, error) {
	windows, err := m.probe.FindHiddenOverlays(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate overlays: %w", err)
	}
	overlays := make([]schemas.OverlayWindow, 0, len(windows))
	for _, w := range windows {
		if w.Width > minOverlayDimension && w.Height > minOverlayDimension {
			overlays = append(overlays, w)
		}
	}
	return overlays, nil
}

// AudioModule reports whether realtime audio capture is happening.
type AudioModule struct {
	probe schemas.AudioProbe
}

// NewAudioModule wraps an AudioProbe.
func NewAudioModule(probe schemas.AudioProbe) (*AudioModule, error) {
	if probe == nil {
		return nil, fmt.Errorf("cannot initialize audio module with nil probe")
	}
	return &AudioModule{probe: probe}, nil
}

func (m *AudioModule) Run(ctx context.Context) (bool, error) {
	detected, err := m.probe.DetectRealtimeAudioProcessing(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to inspect audio subsystem: %w", err)
	}
	return detected, nil
}

// VMModule runs the virtualization probe.
type VMModule struct {
	probe schemas.VMProbe
}

// NewVMModule wraps a VMProbe.
func NewVMModule(probe schemas.VMProbe) (*VMModule, error) {
	if probe == nil {
		return nil, fmt.Errorf("cannot initialize vm module with nil probe")
	}
	return &VMModule{probe: probe}, nil
}

func (m *VMModule) Run(ctx context.Context) (schemas.VMCheckResult, error) {
	result, err := m.probe.Detect(ctx)
	if err != nil {
		return schemas.VMCheckResult{}, fmt.Errorf("failed to fingerprint host: %w", err)
	}
	if result.Reasons == nil {
		result.Reasons = []string{}
	}
	return result, nil
}
