// Package platform provides the host probes behind the detection modules. One
// probe set is chosen at build time for the target operating system.
package platform

import (
	"context"
	"errors"
	"runtime"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// ErrUnsupportedPlatform is returned by probes that have no implementation
// for the running operating system.
var ErrUnsupportedPlatform = errors.New("unsupported platform: " + runtime.GOOS)

// Probes is the full probe set for one host.
type Probes struct {
	Processes    schemas.ProcessSource
	Capabilities []schemas.CapabilityProbe
	Overlay      schemas.OverlayProbe
	Audio        schemas.AudioProbe
	Hardware     schemas.HardwareProbe
	VM           schemas.VMProbe
}

// NoOverlayProbe reports no overlays. Only the Windows compositor exposes the
// layered window attributes the overlay check needs.
type NoOverlayProbe struct{}

func (NoOverlayProbe) FindHiddenOverlays(context.Context) ([]schemas.OverlayWindow, error) {
	return []schemas.OverlayWindow{}, nil
}

type silentAudioProbe struct{}

func (silentAudioProbe) DetectRealtimeAudioProcessing(context.Context) (bool, error) {
	return false, nil
}

// unsupportedHardwareProbe has no display source but still reads the TCP
// socket table for VNC listeners.
type unsupportedHardwareProbe struct {
	listeners ListenerSource
	logger    *zap.Logger
}

func (unsupportedHardwareProbe) CurrentDisplayConfiguration(context.Context) (schemas.DisplayConfiguration, error) {
	return schemas.DisplayConfiguration{}, ErrUnsupportedPlatform
}

func (u unsupportedHardwareProbe) RemoteDesktopActive(ctx context.Context) bool {
	if u.listeners == nil {
		return false
	}
	logger := u.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return remoteDesktopListening(ctx, u.listeners, logger)
}
