package schemas

import (
	"context"
)

// -- Probe Interfaces --
//
// Probes are the opaque evidence sources behind each detection module. One
// concrete set is selected at startup for the host platform; the core never
// branches on the operating system itself.

// ProcessSource enumerates the processes running right now. It is called fresh
// every cycle and must honour ctx; a call that outlives the module timeout is
// treated as a fault.
type ProcessSource interface {
	ListProcesses(ctx context.Context) ([]ProcessObservation, error)
}

// CapabilityKind names one of the capabilities a process can hold.
type CapabilityKind string

// Constants for the capability probes queried for every observed process.
const (
	CapabilityScreenCapture CapabilityKind = "screen_capture"
	CapabilityAudioCapture  CapabilityKind = "audio_capture"
	CapabilityAccessibility CapabilityKind = "accessibility"
)

// CapabilityProbe reports whether a process holds a single capability kind.
type CapabilityProbe interface {
	Kind() CapabilityKind
	HasCapability(ctx context.Context, process ProcessObservation) bool
}

// OverlayProbe finds windows that look like hidden overlays. An empty slice is
// a valid "none found" result.
type OverlayProbe interface {
	FindHiddenOverlays(ctx context.Context) ([]OverlayWindow, error)
}

// AudioProbe reports whether realtime audio processing is happening.
type AudioProbe interface {
	DetectRealtimeAudioProcessing(ctx context.Context) (bool, error)
}

// HardwareProbe inspects the display and remote access situation.
type HardwareProbe interface {
	CurrentDisplayConfiguration(ctx context.Context) (DisplayConfiguration, error)
	RemoteDesktopActive(ctx context.Context) bool
}

// VMProbe fingerprints the host for virtualization. It owns its own evidence
// accumulation and returns a finished verdict.
type VMProbe interface {
	Detect(ctx context.Context) (VMCheckResult, error)
}

// -- Sink Interface --

// ReportSink accepts a finished report for persistence or transmission. The
// field set of DetectionReport must be preserved by every implementation.
type ReportSink interface {
	Emit(ctx context.Context, report *DetectionReport) error
	Close() error
}
