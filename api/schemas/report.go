package schemas

import (
	"time"
)

// -- Observation Schemas --

// ProcessObservation is a live snapshot of one running process. It is produced
// fresh each cycle by a ProcessSource and is not owned by any module.
type ProcessObservation struct {
	PID  uint32 `json:"pid"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// ConnectionType classifies how a display is attached to the workstation.
type ConnectionType string

// Constants for the display connection types a HardwareProbe can report.
const (
	ConnectionHDMI        ConnectionType = "hdmi"
	ConnectionDisplayPort ConnectionType = "displayport"
	ConnectionUSB         ConnectionType = "usb"
	ConnectionVirtual     ConnectionType = "virtual"
	ConnectionWireless    ConnectionType = "wireless"
	ConnectionUnknown     ConnectionType = "unknown"
)

// DisplayInfo describes a single active display.
type DisplayInfo struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Width          uint32         `json:"width"`
	Height         uint32         `json:"height"`
	IsPrimary      bool           `json:"is_primary"`
	ConnectionType ConnectionType `json:"connection_type"`
}

// DisplayConfiguration is the full display picture returned by a HardwareProbe.
type DisplayConfiguration struct {
	DisplayCount             int           `json:"display_count"`
	Displays                 []DisplayInfo `json:"displays"`
	HasVirtualDisplay        bool          `json:"has_virtual_display"`
	HasHDMISplitterSignature bool          `json:"has_hdmi_splitter_signature"`
}

// DisplayIDs returns the IDs of every display in the configuration, in order.
func (d DisplayConfiguration) DisplayIDs() []string {
	ids := make([]string, 0, len(d.Displays))
	for _, display := range d.Displays {
		ids = append(ids, display.ID)
	}
	return ids
}

// OverlayWindow is a window record that looks like a hidden or click-through overlay.
type OverlayWindow struct {
	Handle        uint64 `json:"handle"`
	X             int32  `json:"x"`
	Y             int32  `json:"y"`
	Width         uint32 `json:"width"`
	Height        uint32 `json:"height"`
	OwnerPID      uint32 `json:"owner_pid"`
	IsTransparent bool   `json:"is_transparent"`
	IsTopmost     bool   `json:"is_topmost"`
}

// -- Module Result Schemas --

// ProcessSuspicion is one flagged process for a single cycle. It is not
// persisted across cycles.
type ProcessSuspicion struct {
	PID                  uint32   `json:"pid"`
	Name                 string   `json:"name"`
	Path                 string   `json:"path"`
	RiskScore            float64  `json:"risk_score"`
	Reasons              []string `json:"reasons"`
	StartedDuringSession bool     `json:"started_during_session"`
	IsWhitelisted        bool     `json:"is_whitelisted"`
}

// HardwareSuspicionReport summarizes the hardware module's findings.
// RiskScore is reported raw; the flagging decision is left to fusion.
type HardwareSuspicionReport struct {
	RiskScore           float64  `json:"risk_score"`
	DisplayCount        int      `json:"display_count"`
	HasVirtualDisplay   bool     `json:"has_virtual_display"`
	HasHDMISplitter     bool     `json:"has_hdmi_splitter"`
	RemoteDesktopActive bool     `json:"remote_desktop_active"`
	Flags               []string `json:"flags"`
}

// VMCheckResult is the virtualization module's self-contained verdict.
type VMCheckResult struct {
	IsVM            bool     `json:"is_vm"`
	Reasons         []string `json:"reasons"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// -- Report Schemas --

// DetectionReport is the aggregate of one scan cycle. It is built and discarded
// every cycle; only ScanNumber and SessionID carry meaning across cycles.
type DetectionReport struct {
	ReportID  string    `json:"report_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// ScanNumber is monotonic and starts at 1.
	ScanNumber uint64 `json:"scan_number"`

	SuspiciousProcesses     []ProcessSuspicion       `json:"suspicious_processes"`
	HiddenOverlays          []OverlayWindow          `json:"hidden_overlays"`
	AudioMonitoringDetected bool                     `json:"audio_monitoring_detected"`
	HardwareSuspicion       *HardwareSuspicionReport `json:"hardware_suspicion"`
	VMDetection             *VMCheckResult           `json:"vm_detection"`

	OverallRiskScore float64  `json:"overall_risk_score"`
	ExceedsThreshold bool     `json:"exceeds_threshold"`
	ModuleFailures   []string `json:"module_failures"`
}

// MaxProcessRisk returns the highest risk score among the flagged processes, or 0.
func (r *DetectionReport) MaxProcessRisk() float64 {
	maxRisk := 0.0
	for _, p := range r.SuspiciousProcesses {
		if p.RiskScore > maxRisk {
			maxRisk = p.RiskScore
		}
	}
	return maxRisk
}
