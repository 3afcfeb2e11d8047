// Package fusion combines the per-module outputs of a cycle into the overall
// risk score and threshold verdict.
package fusion

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/evidence"
)

// Breakdown records how much each module contributed before clamping.
type Breakdown struct {
	Process  float64
	Overlay  float64
	Audio    float64
	Hardware float64
	VM       float64
}

// Total is the unclamped sum of all contributions.
func (b Breakdown) Total() float64 {
	return b.Process + b.Overlay + b.Audio + b.Hardware + b.VM
}

// MarshalLogObject lets a Breakdown be logged with zap.Object.
func (b Breakdown) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("process", b.Process)
	enc.AddFloat64("overlay", b.Overlay)
	enc.AddFloat64("audio", b.Audio)
	enc.AddFloat64("hardware", b.Hardware)
	enc.AddFloat64("vm", b.VM)
	return nil
}

// Verdict is the fused score for one cycle.
type Verdict struct {
	Score            float64
	ExceedsThreshold bool
	Breakdown        Breakdown
}

// Field returns the per-module breakdown as a structured log field.
func (v Verdict) Field() zap.Field {
	return zap.Object("fusion", v.Breakdown)
}

// Fuse scores the module summaries already placed on report. Absent modules
// (nil summaries, empty lists) contribute nothing. The score is clamped to
// [0, 1] and the verdict is score >= riskThreshold.
func Fuse(report *schemas.DetectionReport, w config.WeightsConfig, riskThreshold float64) Verdict {
	var b Breakdown
	if len(report.SuspiciousProcesses) > 0 {
		b.Process = report.MaxProcessRisk() * w.ProcessRisk
	}
	if len(report.HiddenOverlays) > 0 {
		b.Overlay = w.OverlayRisk
	}
	if report.AudioMonitoringDetected {
		b.Audio = w.AudioRisk
	}
	if hw := report.HardwareSuspicion; hw != nil {
		b.Hardware = hw.RiskScore * w.HardwareRisk
	}
	if vm := report.VMDetection; vm != nil && vm.IsVM {
		b.VM = vm.ConfidenceScore * w.VMRisk
	}

	score := evidence.Clamp(b.Total())
	return Verdict{
		Score:            score,
		ExceedsThreshold: score >= riskThreshold,
		Breakdown:        b,
	}
}

// Apply fuses report and writes the score and verdict back onto it.
func Apply(report *schemas.DetectionReport, w config.WeightsConfig, riskThreshold float64) Verdict {
	v := Fuse(report, w, riskThreshold)
	report.OverallRiskScore = v.Score
	report.ExceedsThreshold = v.ExceedsThreshold
	return v
}
