package reporting

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

const ruleWidth = 60

// label picks the alarm heading when signal is strictly above threshold.
func label(signal, threshold float64, alarm, summary string) string {
	if signal > threshold {
		return alarm
	}
	return summary
}

// ConsoleSink renders a human-readable report block.
type ConsoleSink struct {
	w          io.Writer
	thresholds config.ThresholdsConfig
	mu         sync.Mutex
}

// NewConsoleSink creates a console sink. Only the hardware threshold is read,
// to choose the hardware heading; it never changes the score.
func NewConsoleSink(w io.Writer, thresholds config.ThresholdsConfig) *ConsoleSink {
	return &ConsoleSink{w: w, thresholds: thresholds}
}

func (s *ConsoleSink) Emit(_ context.Context, report *schemas.DetectionReport) error {
	var b strings.Builder
	s.render(&b, report)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, b.String()); err != nil {
		return fmt.Errorf("failed to write console report: %w", err)
	}
	return nil
}

func (s *ConsoleSink) Close() error { return nil }

func (s *ConsoleSink) render(b *strings.Builder, r *schemas.DetectionReport) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(b, "\n%s\nDETECTION REPORT #%d\n%s\n", rule, r.ScanNumber, rule)
	fmt.Fprintf(b, "Session:   %s\n", r.SessionID)
	fmt.Fprintf(b, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(b, "Overall Risk Score: %.2f/1.0\n\n", r.OverallRiskScore)

	if len(r.SuspiciousProcesses) > 0 {
		b.WriteString("SUSPICIOUS PROCESSES:\n")
		for _, p := range r.SuspiciousProcesses {
			fmt.Fprintf(b, "  - %s (PID: %d)\n", p.Name, p.PID)
			fmt.Fprintf(b, "    Path: %s\n", p.Path)
			fmt.Fprintf(b, "    Risk Score: %.2f\n", p.RiskScore)
			b.WriteString("    Reasons:\n")
			for _, reason := range p.Reasons {
				fmt.Fprintf(b, "      * %s\n", reason)
			}
			b.WriteString("\n")
		}
	}

	if len(r.HiddenOverlays) > 0 {
		b.WriteString("HIDDEN OVERLAYS DETECTED:\n")
		for _, o := range r.HiddenOverlays {
			fmt.Fprintf(b, "  - Window Handle: %d\n", o.Handle)
			fmt.Fprintf(b, "    Owner PID: %d\n", o.OwnerPID)
			fmt.Fprintf(b, "    Position: (%d, %d)\n", o.X, o.Y)
			fmt.Fprintf(b, "    Size: %dx%d\n\n", o.Width, o.Height)
		}
	}

	if r.AudioMonitoringDetected {
		b.WriteString("AUDIO MONITORING DETECTED\n\n")
	}

	if hw := r.HardwareSuspicion; hw != nil {
		b.WriteString(label(hw.RiskScore, s.thresholds.HardwareThreshold, "HARDWARE-BASED CHEATING DETECTED:", "HARDWARE SUMMARY:") + "\n")
		fmt.Fprintf(b, "  Risk Score: %.2f\n", hw.RiskScore)
		fmt.Fprintf(b, "  Display Count: %d\n", hw.DisplayCount)
		if len(hw.Flags) > 0 {
			b.WriteString("  Flags:\n")
			for _, f := range hw.Flags {
				fmt.Fprintf(b, "    * %s\n", f)
			}
		}
		b.WriteString("\n")
	}

	if vm := r.VMDetection; vm != nil {
		verdict := "NOT DETECTED"
		if vm.IsVM {
			verdict = "DETECTED"
		}
		fmt.Fprintf(b, "VIRTUAL MACHINE: %s (confidence %.2f)\n", verdict, vm.ConfidenceScore)
		for _, reason := range vm.Reasons {
			fmt.Fprintf(b, "    * %s\n", reason)
		}
		b.WriteString("\n")
	}

	if len(r.ModuleFailures) > 0 {
		b.WriteString("MODULE FAILURES:\n")
		for _, f := range r.ModuleFailures {
			fmt.Fprintf(b, "  ! %s\n", f)
		}
		b.WriteString("\n")
	}

	verdict := "BELOW THRESHOLD"
	if r.ExceedsThreshold {
		verdict = "EXCEEDS THRESHOLD"
	}
	fmt.Fprintf(b, "Verdict: %s\n%s\n", verdict, rule)
}
