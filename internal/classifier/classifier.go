// Package classifier decides whether a single observed process should be
// reported as suspicious.
package classifier

import (
	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/evidence"
)

// Per-signal risk weights. These are domain constants.
const (
	weightScreenCapture  = 0.3
	weightAudioCapture   = 0.3
	weightAccessibility  = 0.2
	weightSuspiciousName = 0.4
	weightNewProcess     = 0.3
)

// Reason strings, in evaluation order.
const (
	ReasonScreenCapture  = "Has screen capture permission"
	ReasonAudioCapture   = "Has audio capture permission"
	ReasonAccessibility  = "Has accessibility API access"
	ReasonSuspiciousName = "Suspicious process name"
	ReasonNewProcess     = "Started during session"
)

// Signals are the derived facts about one process.
type Signals struct {
	HasScreenCapture       bool
	HasAudioCapture        bool
	HasAccessibilityAccess bool
	HasSuspiciousName      bool
	// IsWhitelisted is an explicit allow-list match, or a process known from
	// the baseline when whitelist.trust_baseline is set.
	IsWhitelisted bool
	// IsCommonLegit is a match against the built-in common application list.
	IsCommonLegit        bool
	IsCoreOSPath         bool
	StartedDuringSession bool
}

// CapabilityCount counts the capability signals that are set.
func (s Signals) CapabilityCount() int {
	n := 0
	for _, b := range []bool{s.HasScreenCapture, s.HasAudioCapture, s.HasAccessibilityAccess} {
		if b {
			n++
		}
	}
	return n
}

// Classifier applies the flagging rule. It is stateless and safe for
// concurrent use.
type Classifier struct {
	threshold float64
}

// New creates a classifier that only emits suspicions whose risk reaches
// processThreshold.
func New(processThreshold float64) *Classifier {
	return &Classifier{threshold: processThreshold}
}

// Score computes the clamped additive risk score and its reasons.
func Score(s Signals) evidence.Result {
	return evidence.Accumulate([]evidence.Check{
		{Matched: s.HasScreenCapture, Weight: weightScreenCapture, Reason: ReasonScreenCapture},
		{Matched: s.HasAudioCapture, Weight: weightAudioCapture, Reason: ReasonAudioCapture},
		{Matched: s.HasAccessibilityAccess, Weight: weightAccessibility, Reason: ReasonAccessibility},
		{Matched: s.HasSuspiciousName, Weight: weightSuspiciousName, Reason: ReasonSuspiciousName},
		{Matched: s.StartedDuringSession && !s.IsWhitelisted, Weight: weightNewProcess, Reason: ReasonNewProcess},
	})
}

// Classify returns the suspicion record for p and true when p should be
// reported.
func (c *Classifier) Classify(p schemas.ProcessObservation, s Signals) (schemas.ProcessSuspicion, bool) {
	// Allow-listed processes are exempt unless they also carry a suspicious name.
	if (s.IsWhitelisted || s.IsCommonLegit) && !s.HasSuspiciousName {
		return schemas.ProcessSuspicion{}, false
	}

	result := Score(s)
	caps := s.CapabilityCount()

	flagged := (s.HasSuspiciousName && caps >= 1 && !s.IsCommonLegit) ||
		(!s.HasSuspiciousName && caps >= 3 && !s.IsCommonLegit && !s.IsCoreOSPath) ||
		(s.StartedDuringSession && caps >= 2)

	if !flagged || !result.Matched() || result.Confidence < c.threshold {
		return schemas.ProcessSuspicion{}, false
	}

	return schemas.ProcessSuspicion{
		PID:                  p.PID,
		Name:                 p.Name,
		Path:                 p.Path,
		RiskScore:            result.Confidence,
		Reasons:              result.Reasons,
		StartedDuringSession: s.StartedDuringSession,
		IsWhitelisted:        s.IsWhitelisted,
	}, true
}
