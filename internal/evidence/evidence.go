// Package evidence turns independent weighted heuristic matches into a single
// bounded confidence value with an ordered list of reasons.
//
// Every detector that scores discrete signals (process naming, display drift,
// virtualization fingerprints) goes through this package so that clamping and
// reason ordering behave identically everywhere.
package evidence

// Check is one heuristic evaluation. Weight is a domain constant, not a
// user setting.
type Check struct {
	Matched bool
	Weight  float64
	Reason  string
}

// Result is the outcome of accumulating a sequence of checks.
type Result struct {
	// Confidence is always within [0, 1].
	Confidence float64
	// Reasons holds one entry per matched check, in evaluation order.
	Reasons []string
}

// Exceeds reports whether the confidence is strictly above cutoff.
func (r Result) Exceeds(cutoff float64) bool {
	return r.Confidence > cutoff
}

// Matched reports whether any check contributed a reason.
func (r Result) Matched() bool {
	return len(r.Reasons) > 0
}

// Accumulate evaluates checks in order. Sums above 1.0 are expected and are
// clamped rather than treated as errors.
func Accumulate(checks []Check) Result {
	var acc Accumulator
	for _, c := range checks {
		acc.Add(c.Matched, c.Weight, c.Reason)
	}
	return acc.Result()
}

// Accumulator builds a Result incrementally, for detectors that discover their
// checks while iterating (one check per display, per network adapter, ...).
// The zero value is ready to use.
type Accumulator struct {
	sum     float64
	reasons []string
}

// Add records a check. Unmatched checks are ignored.
func (a *Accumulator) Add(matched bool, weight float64, reason string) {
	if !matched {
		return
	}
	a.sum += weight
	a.reasons = append(a.reasons, reason)
}

// Result returns the clamped confidence and a copy of the reasons so far.
func (a *Accumulator) Result() Result {
	reasons := make([]string, len(a.reasons))
	copy(reasons, a.reasons)
	return Result{Confidence: Clamp(a.sum), Reasons: reasons}
}

// Clamp bounds v to the unit interval. NaN collapses to 0.
func Clamp(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
