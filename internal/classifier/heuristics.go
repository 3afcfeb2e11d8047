package classifier

import (
	"strings"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

// Heuristics holds the naming and allow-list data the classifier matches
// against. All entries are stored lower-cased and matching is case-insensitive.
type Heuristics struct {
	suspiciousNames      []string
	commonLegitApps      []string
	coreOSPaths          []string
	whitelistProcesses   []string
	whitelistDirectories []string
	trustBaseline        bool
}

// NewHeuristics builds the matcher from configuration.
func NewHeuristics(h config.HeuristicsConfig, w config.WhitelistConfig) *Heuristics {
	return &Heuristics{
		suspiciousNames:      lowerAll(h.SuspiciousNames),
		commonLegitApps:      lowerAll(h.CommonLegitApps),
		coreOSPaths:          lowerAll(h.CoreOSPaths),
		whitelistProcesses:   lowerAll(w.Processes),
		whitelistDirectories: lowerAll(w.Directories),
		trustBaseline:        w.TrustBaseline,
	}
}

// IsSuspiciousName reports whether the process name contains a known
// assistant-tool pattern.
func (h *Heuristics) IsSuspiciousName(name string) bool {
	return containsAny(strings.ToLower(name), h.suspiciousNames)
}

// IsCommonLegit reports whether the name matches the built-in list of common
// applications.
func (h *Heuristics) IsCommonLegit(name string) bool {
	return containsAny(strings.ToLower(name), h.commonLegitApps)
}

// IsCoreOSPath reports whether the executable lives under an operating system
// system directory.
func (h *Heuristics) IsCoreOSPath(path string) bool {
	return hasAnyPrefix(strings.ToLower(path), h.coreOSPaths)
}

// IsWhitelisted matches the explicit allow-list: a name substring or an
// executable path prefix.
func (h *Heuristics) IsWhitelisted(p schemas.ProcessObservation) bool {
	return containsAny(strings.ToLower(p.Name), h.whitelistProcesses) ||
		hasAnyPrefix(strings.ToLower(p.Path), h.whitelistDirectories)
}

// TrustsBaseline reports whether processes present at baseline capture count
// as whitelisted.
func (h *Heuristics) TrustsBaseline() bool { return h.trustBaseline }

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
