package platform

import (
	"context"
	"strings"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// capabilityFunc adapts a predicate to schemas.CapabilityProbe.
type capabilityFunc struct {
	kind  schemas.CapabilityKind
	check func(ctx context.Context, p schemas.ProcessObservation) bool
}

func (c capabilityFunc) Kind() schemas.CapabilityKind { return c.kind }

func (c capabilityFunc) HasCapability(ctx context.Context, p schemas.ProcessObservation) bool {
	return c.check(ctx, p)
}

// NameCapabilityProbe infers a capability from the process name. It is used
// where the operating system keeps no per-process permission record.
func NameCapabilityProbe(kind schemas.CapabilityKind, names []string) schemas.CapabilityProbe {
	lowered := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			lowered = append(lowered, n)
		}
	}
	return capabilityFunc{kind: kind, check: func(_ context.Context, p schemas.ProcessObservation) bool {
		return containsAny(strings.ToLower(p.Name), lowered)
	}}
}

// ProcessCapabilityProbes returns the audio capture and accessibility probes
// backed by the process table.
func ProcessCapabilityProbes(t *ProcessTable) []schemas.CapabilityProbe {
	return []schemas.CapabilityProbe{
		capabilityFunc{kind: schemas.CapabilityAudioCapture, check: func(ctx context.Context, p schemas.ProcessObservation) bool {
			return t.HasOpenAudioDevice(ctx, p.PID)
		}},
		capabilityFunc{kind: schemas.CapabilityAccessibility, check: func(ctx context.Context, p schemas.ProcessObservation) bool {
			return t.MapsAccessibilityBus(ctx, p.PID)
		}},
	}
}
