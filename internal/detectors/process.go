// Package detectors implements the five detection modules on top of the probe
// interfaces in api/schemas.
package detectors

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/baseline"
	"github.com/xkilldash9x/vigil/internal/classifier"
)

// ProcessModule lists the running processes and reports the ones the
// classifier flags.
type ProcessModule struct {
	logger     *zap.Logger
	source     schemas.ProcessSource
	probes     map[schemas.CapabilityKind]schemas.CapabilityProbe
	heuristics *classifier.Heuristics
	classifier *classifier.Classifier
	baseline   *baseline.Store
}

// NewProcessModule wires a ProcessModule. A missing capability probe means the
// capability is never reported. baseline may be nil when baseline collection
// is disabled.
func NewProcessModule(
	logger *zap.Logger,
	source schemas.ProcessSource,
	probes []schemas.CapabilityProbe,
	heuristics *classifier.Heuristics,
	cls *classifier.Classifier,
	store *baseline.Store,
) (*ProcessModule, error) {
	if logger == nil || source == nil || heuristics == nil || cls == nil {
		return nil, fmt.Errorf("cannot initialize process module with nil dependencies")
	}
	byKind := make(map[schemas.CapabilityKind]schemas.CapabilityProbe, len(probes))
	for _, p := range probes {
		if p != nil {
			byKind[p.Kind()] = p
		}
	}
	return &ProcessModule{
		logger:     logger.With(zap.String("component", "process_module")),
		source:     source,
		probes:     byKind,
		heuristics: heuristics,
		classifier: cls,
		baseline:   store,
	}, nil
}

// Run returns the flagged processes ordered by descending risk, then PID.
func (m *ProcessModule) Run(ctx context.Context) ([]schemas.ProcessSuspicion, error) {
	processes, err := m.source.ListProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	flagged := make([]schemas.ProcessSuspicion, 0)
	for _, p := range processes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if suspicion, ok := m.classifier.Classify(p, m.signals(ctx, p)); ok {
			flagged = append(flagged, suspicion)
		}
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		if flagged[i].RiskScore != flagged[j].RiskScore {
			return flagged[i].RiskScore > flagged[j].RiskScore
		}
		return flagged[i].PID < flagged[j].PID
	})

	m.logger.Debug("Process scan complete",
		zap.Int("observed", len(processes)),
		zap.Int("flagged", len(flagged)),
	)
	return flagged, nil
}

func (m *ProcessModule) signals(ctx context.Context, p schemas.ProcessObservation) classifier.Signals {
	s := classifier.Signals{
		HasScreenCapture:       m.has(ctx, schemas.CapabilityScreenCapture, p),
		HasAudioCapture:        m.has(ctx, schemas.CapabilityAudioCapture, p),
		HasAccessibilityAccess: m.has(ctx, schemas.CapabilityAccessibility, p),
		HasSuspiciousName:      m.heuristics.IsSuspiciousName(p.Name),
		IsWhitelisted:          m.heuristics.IsWhitelisted(p),
		IsCommonLegit:          m.heuristics.IsCommonLegit(p.Name),
		IsCoreOSPath:           m.heuristics.IsCoreOSPath(p.Path),
	}
	if m.baseline != nil {
		s.StartedDuringSession = m.baseline.StartedDuringSession(p.PID)
		if m.heuristics.TrustsBaseline() && m.baseline.WasPresent(p.PID) {
			s.IsWhitelisted = true
		}
	}
	return s
}

func (m *ProcessModule) has(ctx context.Context, kind schemas.CapabilityKind, p schemas.ProcessObservation) bool {
	probe, ok := m.probes[kind]
	return ok && probe.HasCapability(ctx, p)
}
