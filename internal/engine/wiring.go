package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/baseline"
	"github.com/xkilldash9x/vigil/internal/classifier"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/detectors"
	"github.com/xkilldash9x/vigil/internal/orchestrator"
	"github.com/xkilldash9x/vigil/internal/platform"
)

// NewModules builds the detection modules enabled in the monitoring
// configuration on top of the host probes. Disabled modules are left nil.
func NewModules(cfg config.Interface, logger *zap.Logger, probes *platform.Probes, store *baseline.Store) (orchestrator.Modules, error) {
	var mods orchestrator.Modules
	if cfg == nil || logger == nil || probes == nil {
		return mods, fmt.Errorf("cannot initialize detection modules with nil dependencies")
	}
	mon := cfg.Monitoring()

	if mon.EnableProcessMonitoring {
		heuristics := classifier.NewHeuristics(cfg.Heuristics(), cfg.Whitelist())
		cls := classifier.New(cfg.Thresholds().ProcessThreshold)
		m, err := detectors.NewProcessModule(logger, probes.Processes, probes.Capabilities, heuristics, cls, store)
		if err != nil {
			return mods, fmt.Errorf("failed to create process module: %w", err)
		}
		mods.Process = m
	}
	if mon.EnableOverlayMonitoring {
		m, err := detectors.NewOverlayModule(probes.Overlay)
		if err != nil {
			return mods, fmt.Errorf("failed to create overlay module: %w", err)
		}
		mods.Overlay = m
	}
	if mon.EnableAudioMonitoring {
		m, err := detectors.NewAudioModule(probes.Audio)
		if err != nil {
			return mods, fmt.Errorf("failed to create audio module: %w", err)
		}
		mods.Audio = m
	}
	if mon.EnableHardwareMonitoring {
		m, err := detectors.NewHardwareModule(logger, probes.Hardware, store)
		if err != nil {
			return mods, fmt.Errorf("failed to create hardware module: %w", err)
		}
		mods.Hardware = m
	}
	if mon.EnableVMDetection {
		m, err := detectors.NewVMModule(probes.VM)
		if err != nil {
			return mods, fmt.Errorf("failed to create vm module: %w", err)
		}
		mods.VM = m
	}
	return mods, nil
}

// Assemble wires the baseline store, detection modules, orchestrator and
// engine for one host.
func Assemble(cfg config.Interface, logger *zap.Logger, probes *platform.Probes, sink schemas.ReportSink) (*Engine, error) {
	if cfg == nil || logger == nil || probes == nil {
		return nil, fmt.Errorf("cannot assemble engine with nil dependencies")
	}

	var store *baseline.Store
	var sources BaselineSources
	if mon := cfg.Monitoring(); mon.CollectBaseline {
		store = baseline.NewStore(logger)
		if mon.EnableProcessMonitoring {
			sources.Processes = probes.Processes
		}
		if mon.EnableHardwareMonitoring {
			sources.Hardware = probes.Hardware
		}
	}

	mods, err := NewModules(cfg, logger, probes, store)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(cfg, logger, mods)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return New(cfg, logger, orch, sink, store, sources)
}
