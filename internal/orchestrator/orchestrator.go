// File: internal/orchestrator/orchestrator.go
// Description: Runs the five detection modules once per scan cycle. Every
// module runs behind a fault boundary so one misbehaving detector can never
// cost the cycle its report.

package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

// Modules bundles the concrete detection modules. A module left nil must also
// be disabled in the monitoring configuration.
type Modules struct {
	Process  Module[[]schemas.ProcessSuspicion]
	Overlay  Module[[]schemas.OverlayWindow]
	Audio    Module[bool]
	Hardware Module[schemas.HardwareSuspicionReport]
	VM       Module[schemas.VMCheckResult]
}

// Orchestrator runs the enabled modules and collects their outcomes.
type Orchestrator struct {
	logger     *zap.Logger
	modules    Modules
	monitoring config.MonitoringConfig
	timeout    time.Duration
	parallel   bool
}

// New creates an orchestrator. It fails when an enabled module was not provided.
func New(cfg config.Interface, logger *zap.Logger, modules Modules) (*Orchestrator, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	mon := cfg.Monitoring()
	for _, check := range []struct {
		name    string
		enabled bool
		present bool
	}{
		{ModuleProcess, mon.EnableProcessMonitoring, modules.Process != nil},
		{ModuleOverlay, mon.EnableOverlayMonitoring, modules.Overlay != nil},
		{ModuleAudio, mon.EnableAudioMonitoring, modules.Audio != nil},
		{ModuleHardware, mon.EnableHardwareMonitoring, modules.Hardware != nil},
		{ModuleVM, mon.EnableVMDetection, modules.VM != nil},
	} {
		if check.enabled && !check.present {
			return nil, fmt.Errorf("module %q is enabled but no implementation was provided", check.name)
		}
	}

	return &Orchestrator{
		logger:     logger.With(zap.String("component", "orchestrator")),
		modules:    modules,
		monitoring: mon,
		timeout:    cfg.Scan().ModuleTimeout,
		parallel:   cfg.Scan().ParallelModules,
	}, nil
}

// RunAll runs every enabled module once. It never returns an error; failures
// are recorded in the returned Results.
func (o *Orchestrator) RunAll(ctx context.Context) Results {
	var r Results
	steps := []func(){
		func() {
			if o.monitoring.EnableProcessMonitoring {
				r.Process = runIsolated(ctx, o.logger, ModuleProcess, o.timeout, o.modules.Process)
			}
		},
		func() {
			if o.monitoring.EnableOverlayMonitoring {
				r.Overlay = runIsolated(ctx, o.logger, ModuleOverlay, o.timeout, o.modules.Overlay)
			}
		},
		func() {
			if o.monitoring.EnableAudioMonitoring {
				r.Audio = runIsolated(ctx, o.logger, ModuleAudio, o.timeout, o.modules.Audio)
			}
		},
		func() {
			if o.monitoring.EnableHardwareMonitoring {
				r.Hardware = runIsolated(ctx, o.logger, ModuleHardware, o.timeout, o.modules.Hardware)
			}
		},
		func() {
			if o.monitoring.EnableVMDetection {
				r.VM = runIsolated(ctx, o.logger, ModuleVM, o.timeout, o.modules.VM)
			}
		},
	}

	if !o.parallel {
		for _, step := range steps {
			step()
		}
		return r
	}

	// Each step writes a distinct field of r.
	var g errgroup.Group
	for _, step := range steps {
		step := step
		g.Go(func() error {
			step()
			return nil
		})
	}
	_ = g.Wait()
	return r
}

type moduleResult[T any] struct {
	value T
	err   error
}

// runIsolated runs m under a timeout and converts panics and errors into a
// failed Outcome.
func runIsolated[T any](ctx context.Context, logger *zap.Logger, name string, timeout time.Duration, m Module[T]) Outcome[T] {
	log := logger.With(zap.String("module", name))
	start := time.Now()

	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned module can still deliver and exit.
	done := make(chan moduleResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Detection module panicked",
					zap.Any("panicValue", r),
					zap.String("stack", string(debug.Stack())),
				)
				done <- moduleResult[T]{err: fmt.Errorf("%w: %v", ErrModulePanic, r)}
			}
		}()
		v, err := m.Run(mctx)
		done <- moduleResult[T]{value: v, err: err}
	}()

	var res moduleResult[T]
	select {
	case res = <-done:
	case <-mctx.Done():
		if ctx.Err() != nil {
			res.err = fmt.Errorf("cycle cancelled: %w", ctx.Err())
		} else {
			res.err = fmt.Errorf("%w after %s", ErrModuleTimeout, timeout)
		}
	}

	if res.err != nil {
		log.Warn("Detection module failed", zap.Error(res.err), zap.Duration("elapsed", time.Since(start)))
		return Outcome[T]{Status: StatusFailed, Err: res.err}
	}
	log.Debug("Detection module finished", zap.Duration("elapsed", time.Since(start)))
	return Outcome[T]{Status: StatusSuccess, Value: res.value}
}
