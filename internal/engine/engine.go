// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/baseline"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/fusion"
	"github.com/xkilldash9x/vigil/internal/orchestrator"
)

// ErrHaltedOnModuleFailure is returned by Run when a cycle had module failures
// and monitoring.continue_on_module_failure is off. The failing report has
// already been emitted.
var ErrHaltedOnModuleFailure = errors.New("scan halted after module failure")

// ErrAlreadyRunning is returned when Run is called on an engine that is running.
var ErrAlreadyRunning = errors.New("engine is already running")

// CycleRunner runs every enabled detection module once.
type CycleRunner interface {
	RunAll(ctx context.Context) orchestrator.Results
}

// BaselineSources provide the one-shot session baseline. Either may be nil, in
// which case that half of the snapshot is left unknown.
type BaselineSources struct {
	Processes schemas.ProcessSource
	Hardware  schemas.HardwareProbe
}

// Engine owns the scan loop: the session, the scan counter, the optional
// baseline and the report sink.
type Engine struct {
	cfg      config.Interface
	logger   *zap.Logger
	runner   CycleRunner
	sink     schemas.ReportSink
	baseline *baseline.Store
	sources  BaselineSources

	sessionID string
	scanCount atomic.Uint64

	now   func() time.Time
	newID func() string

	stateLock sync.Mutex
	isRunning bool
}

// New creates an engine. store may be nil when baseline collection is disabled.
func New(
	cfg config.Interface,
	logger *zap.Logger,
	runner CycleRunner,
	sink schemas.ReportSink,
	store *baseline.Store,
	sources BaselineSources,
) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if runner == nil {
		return nil, errors.New("cycle runner cannot be nil")
	}
	if sink == nil {
		return nil, errors.New("report sink cannot be nil")
	}

	sessionID := uuid.NewString()
	return &Engine{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "engine"), zap.String("session_id", sessionID)),
		runner:    runner,
		sink:      sink,
		baseline:  store,
		sources:   sources,
		sessionID: sessionID,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// SessionID identifies this monitoring session in every report.
func (e *Engine) SessionID() string { return e.sessionID }

// ScanCount returns the number of cycles run so far.
func (e *Engine) ScanCount() uint64 { return e.scanCount.Load() }

// Run captures the baseline if configured and then scans until ctx is
// cancelled or scan.max_cycles is reached. Cancellation is a clean stop and
// returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.stateLock.Lock()
	if e.isRunning {
		e.stateLock.Unlock()
		return ErrAlreadyRunning
	}
	e.isRunning = true
	e.stateLock.Unlock()
	defer func() {
		e.stateLock.Lock()
		e.isRunning = false
		e.stateLock.Unlock()
	}()

	mon := e.cfg.Monitoring()
	scan := e.cfg.Scan()
	e.logger.Info("Starting monitoring session.",
		zap.Int("interval_seconds", scan.IntervalSeconds),
		zap.Int("max_cycles", scan.MaxCycles),
		zap.String("interview_type", scan.InterviewType))

	if mon.CollectBaseline {
		err := e.CaptureBaseline(ctx)
		captured := e.baseline != nil && e.baseline.Captured()
		switch {
		case err != nil && !captured:
			e.logger.Warn("Baseline capture failed; continuing without a baseline.", zap.Error(err))
		case err != nil:
			e.logger.Warn("Baseline partially captured.", zap.Error(err))
		}
		if captured && !wait(ctx, mon.BaselineSettle()) {
			return nil
		}
	}

	for {
		if ctx.Err() != nil {
			e.logger.Info("Monitoring session cancelled.", zap.Uint64("cycles", e.scanCount.Load()))
			return nil
		}

		report := e.RunCycle(ctx)
		if err := e.sink.Emit(ctx, report); err != nil {
			e.logger.Error("Failed to emit detection report.", zap.Uint64("scan_number", report.ScanNumber), zap.Error(err))
		}

		if len(report.ModuleFailures) > 0 && !mon.ContinueOnModuleFailure {
			return fmt.Errorf("%w: %v", ErrHaltedOnModuleFailure, report.ModuleFailures)
		}
		if scan.MaxCycles > 0 && e.scanCount.Load() >= uint64(scan.MaxCycles) {
			e.logger.Info("Configured cycle count reached.", zap.Uint64("cycles", e.scanCount.Load()))
			return nil
		}
		if !wait(ctx, scan.Interval()) {
			e.logger.Info("Monitoring session cancelled.", zap.Uint64("cycles", e.scanCount.Load()))
			return nil
		}
	}
}

// RunCycle runs one scan and returns the fused report. It always returns a
// report, even when every module failed.
func (e *Engine) RunCycle(ctx context.Context) *schemas.DetectionReport {
	report := &schemas.DetectionReport{
		ReportID:   e.newID(),
		SessionID:  e.sessionID,
		Timestamp:  e.now().UTC(),
		ScanNumber: e.scanCount.Add(1),
	}

	results := e.runner.RunAll(ctx)
	results.ApplyTo(report)
	verdict := fusion.Apply(report, e.cfg.Weights(), e.cfg.Scan().RiskThreshold)

	e.logger.Debug("Scan cycle fused.",
		zap.Uint64("scan_number", report.ScanNumber),
		zap.Float64("score", verdict.Score),
		zap.Bool("exceeds_threshold", verdict.ExceedsThreshold),
		verdict.Field())
	if verdict.ExceedsThreshold {
		e.logger.Warn("Risk threshold exceeded.",
			zap.Uint64("scan_number", report.ScanNumber),
			zap.Float64("score", verdict.Score),
			zap.Int("suspicious_processes", len(report.SuspiciousProcesses)))
	}
	return report
}

// CaptureBaseline records the current process list and display layout. The
// two halves are read independently: a half whose source fails is left
// unknown while the other is still stored. The returned error joins every
// failed read.
func (e *Engine) CaptureBaseline(ctx context.Context) error {
	if e.baseline == nil {
		return errors.New("no baseline store configured")
	}

	timeout := e.cfg.Scan().ModuleTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	captureCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var obs baseline.Observation
	var errs []error

	if e.sources.Processes != nil {
		processes, err := e.sources.Processes.ListProcesses(captureCtx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to list baseline processes: %w", err))
		} else {
			obs.HasProcesses = true
			obs.PIDs = make([]uint32, 0, len(processes))
			for _, p := range processes {
				obs.PIDs = append(obs.PIDs, p.PID)
			}
		}
	}

	if e.sources.Hardware != nil {
		displays, err := e.sources.Hardware.CurrentDisplayConfiguration(captureCtx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read baseline display configuration: %w", err))
		} else {
			obs.HasDisplays = true
			obs.Displays = displays
		}
	}

	e.baseline.Record(obs)
	return errors.Join(errs...)
}

// wait blocks for d or until ctx is done. It reports whether the full
// duration elapsed.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
