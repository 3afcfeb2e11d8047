package orchestrator

import (
	"context"
	"errors"

	"github.com/xkilldash9x/vigil/api/schemas"
)

var (
	// ErrModuleTimeout is reported when a module does not return within the
	// configured per-module timeout.
	ErrModuleTimeout = errors.New("module timed out")
	// ErrModulePanic is reported when a module terminates abnormally.
	ErrModulePanic = errors.New("module panicked")
)

// Module names, also used as the prefix of failure strings.
const (
	ModuleProcess  = "process"
	ModuleOverlay  = "overlay"
	ModuleAudio    = "audio"
	ModuleHardware = "hardware"
	ModuleVM       = "vm"
)

// Module is a single detection module producing a result of type T.
type Module[T any] interface {
	Run(ctx context.Context) (T, error)
}

// ModuleFunc adapts a plain function to the Module interface.
type ModuleFunc[T any] func(ctx context.Context) (T, error)

// Run calls f(ctx).
func (f ModuleFunc[T]) Run(ctx context.Context) (T, error) {
	return f(ctx)
}

// Status is the state of one module after a cycle.
type Status int

const (
	StatusDisabled Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "disabled"
	}
}

// Outcome is the result of one module for one cycle. Value is the zero value
// unless Status is StatusSuccess.
type Outcome[T any] struct {
	Status Status
	Value  T
	Err    error
}

// OK reports whether the module ran and succeeded.
func (o Outcome[T]) OK() bool {
	return o.Status == StatusSuccess
}

// Results holds the outcome of all five modules for one cycle.
type Results struct {
	Process  Outcome[[]schemas.ProcessSuspicion]
	Overlay  Outcome[[]schemas.OverlayWindow]
	Audio    Outcome[bool]
	Hardware Outcome[schemas.HardwareSuspicionReport]
	VM       Outcome[schemas.VMCheckResult]
}

// Failures lists "<module>: <reason>" for every failed module, always in the
// order process, overlay, audio, hardware, vm.
func (r Results) Failures() []string {
	var failures []string
	add := func(name string, status Status, err error) {
		if status == StatusFailed {
			failures = append(failures, name+": "+err.Error())
		}
	}
	add(ModuleProcess, r.Process.Status, r.Process.Err)
	add(ModuleOverlay, r.Overlay.Status, r.Overlay.Err)
	add(ModuleAudio, r.Audio.Status, r.Audio.Err)
	add(ModuleHardware, r.Hardware.Status, r.Hardware.Err)
	add(ModuleVM, r.VM.Status, r.VM.Err)
	return failures
}

// ApplyTo copies the successful module values onto report. Failed and
// disabled modules leave their report fields empty.
func (r Results) ApplyTo(report *schemas.DetectionReport) {
	report.SuspiciousProcesses = []schemas.ProcessSuspicion{}
	report.HiddenOverlays = []schemas.OverlayWindow{}

	if r.Process.OK() && r.Process.Value != nil {
		report.SuspiciousProcesses = r.Process.Value
	}
	if r.Overlay.OK() && r.Overlay.Value != nil {
		report.HiddenOverlays = r.Overlay.Value
	}
	report.AudioMonitoringDetected = r.Audio.OK() && r.Audio.Value
	if r.Hardware.OK() {
		hw := r.Hardware.Value
		report.HardwareSuspicion = &hw
	}
	if r.VM.OK() {
		vm := r.VM.Value
		report.VMDetection = &vm
	}
	report.ModuleFailures = r.Failures()
	if report.ModuleFailures == nil {
		report.ModuleFailures = []string{}
	}
}
