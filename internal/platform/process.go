package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// unknownPath is reported when a process executable cannot be resolved,
// usually because it belongs to another user.
const unknownPath = "Unknown"

// audioDeviceMarkers match open file targets that indicate an audio capture
// stream.
var audioDeviceMarkers = []string{"/dev/snd", "pulse", "pipewire"}

// accessibilityMarkers match mapped libraries of the AT-SPI accessibility bus.
var accessibilityMarkers = []string{"at-spi", "atspi"}

// processHandle is the part of *process.Process the table reads.
type processHandle interface {
	NameWithContext(ctx context.Context) (string, error)
	ExeWithContext(ctx context.Context) (string, error)
	OpenFilesWithContext(ctx context.Context) ([]process.OpenFilesStat, error)
	MemoryMapsWithContext(ctx context.Context, grouped bool) (*[]process.MemoryMapsStat, error)
}

var _ processHandle = (*process.Process)(nil)

type hostProcess struct {
	pid    int32
	handle processHandle
}

// ProcessTable enumerates and inspects host processes through gopsutil.
type ProcessTable struct {
	list   func(ctx context.Context) ([]hostProcess, error)
	open   func(ctx context.Context, pid int32) (processHandle, error)
	logger *zap.Logger
}

// NewProcessTable creates a table over the running host.
func NewProcessTable(logger *zap.Logger) *ProcessTable {
	return newProcessTable(listHostProcesses, openHostProcess, logger)
}

func newProcessTable(
	list func(ctx context.Context) ([]hostProcess, error),
	open func(ctx context.Context, pid int32) (processHandle, error),
	logger *zap.Logger,
) *ProcessTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessTable{list: list, open: open, logger: logger.With(zap.String("component", "process_table"))}
}

func listHostProcesses(ctx context.Context) ([]hostProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]hostProcess, 0, len(procs))
	for _, p := range procs {
		out = append(out, hostProcess{pid: p.Pid, handle: p})
	}
	return out, nil
}

func openHostProcess(ctx context.Context, pid int32) (processHandle, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProcesses implements schemas.ProcessSource. Processes that exit while
// being read are skipped.
func (t *ProcessTable) ListProcesses(ctx context.Context) ([]schemas.ProcessObservation, error) {
	procs, err := t.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	observations := make([]schemas.ProcessObservation, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.pid < 0 {
			continue
		}
		name, err := p.handle.NameWithContext(ctx)
		if err != nil {
			continue
		}
		path, err := p.handle.ExeWithContext(ctx)
		if err != nil || path == "" {
			path = unknownPath
		}
		observations = append(observations, schemas.ProcessObservation{
			PID:  uint32(p.pid),
			Name: strings.TrimSpace(name),
			Path: path,
		})
	}

	t.logger.Debug("Enumerated processes.", zap.Int("count", len(observations)))
	return observations, nil
}

// HasOpenAudioDevice reports whether any open file of the process is an audio
// device or sound server socket.
func (t *ProcessTable) HasOpenAudioDevice(ctx context.Context, pid uint32) bool {
	h, err := t.open(ctx, int32(pid))
	if err != nil {
		return false
	}
	files, err := h.OpenFilesWithContext(ctx)
	if err != nil {
		return false
	}
	for _, f := range files {
		if containsAny(f.Path, audioDeviceMarkers) {
			return true
		}
	}
	return false
}

// MapsAccessibilityBus reports whether the process has the AT-SPI libraries mapped.
func (t *ProcessTable) MapsAccessibilityBus(ctx context.Context, pid uint32) bool {
	h, err := t.open(ctx, int32(pid))
	if err != nil {
		return false
	}
	maps, err := h.MemoryMapsWithContext(ctx, false)
	if err != nil || maps == nil {
		return false
	}
	for _, m := range *maps {
		if containsAny(m.Path, accessibilityMarkers) {
			return true
		}
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
