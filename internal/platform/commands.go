package platform

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// Runner executes an external command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with exec.CommandContext so that a module timeout
// kills the child process.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// -- Audio --

// SoundServerAudioProbe asks PulseAudio, then PipeWire, whether any capture
// stream is open.
type SoundServerAudioProbe struct {
	run    Runner
	logger *zap.Logger
}

// NewSoundServerAudioProbe creates the probe. A nil runner uses ExecRunner.
func NewSoundServerAudioProbe(run Runner, logger *zap.Logger) *SoundServerAudioProbe {
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SoundServerAudioProbe{run: run, logger: logger.With(zap.String("component", "audio_probe"))}
}

// DetectRealtimeAudioProcessing implements schemas.AudioProbe. A missing sound
// server tool counts as no capture.
func (a *SoundServerAudioProbe) DetectRealtimeAudioProcessing(ctx context.Context) (bool, error) {
	if out, err := a.run(ctx, "pactl", "list", "source-outputs"); err == nil {
		if PulseCaptureActive(string(out)) {
			return true, nil
		}
	} else {
		a.logger.Debug("pactl unavailable", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if out, err := a.run(ctx, "pw-cli", "list-objects"); err == nil {
		if PipeWireCaptureActive(string(out)) {
			return true, nil
		}
	} else {
		a.logger.Debug("pw-cli unavailable", zap.Error(err))
	}
	return false, ctx.Err()
}

// PulseCaptureActive reports whether `pactl list source-outputs` lists a stream.
func PulseCaptureActive(output string) bool {
	return strings.Contains(output, "Source Output #")
}

// PipeWireCaptureActive reports whether `pw-cli list-objects` lists a capture stream.
func PipeWireCaptureActive(output string) bool {
	return strings.Contains(output, "Stream") && strings.Contains(output, "capture")
}

// -- Displays --

// VNC servers listen on 5900 plus the display number.
const (
	vncFirstPort = 5900
	vncLastPort  = 5909
)

// ListenerSource returns the host's TCP sockets.
type ListenerSource func(ctx context.Context) ([]psnet.ConnectionStat, error)

// TCPListeners reads the kernel's TCP socket table.
func TCPListeners(ctx context.Context) ([]psnet.ConnectionStat, error) {
	return psnet.ConnectionsWithContext(ctx, "tcp")
}

// XrandrHardwareProbe reads the display layout from xrandr and the remote
// desktop state from the TCP socket table.
type XrandrHardwareProbe struct {
	run       Runner
	listeners ListenerSource
	logger    *zap.Logger
}

// NewXrandrHardwareProbe creates the probe. A nil runner uses ExecRunner and
// a nil listener source uses TCPListeners.
func NewXrandrHardwareProbe(run Runner, listeners ListenerSource, logger *zap.Logger) *XrandrHardwareProbe {
	if run == nil {
		run = ExecRunner
	}
	if listeners == nil {
		listeners = TCPListeners
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XrandrHardwareProbe{run: run, listeners: listeners, logger: logger.With(zap.String("component", "hardware_probe"))}
}

// CurrentDisplayConfiguration implements schemas.HardwareProbe.
func (h *XrandrHardwareProbe) CurrentDisplayConfiguration(ctx context.Context) (schemas.DisplayConfiguration, error) {
	out, err := h.run(ctx, "xrandr", "--query")
	if err != nil {
		return schemas.DisplayConfiguration{}, fmt.Errorf("xrandr query failed: %w", err)
	}
	return ParseXrandr(string(out)), nil
}

// RemoteDesktopActive implements schemas.HardwareProbe.
func (h *XrandrHardwareProbe) RemoteDesktopActive(ctx context.Context) bool {
	return remoteDesktopListening(ctx, h.listeners, h.logger)
}

func remoteDesktopListening(ctx context.Context, listeners ListenerSource, logger *zap.Logger) bool {
	conns, err := listeners(ctx)
	if err != nil {
		logger.Warn("TCP socket table unavailable; remote desktop state unknown.", zap.Error(err))
		return false
	}
	return VNCListening(conns)
}

// ParseXrandr extracts the connected outputs from `xrandr --query` output.
func ParseXrandr(output string) schemas.DisplayConfiguration {
	cfg := schemas.DisplayConfiguration{Displays: []schemas.DisplayInfo{}}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, " connected") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		name := fields[0]
		info := schemas.DisplayInfo{
			ID:             name,
			Name:           name,
			IsPrimary:      strings.Contains(line, "primary"),
			ConnectionType: connectionFromOutputName(name),
		}
		for _, f := range fields[1:] {
			if w, h, ok := parseGeometry(f); ok {
				info.Width, info.Height = w, h
				break
			}
		}
		if strings.Contains(strings.ToLower(name), "virtual") {
			cfg.HasVirtualDisplay = true
		}
		cfg.Displays = append(cfg.Displays, info)
	}

	cfg.DisplayCount = len(cfg.Displays)
	return cfg
}

// parseGeometry reads "1920x1080+0+0" style tokens.
func parseGeometry(token string) (uint32, uint32, bool) {
	w, rest, found := strings.Cut(token, "x")
	if !found {
		return 0, 0, false
	}
	h, _, _ := strings.Cut(rest, "+")
	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(width), uint32(height), true
}

func connectionFromOutputName(name string) schemas.ConnectionType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "hdmi"):
		return schemas.ConnectionHDMI
	case strings.HasPrefix(lower, "dp"), strings.HasPrefix(lower, "displayport"):
		return schemas.ConnectionDisplayPort
	case strings.Contains(lower, "virtual"):
		return schemas.ConnectionVirtual
	default:
		return schemas.ConnectionUnknown
	}
}

// VNCListening reports whether any socket is listening on a VNC port.
func VNCListening(conns []psnet.ConnectionStat) bool {
	for _, c := range conns {
		if c.Status != "LISTEN" {
			continue
		}
		if c.Laddr.Port >= vncFirstPort && c.Laddr.Port <= vncLastPort {
			return true
		}
	}
	return false
}
