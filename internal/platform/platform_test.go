package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	pshost "github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/detectors"
)

const xrandrOutput = `Screen 0: minimum 320 x 200, current 3840 x 1080, maximum 16384 x 16384
eDP-1 connected primary 1920x1080+0+0 (normal left inverted right x axis y axis) 344mm x 194mm
   1920x1080     60.02*+
HDMI-1 connected 1920x1080+1920+0 (normal left inverted right x axis y axis) 527mm x 296mm
   1920x1080     60.00*+
DP-1 disconnected (normal left inverted right x axis y axis)
VIRTUAL1 connected (normal left inverted right x axis y axis)
`

var vncSockets = []psnet.ConnectionStat{
	{Status: "LISTEN", Laddr: psnet.Addr{IP: "127.0.0.53", Port: 53}},
	{Status: "LISTEN", Laddr: psnet.Addr{IP: "0.0.0.0", Port: 5901}},
}

func staticListeners(conns []psnet.ConnectionStat, err error) ListenerSource {
	return func(context.Context) ([]psnet.ConnectionStat, error) { return conns, err }
}

// fakeRunner returns canned output per command name.
type fakeRunner map[string]struct {
	out string
	err error
}

func (f fakeRunner) run(_ context.Context, name string, _ ...string) ([]byte, error) {
	r, ok := f[name]
	if !ok {
		return nil, errors.New("executable file not found in $PATH")
	}
	return []byte(r.out), r.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// -- Parsers --

func TestParseXrandr(t *testing.T) {
	cfg := ParseXrandr(xrandrOutput)

	want := schemas.DisplayConfiguration{
		DisplayCount: 3,
		Displays: []schemas.DisplayInfo{
			{ID: "eDP-1", Name: "eDP-1", Width: 1920, Height: 1080, IsPrimary: true, ConnectionType: schemas.ConnectionUnknown},
			{ID: "HDMI-1", Name: "HDMI-1", Width: 1920, Height: 1080, ConnectionType: schemas.ConnectionHDMI},
			{ID: "VIRTUAL1", Name: "VIRTUAL1", ConnectionType: schemas.ConnectionVirtual},
		},
		HasVirtualDisplay: true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ParseXrandr mismatch (-want +got):\n%s", diff)
	}
}

func TestParseXrandr_Empty(t *testing.T) {
	cfg := ParseXrandr("")
	assert.Equal(t, 0, cfg.DisplayCount)
	assert.NotNil(t, cfg.Displays)
}

func TestConnectionFromOutputName(t *testing.T) {
	cases := map[string]schemas.ConnectionType{
		"HDMI-A-0":      schemas.ConnectionHDMI,
		"DP-2":          schemas.ConnectionDisplayPort,
		"DisplayPort-1": schemas.ConnectionDisplayPort,
		"Virtual-1":     schemas.ConnectionVirtual,
		"eDP-1":         schemas.ConnectionUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, connectionFromOutputName(name), name)
	}
}

func TestVNCListening(t *testing.T) {
	assert.True(t, VNCListening(vncSockets))
	assert.False(t, VNCListening(vncSockets[:1]))
	assert.False(t, VNCListening([]psnet.ConnectionStat{
		{Status: "ESTABLISHED", Laddr: psnet.Addr{Port: 5900}},
	}), "Listener state is required")
	assert.False(t, VNCListening([]psnet.ConnectionStat{
		{Status: "LISTEN", Laddr: psnet.Addr{Port: 5910}},
	}))
	assert.True(t, VNCListening([]psnet.ConnectionStat{
		{Status: "LISTEN", Laddr: psnet.Addr{IP: "::", Port: 5909}},
	}))
}

func TestSoundServerParsers(t *testing.T) {
	assert.True(t, PulseCaptureActive("Source Output #12\n\tDriver: protocol-native.c"))
	assert.False(t, PulseCaptureActive(""))
	assert.True(t, PipeWireCaptureActive("type PipeWire:Interface:Node\n media.class = \"Stream/Input/Audio\"\n node.name = \"capture\""))
	assert.False(t, PipeWireCaptureActive("Stream/Output/Audio"))
}

// -- Command Probes --

func TestSoundServerAudioProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("pulse capture stream", func(t *testing.T) {
		run := fakeRunner{"pactl": {out: "Source Output #3\n"}}
		active, err := NewSoundServerAudioProbe(run.run, zap.NewNop()).DetectRealtimeAudioProcessing(ctx)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("falls back to pipewire", func(t *testing.T) {
		run := fakeRunner{"pw-cli": {out: "Stream/Input/Audio capture"}}
		active, err := NewSoundServerAudioProbe(run.run, zap.NewNop()).DetectRealtimeAudioProcessing(ctx)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("no sound server tools", func(t *testing.T) {
		active, err := NewSoundServerAudioProbe(fakeRunner{}.run, zap.NewNop()).DetectRealtimeAudioProcessing(ctx)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("cancelled context is reported", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewSoundServerAudioProbe(fakeRunner{}.run, zap.NewNop()).DetectRealtimeAudioProcessing(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestXrandrHardwareProbe(t *testing.T) {
	ctx := context.Background()

	run := fakeRunner{"xrandr": {out: xrandrOutput}}
	probe := NewXrandrHardwareProbe(run.run, staticListeners(vncSockets, nil), zap.NewNop())

	cfg, err := probe.CurrentDisplayConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DisplayCount)
	assert.True(t, probe.RemoteDesktopActive(ctx))

	core, logs := observer.New(zapcore.DebugLevel)
	missing := NewXrandrHardwareProbe(fakeRunner{}.run, staticListeners(nil, errors.New("permission denied")), zap.New(core))
	_, err = missing.CurrentDisplayConfiguration(ctx)
	assert.ErrorContains(t, err, "xrandr query failed")
	assert.False(t, missing.RemoteDesktopActive(ctx))
	assert.Equal(t, 1, logs.FilterMessage("TCP socket table unavailable; remote desktop state unknown.").Len())
}

func TestTCPListeners_SeesLocalVNCListener(t *testing.T) {
	var ln net.Listener
	for port := vncFirstPort; port <= vncLastPort && ln == nil; port++ {
		if l, err := net.Listen("tcp4", fmt.Sprintf("127.0.0.1:%d", port)); err == nil {
			ln = l
		}
	}
	if ln == nil {
		t.Skip("no free port in the VNC range")
	}
	defer ln.Close()

	conns, err := TCPListeners(context.Background())
	if err != nil {
		t.Skipf("TCP socket table unreadable: %v", err)
	}
	assert.True(t, VNCListening(conns))

	probe := NewXrandrHardwareProbe(fakeRunner{}.run, nil, zap.NewNop())
	assert.True(t, probe.RemoteDesktopActive(context.Background()))
}

func TestUnsupportedHardware_ReadsListeners(t *testing.T) {
	ctx := context.Background()
	hw := unsupportedHardwareProbe{listeners: staticListeners(vncSockets, nil)}
	_, err := hw.CurrentDisplayConfiguration(ctx)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.True(t, hw.RemoteDesktopActive(ctx))
	assert.False(t, unsupportedHardwareProbe{}.RemoteDesktopActive(ctx))
}

// -- Process Table --

// fakeHandle serves canned answers for one process.
type fakeHandle struct {
	name    string
	nameErr error
	exe     string
	exeErr  error
	files   []process.OpenFilesStat
	maps    []process.MemoryMapsStat
	mapsErr error
}

func (f *fakeHandle) NameWithContext(context.Context) (string, error) { return f.name, f.nameErr }
func (f *fakeHandle) ExeWithContext(context.Context) (string, error) { return f.exe, f.exeErr }

func (f *fakeHandle) OpenFilesWithContext(context.Context) ([]process.OpenFilesStat, error) {
	return f.files, nil
}

func (f *fakeHandle) MemoryMapsWithContext(context.Context, bool) (*[]process.MemoryMapsStat, error) {
	if f.mapsErr != nil {
		return nil, f.mapsErr
	}
	return &f.maps, nil
}

func fakeTable(handles map[int32]*fakeHandle) *ProcessTable {
	list := func(context.Context) ([]hostProcess, error) {
		out := make([]hostProcess, 0, len(handles))
		for pid, h := range handles {
			out = append(out, hostProcess{pid: pid, handle: h})
		}
		return out, nil
	}
	open := func(_ context.Context, pid int32) (processHandle, error) {
		h, ok := handles[pid]
		if !ok {
			return nil, errors.New("process does not exist")
		}
		return h, nil
	}
	return newProcessTable(list, open, zap.NewNop())
}

func TestProcessTable(t *testing.T) {
	table := fakeTable(map[int32]*fakeHandle{
		101: {
			name:  "cluely\n",
			exe:   "/opt/cluely/cluely",
			files: []process.OpenFilesStat{{Fd: 3, Path: "/home/u/.config"}, {Fd: 7, Path: "/dev/snd/pcmC0D0c"}},
			maps:  []process.MemoryMapsStat{{Path: "/usr/lib/libatspi.so.0"}},
		},
		202: {name: "bash", exeErr: errors.New("permission denied"), mapsErr: errors.New("permission denied")},
		303: {nameErr: errors.New("process exited")},
	})
	ctx := context.Background()

	procs, err := table.ListProcesses(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []schemas.ProcessObservation{
		{PID: 101, Name: "cluely", Path: "/opt/cluely/cluely"},
		{PID: 202, Name: "bash", Path: unknownPath},
	}, procs)

	assert.True(t, table.HasOpenAudioDevice(ctx, 101))
	assert.False(t, table.HasOpenAudioDevice(ctx, 202))
	assert.False(t, table.HasOpenAudioDevice(ctx, 999))
	assert.True(t, table.MapsAccessibilityBus(ctx, 101))
	assert.False(t, table.MapsAccessibilityBus(ctx, 202))
	assert.False(t, table.MapsAccessibilityBus(ctx, 999))

	probes := ProcessCapabilityProbes(table)
	require.Len(t, probes, 2)
	assert.Equal(t, schemas.CapabilityAudioCapture, probes[0].Kind())
	assert.Equal(t, schemas.CapabilityAccessibility, probes[1].Kind())
	assert.True(t, probes[1].HasCapability(ctx, schemas.ProcessObservation{PID: 101}))
}

func TestProcessTable_ListFailure(t *testing.T) {
	table := newProcessTable(func(context.Context) ([]hostProcess, error) {
		return nil, errors.New("proc not mounted")
	}, nil, nil)
	_, err := table.ListProcesses(context.Background())
	assert.ErrorContains(t, err, "failed to enumerate processes")
}

func TestProcessTable_Cancelled(t *testing.T) {
	table := fakeTable(map[int32]*fakeHandle{1: {name: "init"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := table.ListProcesses(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessTable_ListsCurrentProcess(t *testing.T) {
	procs, err := NewProcessTable(nil).ListProcesses(context.Background())
	require.NoError(t, err)

	self := uint32(os.Getpid())
	var found bool
	for _, p := range procs {
		if p.PID == self {
			found = true
			assert.NotEmpty(t, p.Name)
		}
	}
	assert.True(t, found, "own pid %d missing from process list", self)
}

// -- Host Fingerprint --

func TestMACAddresses(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", HardwareAddr: "", Flags: []string{"up", "loopback"}},
		{Name: "lo0", HardwareAddr: "00:00:00:00:00:00", Flags: []string{"loopback"}},
		{Name: "enp0s3", HardwareAddr: "08:00:27:aa:bb:cc", Flags: []string{"up", "broadcast"}},
		{Name: "tun0", HardwareAddr: ""},
	}
	assert.Equal(t, map[string]string{"enp0s3": "08:00:27:aa:bb:cc"}, MACAddresses(ifaces))
	assert.Empty(t, MACAddresses(nil))
}

func TestFingerprintCollector(t *testing.T) {
	src := fingerprintSources{
		hypervisor: func() (bool, string, bool) { return true, "VBoxVBoxVBox", false },
		hostInfo: func(context.Context) (*pshost.InfoStat, error) {
			return &pshost.InfoStat{Hostname: "exam-vm-01"}, nil
		},
		interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
			return psnet.InterfaceStatList{{Name: "eth0", HardwareAddr: "08:00:27:00:00:01"}}, nil
		},
		productName: func() string { return "VirtualBox" },
	}

	fp, err := newFingerprintCollector(src, nil)(context.Background())
	require.NoError(t, err)
	want := detectors.VMFingerprint{
		HypervisorPresent: true,
		HypervisorVendor:  "VBoxVBoxVBox",
		SystemModel:       "VirtualBox",
		Hostname:          "exam-vm-01",
		MACAddresses:      map[string]string{"eth0": "08:00:27:00:00:01"},
	}
	if diff := cmp.Diff(want, fp); diff != "" {
		t.Errorf("fingerprint mismatch (-want +got):\n%s", diff)
	}

	t.Run("lookup failures leave fields empty", func(t *testing.T) {
		src := fingerprintSources{
			hypervisor: func() (bool, string, bool) { return false, "", false },
			hostInfo: func(context.Context) (*pshost.InfoStat, error) {
				return nil, errors.New("uname failed")
			},
			interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
				return nil, errors.New("netlink denied")
			},
		}
		fp, err := newFingerprintCollector(src, zap.NewNop())(context.Background())
		require.NoError(t, err)
		assert.Empty(t, fp.Hostname)
		assert.Empty(t, fp.SystemModel)
		assert.Empty(t, fp.MACAddresses)
	})

	t.Run("reports the running host name", func(t *testing.T) {
		want, err := os.Hostname()
		require.NoError(t, err)
		fp, err := NewHostFingerprintCollector(nil, nil)(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, fp.Hostname)
	})
}

func TestSysFS(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "class", "dmi", "id", "product_name"), "VirtualBox\n")

	assert.Equal(t, "VirtualBox", NewSysFS(root).ProductName())
	assert.Equal(t, "", NewSysFS(filepath.Join(root, "absent")).ProductName())
}

func TestNameCapabilityProbe(t *testing.T) {
	probe := NameCapabilityProbe(schemas.CapabilityScreenCapture, []string{"OBS", " ", "helper"})
	ctx := context.Background()

	assert.Equal(t, schemas.CapabilityScreenCapture, probe.Kind())
	assert.True(t, probe.HasCapability(ctx, schemas.ProcessObservation{Name: "obs64"}))
	assert.True(t, probe.HasCapability(ctx, schemas.ProcessObservation{Name: "Interview-Helper"}))
	assert.False(t, probe.HasCapability(ctx, schemas.ProcessObservation{Name: "bash"}))
}

// -- VM Probe --

func TestFingerprintVMProbe(t *testing.T) {
	weights := config.NewDefaultConfig().Heuristics().VM

	t.Run("scores the collected fingerprint", func(t *testing.T) {
		collect := func(context.Context) (detectors.VMFingerprint, error) {
			return detectors.VMFingerprint{
				HypervisorPresent: true,
				HypervisorVendor:  "VMwareVMware",
				SystemModel:       "VMware Virtual Platform",
			}, nil
		}
		result, err := NewFingerprintVMProbe(collect, weights, zap.NewNop()).Detect(context.Background())
		require.NoError(t, err)
		assert.True(t, result.IsVM)
		assert.InDelta(t, 1.0, result.ConfidenceScore, 1e-9)
	})

	t.Run("propagates collector errors", func(t *testing.T) {
		collectErr := errors.New("dmi unreadable")
		collect := func(context.Context) (detectors.VMFingerprint, error) {
			return detectors.VMFingerprint{}, collectErr
		}
		_, err := NewFingerprintVMProbe(collect, weights, nil).Detect(context.Background())
		assert.ErrorIs(t, err, collectErr)
	})
}

// -- Probe Set --

func TestNewProbes(t *testing.T) {
	_, err := NewProbes(nil, zap.NewNop())
	assert.Error(t, err)

	probes, err := NewProbes(config.NewDefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, probes.Processes)
	assert.NotNil(t, probes.Overlay)
	assert.NotNil(t, probes.Audio)
	assert.NotNil(t, probes.Hardware)
	assert.NotNil(t, probes.VM)
	assert.NotEmpty(t, probes.Capabilities)

	overlays, err := NoOverlayProbe{}.FindHiddenOverlays(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, overlays)
	assert.Empty(t, overlays)
}
