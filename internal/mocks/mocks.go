// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Report() config.ReportConfig {
	args := m.Called()
	return args.Get(0).(config.ReportConfig)
}

func (m *MockConfig) Scan() config.ScanConfig {
	args := m.Called()
	return args.Get(0).(config.ScanConfig)
}

func (m *MockConfig) Weights() config.WeightsConfig {
	args := m.Called()
	return args.Get(0).(config.WeightsConfig)
}

func (m *MockConfig) Thresholds() config.ThresholdsConfig {
	args := m.Called()
	return args.Get(0).(config.ThresholdsConfig)
}

func (m *MockConfig) Whitelist() config.WhitelistConfig {
	args := m.Called()
	return args.Get(0).(config.WhitelistConfig)
}

func (m *MockConfig) Monitoring() config.MonitoringConfig {
	args := m.Called()
	return args.Get(0).(config.MonitoringConfig)
}

func (m *MockConfig) Heuristics() config.HeuristicsConfig {
	args := m.Called()
	return args.Get(0).(config.HeuristicsConfig)
}

// -- Probe Mocks --

// MockProcessSource mocks schemas.ProcessSource.
type MockProcessSource struct {
	mock.Mock
}

func (m *MockProcessSource) ListProcesses(ctx context.Context) ([]schemas.ProcessObservation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.ProcessObservation), args.Error(1)
}

// MockCapabilityProbe mocks schemas.CapabilityProbe. Kind is fixed at
// construction so tests only stub HasCapability.
type MockCapabilityProbe struct {
	mock.Mock
	kind schemas.CapabilityKind
}

// NewMockCapabilityProbe creates a capability probe mock of the given kind.
func NewMockCapabilityProbe(kind schemas.CapabilityKind) *MockCapabilityProbe {
	return &MockCapabilityProbe{kind: kind}
}

func (m *MockCapabilityProbe) Kind() schemas.CapabilityKind { return m.kind }

func (m *MockCapabilityProbe) HasCapability(ctx context.Context, p schemas.ProcessObservation) bool {
	return m.Called(ctx, p).Bool(0)
}

// MockOverlayProbe mocks schemas.OverlayProbe.
type MockOverlayProbe struct {
	mock.Mock
}

func (m *MockOverlayProbe) FindHiddenOverlays(ctx context.Context) ([]schemas.OverlayWindow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.OverlayWindow), args.Error(1)
}

// MockAudioProbe mocks schemas.AudioProbe.
type MockAudioProbe struct {
	mock.Mock
}

func (m *MockAudioProbe) DetectRealtimeAudioProcessing(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockHardwareProbe mocks schemas.HardwareProbe.
type MockHardwareProbe struct {
	mock.Mock
}

func (m *MockHardwareProbe) CurrentDisplayConfiguration(ctx context.Context) (schemas.DisplayConfiguration, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.DisplayConfiguration), args.Error(1)
}

func (m *MockHardwareProbe) RemoteDesktopActive(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

// MockVMProbe mocks schemas.VMProbe.
type MockVMProbe struct {
	mock.Mock
}

func (m *MockVMProbe) Detect(ctx context.Context) (schemas.VMCheckResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.VMCheckResult), args.Error(1)
}

// -- Sink Mock --

// MockReportSink mocks schemas.ReportSink.
type MockReportSink struct {
	mock.Mock
}

func (m *MockReportSink) Emit(ctx context.Context, report *schemas.DetectionReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockReportSink) Close() error {
	return m.Called().Error(0)
}

var (
	_ config.Interface        = (*MockConfig)(nil)
	_ schemas.ProcessSource   = (*MockProcessSource)(nil)
	_ schemas.CapabilityProbe = (*MockCapabilityProbe)(nil)
	_ schemas.OverlayProbe    = (*MockOverlayProbe)(nil)
	_ schemas.AudioProbe      = (*MockAudioProbe)(nil)
	_ schemas.HardwareProbe   = (*MockHardwareProbe)(nil)
	_ schemas.VMProbe         = (*MockVMProbe)(nil)
	_ schemas.ReportSink      = (*MockReportSink)(nil)
)
