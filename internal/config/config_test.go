// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, 30, cfg.Scan().IntervalSeconds)
	assert.Equal(t, 30*time.Second, cfg.Scan().Interval())
	assert.Equal(t, 20*time.Second, cfg.Scan().ModuleTimeout)
	assert.Equal(t, 0.5, cfg.Scan().RiskThreshold)
	assert.InDelta(t, 1.0, cfg.Weights().Sum(), 1e-9)
	assert.Equal(t, 0.6, cfg.Thresholds().ProcessThreshold)
	assert.True(t, cfg.Monitoring().CollectBaseline)
	assert.True(t, cfg.Monitoring().ContinueOnModuleFailure)
	assert.Equal(t, 10*time.Second, cfg.Monitoring().BaselineSettle())
	assert.Contains(t, cfg.Whitelist().Processes, "chrome.exe")
	assert.False(t, cfg.Whitelist().TrustBaseline)
	assert.Contains(t, cfg.Heuristics().SuspiciousNames, "cluely")
	assert.Contains(t, cfg.Heuristics().CommonLegitApps, "chrome.exe")
	assert.Equal(t, 0.2, cfg.Heuristics().VM.AmbiguousVendorWeight)
	assert.Empty(t, cfg.Database().URL)

	require.NoError(t, cfg.Validate(), "Defaults must always be a valid configuration")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Weights Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.WeightsCfg.ProcessRisk = 0.5

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidWeights)
		assert.Contains(t, err.Error(), "got 1.20")

		withinTolerance := NewDefaultConfig()
		withinTolerance.WeightsCfg.ProcessRisk = 0.305
		assert.NoError(t, withinTolerance.Validate(), "A drift of 0.005 is within tolerance")

		negative := NewDefaultConfig()
		negative.WeightsCfg.OverlayRisk = -0.2
		negative.WeightsCfg.ProcessRisk = 0.7
		err = negative.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weights.overlay_risk must not be negative")
	})

	t.Run("Risk Threshold Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.ScanCfg.RiskThreshold = 1.5
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scan.risk_threshold must be between 0.0 and 1.0")

		cfg.ScanCfg.RiskThreshold = -0.1
		assert.Error(t, cfg.Validate())

		cfg.ScanCfg.RiskThreshold = 1.0
		assert.NoError(t, cfg.Validate(), "The upper bound is inclusive")
	})

	t.Run("Module Threshold Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.ThresholdsCfg.HardwareThreshold = 2
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thresholds.hardware_threshold")
	})

	t.Run("Scan Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.ScanCfg.InterviewType = "invalid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interview_type")

		cfg = NewDefaultConfig()
		cfg.ScanCfg.IntervalSeconds = 0
		assert.Error(t, cfg.Validate())

		cfg = NewDefaultConfig()
		cfg.ScanCfg.ModuleTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Report Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.ReportCfg.Format = "sarif"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report.format")
	})
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("should load overrides from yaml", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")

		yamlConfig := []byte(`
scan:
  interval_seconds: 5
  risk_threshold: 0.7
weights:
  process_risk: 0.4
  overlay_risk: 0.1
  audio_risk: 0.1
  hardware_risk: 0.2
  vm_risk: 0.2
monitoring:
  enable_vm_detection: false
  collect_baseline: false
whitelist:
  processes: ["zoom.exe"]
  trust_baseline: true
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Scan().IntervalSeconds)
		assert.Equal(t, 0.7, cfg.Scan().RiskThreshold)
		assert.Equal(t, 0.4, cfg.Weights().ProcessRisk)
		assert.False(t, cfg.Monitoring().EnableVMDetection)
		assert.False(t, cfg.Monitoring().CollectBaseline)
		assert.True(t, cfg.Monitoring().EnableAudioMonitoring, "Untouched keys keep their defaults")
		assert.Equal(t, []string{"zoom.exe"}, cfg.Whitelist().Processes)
		assert.True(t, cfg.Whitelist().TrustBaseline)
	})

	t.Run("should reject weights that do not sum to one", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("weights.vm_risk", 0.9)

		cfg, err := NewConfigFromViper(v)
		assert.Nil(t, cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidWeights)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("should bind the database url from the environment", func(t *testing.T) {
		t.Setenv("VIGIL_DATABASE_URL", "postgres://vigil@localhost/vigil")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "postgres://vigil@localhost/vigil", cfg.Database().URL)
	})

	t.Run("should expand home directory paths", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		v := viper.New()
		SetDefaults(v)
		v.Set("report.output_path", "~/reports/latest.json")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Report().OutputPath, "~")
		assert.Contains(t, cfg.Report().OutputPath, "reports/latest.json")
	})
}
