// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// ErrInvalidWeights is returned when the fusion weights do not sum to 1.0.
var ErrInvalidWeights = errors.New("weights must sum to 1.0")

// weightTolerance is how far the weight sum may drift from 1.0.
const weightTolerance = 0.01

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Report() ReportConfig
	Scan() ScanConfig
	Weights() WeightsConfig
	Thresholds() ThresholdsConfig
	Whitelist() WhitelistConfig
	Monitoring() MonitoringConfig
	Heuristics() HeuristicsConfig
}

// Config holds the entire application configuration. It is immutable once
// validated; nothing in a scan cycle writes to it.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	ReportCfg     ReportConfig     `mapstructure:"report" yaml:"report"`
	ScanCfg       ScanConfig       `mapstructure:"scan" yaml:"scan"`
	WeightsCfg    WeightsConfig    `mapstructure:"weights" yaml:"weights"`
	ThresholdsCfg ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`
	WhitelistCfg  WhitelistConfig  `mapstructure:"whitelist" yaml:"whitelist"`
	MonitoringCfg MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
	HeuristicsCfg HeuristicsConfig `mapstructure:"heuristics" yaml:"heuristics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }
func (c *Config) Report() ReportConfig         { return c.ReportCfg }
func (c *Config) Scan() ScanConfig             { return c.ScanCfg }
func (c *Config) Weights() WeightsConfig       { return c.WeightsCfg }
func (c *Config) Thresholds() ThresholdsConfig { return c.ThresholdsCfg }
func (c *Config) Whitelist() WhitelistConfig   { return c.WhitelistCfg }
func (c *Config) Monitoring() MonitoringConfig { return c.MonitoringCfg }
func (c *Config) Heuristics() HeuristicsConfig { return c.HeuristicsCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. An empty URL disables
// the postgres report sink.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// ReportConfig controls where the local report sinks write.
type ReportConfig struct {
	// Format is "json", "console" or "both".
	Format     string `mapstructure:"format" yaml:"format"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
}

// ScanConfig holds the cadence and the final verdict cutoff.
type ScanConfig struct {
	IntervalSeconds int           `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	RiskThreshold   float64       `mapstructure:"risk_threshold" yaml:"risk_threshold"`
	InterviewType   string        `mapstructure:"interview_type" yaml:"interview_type"`
	ModuleTimeout   time.Duration `mapstructure:"module_timeout" yaml:"module_timeout"`
	ParallelModules bool          `mapstructure:"parallel_modules" yaml:"parallel_modules"`
	// MaxCycles stops the loop after that many cycles. Zero runs until cancelled.
	MaxCycles int `mapstructure:"max_cycles" yaml:"max_cycles"`
}

// Interval returns the pause between two cycles.
func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// WeightsConfig holds the static fusion weights, one per module.
type WeightsConfig struct {
	ProcessRisk  float64 `mapstructure:"process_risk" yaml:"process_risk"`
	OverlayRisk  float64 `mapstructure:"overlay_risk" yaml:"overlay_risk"`
	AudioRisk    float64 `mapstructure:"audio_risk" yaml:"audio_risk"`
	HardwareRisk float64 `mapstructure:"hardware_risk" yaml:"hardware_risk"`
	VMRisk       float64 `mapstructure:"vm_risk" yaml:"vm_risk"`
}

// Sum returns the total of all five weights.
func (w WeightsConfig) Sum() float64 {
	return w.ProcessRisk + w.OverlayRisk + w.AudioRisk + w.HardwareRisk + w.VMRisk
}

// ThresholdsConfig holds module-local flagging cutoffs.
type ThresholdsConfig struct {
	ProcessThreshold  float64 `mapstructure:"process_threshold" yaml:"process_threshold"`
	HardwareThreshold float64 `mapstructure:"hardware_threshold" yaml:"hardware_threshold"`
	// AudioThreshold and OverlayThreshold are validated but unused: both
	// signals are presence-only.
	AudioThreshold   float64 `mapstructure:"audio_threshold" yaml:"audio_threshold"`
	OverlayThreshold float64 `mapstructure:"overlay_threshold" yaml:"overlay_threshold"`
}

// WhitelistConfig lists explicitly allowed processes.
type WhitelistConfig struct {
	// Processes are case-insensitive name substrings.
	Processes []string `mapstructure:"processes" yaml:"processes"`
	// Directories are case-insensitive executable path prefixes.
	Directories []string `mapstructure:"directories" yaml:"directories"`
	// TrustBaseline treats every process running at baseline capture as
	// known-legitimate.
	TrustBaseline bool `mapstructure:"trust_baseline" yaml:"trust_baseline"`
}

// MonitoringConfig toggles the detection modules and baseline collection.
type MonitoringConfig struct {
	EnableProcessMonitoring  bool `mapstructure:"enable_process_monitoring" yaml:"enable_process_monitoring"`
	EnableHardwareMonitoring bool `mapstructure:"enable_hardware_monitoring" yaml:"enable_hardware_monitoring"`
	EnableAudioMonitoring    bool `mapstructure:"enable_audio_monitoring" yaml:"enable_audio_monitoring"`
	EnableOverlayMonitoring  bool `mapstructure:"enable_overlay_monitoring" yaml:"enable_overlay_monitoring"`
	EnableVMDetection        bool `mapstructure:"enable_vm_detection" yaml:"enable_vm_detection"`
	CollectBaseline          bool `mapstructure:"collect_baseline" yaml:"collect_baseline"`
	BaselineDurationSeconds  int  `mapstructure:"baseline_duration_seconds" yaml:"baseline_duration_seconds"`
	ContinueOnModuleFailure  bool `mapstructure:"continue_on_module_failure" yaml:"continue_on_module_failure"`
}

// BaselineSettle returns how long to wait after the baseline capture.
func (m MonitoringConfig) BaselineSettle() time.Duration {
	return time.Duration(m.BaselineDurationSeconds) * time.Second
}

// HeuristicsConfig holds the time-sensitive naming lists and VM weights. They
// are data, not logic, and are expected to be revised between releases.
type HeuristicsConfig struct {
	SuspiciousNames   []string     `mapstructure:"suspicious_names" yaml:"suspicious_names"`
	CommonLegitApps   []string     `mapstructure:"common_legit_apps" yaml:"common_legit_apps"`
	CoreOSPaths       []string     `mapstructure:"core_os_paths" yaml:"core_os_paths"`
	ScreenCaptureApps []string     `mapstructure:"screen_capture_apps" yaml:"screen_capture_apps"`
	VM                VMHeuristics `mapstructure:"vm" yaml:"vm"`
}

// VMHeuristics holds the virtualization fingerprint weights.
type VMHeuristics struct {
	HypervisorBitWeight   float64 `mapstructure:"hypervisor_bit_weight" yaml:"hypervisor_bit_weight"`
	AmbiguousVendorWeight float64 `mapstructure:"ambiguous_vendor_weight" yaml:"ambiguous_vendor_weight"`
	VendorWeight          float64 `mapstructure:"vendor_weight" yaml:"vendor_weight"`
	SystemModelWeight     float64 `mapstructure:"system_model_weight" yaml:"system_model_weight"`
	HostnameWeight        float64 `mapstructure:"hostname_weight" yaml:"hostname_weight"`
	MACWeight             float64 `mapstructure:"mac_weight" yaml:"mac_weight"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vigil")
	v.SetDefault("logger.log_file", "vigil.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Report --
	v.SetDefault("report.format", "both")
	v.SetDefault("report.output_path", "detection_report.json")

	// -- Scan --
	v.SetDefault("scan.interval_seconds", 30)
	v.SetDefault("scan.risk_threshold", 0.5)
	v.SetDefault("scan.interview_type", "coding")
	v.SetDefault("scan.module_timeout", "20s")
	v.SetDefault("scan.parallel_modules", false)
	v.SetDefault("scan.max_cycles", 0)

	// -- Weights --
	v.SetDefault("weights.process_risk", 0.30)
	v.SetDefault("weights.overlay_risk", 0.20)
	v.SetDefault("weights.audio_risk", 0.10)
	v.SetDefault("weights.hardware_risk", 0.15)
	v.SetDefault("weights.vm_risk", 0.25)

	// -- Thresholds --
	v.SetDefault("thresholds.process_threshold", 0.6)
	v.SetDefault("thresholds.hardware_threshold", 0.5)
	v.SetDefault("thresholds.audio_threshold", 0.3)
	v.SetDefault("thresholds.overlay_threshold", 0.4)

	// -- Whitelist --
	v.SetDefault("whitelist.processes", []string{
		"code.exe", "vscode.exe", "chrome.exe", "firefox.exe", "msedge.exe",
	})
	v.SetDefault("whitelist.directories", []string{
		`C:\Program Files\Git`, `C:\Windows\System32`, "/usr/bin", "/Applications",
	})
	v.SetDefault("whitelist.trust_baseline", false)

	// -- Monitoring --
	v.SetDefault("monitoring.enable_process_monitoring", true)
	v.SetDefault("monitoring.enable_hardware_monitoring", true)
	v.SetDefault("monitoring.enable_audio_monitoring", true)
	v.SetDefault("monitoring.enable_overlay_monitoring", true)
	v.SetDefault("monitoring.enable_vm_detection", true)
	v.SetDefault("monitoring.collect_baseline", true)
	v.SetDefault("monitoring.baseline_duration_seconds", 10)
	v.SetDefault("monitoring.continue_on_module_failure", true)

	// -- Heuristics --
	v.SetDefault("heuristics.suspicious_names", []string{
		"cluely", "interview", "gpt", "chatgpt", "llm", "copilot",
		"aiassistant", "ai-assistant", "interview-bot", "interview-ai",
	})
	v.SetDefault("heuristics.common_legit_apps", []string{
		// Browsers
		"explorer.exe", "chrome.exe", "firefox.exe", "msedge.exe",
		"msedgewebview2.exe", "brave.exe", "opera.exe",
		// Communication
		"discord.exe", "slack.exe", "teams.exe", "zoom.exe",
		// Development
		"code.exe", "vscode.exe", "visual studio",
		// Capture and streaming
		"sharex.exe", "obs", "obs64.exe", "streamlabs",
		// Gaming
		"steam.exe", "steamwebhelper.exe",
		// Windows shell
		"svchost.exe", "searchhost.exe", "applicationframehost.exe",
		"shellexperiencehost.exe", "systemsettings.exe",
		// Peripherals
		"camera hub.exe", "elgato",
	})
	v.SetDefault("heuristics.core_os_paths", []string{
		`c:\windows\system32`, `c:\windows\syswow64`,
	})
	v.SetDefault("heuristics.screen_capture_apps", []string{
		"obs", "zoom", "teams", "discord", "slack", "chrome", "firefox",
		"cluely", "interview", "assistant", "helper",
	})
	v.SetDefault("heuristics.vm.hypervisor_bit_weight", 0.1)
	v.SetDefault("heuristics.vm.ambiguous_vendor_weight", 0.2)
	v.SetDefault("heuristics.vm.vendor_weight", 0.8)
	v.SetDefault("heuristics.vm.system_model_weight", 0.6)
	v.SetDefault("heuristics.vm.hostname_weight", 0.3)
	v.SetDefault("heuristics.vm.mac_weight", 0.5)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("database.url", "VIGIL_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in user supplied file paths.
func (c *Config) expandPaths() error {
	logFile, err := homedir.Expand(c.LoggerCfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to expand logger.log_file: %w", err)
	}
	c.LoggerCfg.LogFile = logFile

	output, err := homedir.Expand(c.ReportCfg.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to expand report.output_path: %w", err)
	}
	c.ReportCfg.OutputPath = output
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.WeightsCfg.Validate(); err != nil {
		return err
	}
	if err := c.ScanCfg.Validate(); err != nil {
		return err
	}
	if err := c.ThresholdsCfg.Validate(); err != nil {
		return err
	}
	if c.MonitoringCfg.BaselineDurationSeconds < 0 {
		return fmt.Errorf("monitoring.baseline_duration_seconds must not be negative")
	}
	switch c.ReportCfg.Format {
	case "json", "console", "both":
	default:
		return fmt.Errorf("report.format must be one of json, console, both; got %q", c.ReportCfg.Format)
	}
	return nil
}

// Validate checks the fusion weights.
func (w WeightsConfig) Validate() error {
	for name, weight := range map[string]float64{
		"process_risk":  w.ProcessRisk,
		"overlay_risk":  w.OverlayRisk,
		"audio_risk":    w.AudioRisk,
		"hardware_risk": w.HardwareRisk,
		"vm_risk":       w.VMRisk,
	} {
		if weight < 0 || math.IsNaN(weight) {
			return fmt.Errorf("weights.%s must not be negative", name)
		}
	}
	if sum := w.Sum(); math.IsNaN(sum) || math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w, got %.2f", ErrInvalidWeights, sum)
	}
	return nil
}

// Validate checks the scan settings.
func (s ScanConfig) Validate() error {
	if s.RiskThreshold < 0.0 || s.RiskThreshold > 1.0 || math.IsNaN(s.RiskThreshold) {
		return fmt.Errorf("scan.risk_threshold must be between 0.0 and 1.0")
	}
	if s.IntervalSeconds <= 0 {
		return fmt.Errorf("scan.interval_seconds must be a positive integer")
	}
	if s.ModuleTimeout <= 0 {
		return fmt.Errorf("scan.module_timeout must be a positive duration")
	}
	if s.MaxCycles < 0 {
		return fmt.Errorf("scan.max_cycles must not be negative")
	}
	switch s.InterviewType {
	case "coding", "behavioral", "system_design", "general":
	default:
		return fmt.Errorf("scan.interview_type %q is not supported", s.InterviewType)
	}
	return nil
}

// Validate checks that every module-local cutoff lies in [0,1].
func (t ThresholdsConfig) Validate() error {
	for name, value := range map[string]float64{
		"process_threshold":  t.ProcessThreshold,
		"hardware_threshold": t.HardwareThreshold,
		"audio_threshold":    t.AudioThreshold,
		"overlay_threshold":  t.OverlayThreshold,
	} {
		if value < 0.0 || value > 1.0 || math.IsNaN(value) {
			return fmt.Errorf("thresholds.%s must be between 0.0 and 1.0", name)
		}
	}
	return nil
}
