package platform

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/cpuid/v2"
	pshost "github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/detectors"
)

// FingerprintCollector gathers the raw virtualization evidence of the host.
type FingerprintCollector func(ctx context.Context) (detectors.VMFingerprint, error)

// FingerprintVMProbe scores a collected fingerprint with the configured weights.
type FingerprintVMProbe struct {
	collect FingerprintCollector
	weights config.VMHeuristics
	logger  *zap.Logger
}

// NewFingerprintVMProbe creates the probe.
func NewFingerprintVMProbe(collect FingerprintCollector, weights config.VMHeuristics, logger *zap.Logger) *FingerprintVMProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FingerprintVMProbe{collect: collect, weights: weights, logger: logger.With(zap.String("component", "vm_probe"))}
}

// Detect implements schemas.VMProbe.
func (v *FingerprintVMProbe) Detect(ctx context.Context) (schemas.VMCheckResult, error) {
	fp, err := v.collect(ctx)
	if err != nil {
		return schemas.VMCheckResult{}, err
	}
	result := detectors.EvaluateVM(fp, v.weights)
	v.logger.Debug("VM fingerprint evaluated.",
		zap.Bool("hypervisor", fp.HypervisorPresent),
		zap.String("vendor", fp.HypervisorVendor),
		zap.Float64("confidence", result.ConfidenceScore))
	return result, nil
}

// HypervisorInfo reads the CPUID hypervisor bit and vendor leaf. Microsoft's
// hypervisor is ambiguous because it also runs under WSL2 and on Hyper-V hosts.
func HypervisorInfo() (present bool, vendor string, ambiguous bool) {
	if !cpuid.CPU.VM() {
		return false, "", false
	}
	vendor = cpuid.CPU.HypervisorVendorString
	if vendor == "" && cpuid.CPU.HypervisorVendorID != cpuid.VendorUnknown {
		vendor = cpuid.CPU.HypervisorVendorID.String()
	}
	return true, strings.TrimSpace(vendor), cpuid.CPU.HypervisorVendorID == cpuid.MSVM
}

// fingerprintSources are the host lookups behind a fingerprint collector.
type fingerprintSources struct {
	hypervisor  func() (present bool, vendor string, ambiguous bool)
	hostInfo    func(ctx context.Context) (*pshost.InfoStat, error)
	interfaces  func(ctx context.Context) (psnet.InterfaceStatList, error)
	productName func() string
}

// NewHostFingerprintCollector collects the fingerprint of the running host.
// productName may be nil where no DMI table is exposed.
func NewHostFingerprintCollector(productName func() string, logger *zap.Logger) FingerprintCollector {
	return newFingerprintCollector(fingerprintSources{
		hypervisor:  HypervisorInfo,
		hostInfo:    pshost.InfoWithContext,
		interfaces:  psnet.InterfacesWithContext,
		productName: productName,
	}, logger)
}

func newFingerprintCollector(src fingerprintSources, logger *zap.Logger) FingerprintCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (detectors.VMFingerprint, error) {
		present, vendor, ambiguous := src.hypervisor()
		fp := detectors.VMFingerprint{
			HypervisorPresent: present,
			HypervisorVendor:  vendor,
			VendorAmbiguous:   ambiguous,
			MACAddresses:      map[string]string{},
		}
		if src.productName != nil {
			fp.SystemModel = src.productName()
		}

		info, err := src.hostInfo(ctx)
		if err != nil {
			logger.Debug("Host info unavailable for VM fingerprint.", zap.Error(err))
		}
		if info != nil {
			fp.Hostname = info.Hostname
		}

		if ifaces, err := src.interfaces(ctx); err != nil {
			logger.Debug("Network interfaces unavailable for VM fingerprint.", zap.Error(err))
		} else {
			fp.MACAddresses = MACAddresses(ifaces)
		}
		return fp, ctx.Err()
	}
}

// MACAddresses maps every interface except loopback to its hardware address.
func MACAddresses(ifaces psnet.InterfaceStatList) map[string]string {
	macs := make(map[string]string, len(ifaces))
	for _, iface := range ifaces {
		if iface.Name == "lo" || iface.HardwareAddr == "" || isLoopback(iface.Flags) {
			continue
		}
		macs[iface.Name] = iface.HardwareAddr
	}
	return macs
}

func isLoopback(flags []string) bool {
	for _, f := range flags {
		if f == "loopback" {
			return true
		}
	}
	return false
}

// SysFS reads the DMI table from a sysfs mount.
type SysFS struct {
	root string
}

// NewSysFS creates a reader rooted at root, normally "/sys".
func NewSysFS(root string) SysFS { return SysFS{root: root} }

// ProductName returns the DMI product name, or "" when unreadable.
func (s SysFS) ProductName() string {
	data, err := os.ReadFile(filepath.Join(s.root, "class", "dmi", "id", "product_name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
