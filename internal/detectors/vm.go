package detectors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/vigil/api/schemas"
	"github.com/xkilldash9x/vigil/internal/config"
	"github.com/xkilldash9x/vigil/internal/evidence"
)

// vmVerdictCutoff is the confidence a fingerprint must strictly exceed to be
// reported as a virtual machine.
const vmVerdictCutoff = 0.7

// VMFingerprint is the raw host evidence collected by a platform VM probe.
type VMFingerprint struct {
	HypervisorPresent bool
	// HypervisorVendor is empty when the vendor leaf could not be read.
	HypervisorVendor string
	// VendorAmbiguous marks vendors that also appear on bare-metal hosts
	// running virtualization tooling, such as Hyper-V.
	VendorAmbiguous bool
	SystemModel     string
	Hostname        string
	// MACAddresses maps interface name to hardware address.
	MACAddresses map[string]string
}

type macVendor struct {
	prefix string
	vendor string
}

var vmOUIs = []macVendor{
	{"00:05:69", "VMware"}, {"00:0C:29", "VMware"}, {"00:1C:14", "VMware"}, {"00:50:56", "VMware"},
	{"08:00:27", "VirtualBox"},
	{"52:54:00", "QEMU/KVM"},
	{"00:16:3E", "Xen"},
	{"00:1C:42", "Parallels"},
}

var suspiciousSystemStrings = []string{
	"virtualbox", "vmware", "qemu", "kvm",
	"oracle", "innotek", "xen", "bochs",
	"parallels", "bhyve",
	"virtual machine", "hvm dom",
}

// EvaluateVM scores a fingerprint. Weights come from configuration so the
// ambiguous vendor weight can be tuned without a release.
func EvaluateVM(fp VMFingerprint, w config.VMHeuristics) schemas.VMCheckResult {
	var acc evidence.Accumulator

	if fp.HypervisorPresent {
		acc.Add(true, w.HypervisorBitWeight, "CPUID hypervisor bit set")
		if fp.HypervisorVendor != "" {
			if fp.VendorAmbiguous {
				acc.Add(true, w.AmbiguousVendorWeight, fmt.Sprintf(
					"Hypervisor vendor: %s (ambiguous, could be a virtualization host)", fp.HypervisorVendor))
			} else {
				acc.Add(true, w.VendorWeight, "Hypervisor vendor detected: "+fp.HypervisorVendor)
			}
		}
	}

	model := strings.ToLower(fp.SystemModel)
	acc.Add(model != "" && containsAnyOf(model, suspiciousSystemStrings),
		w.SystemModelWeight, "Suspicious system model: "+fp.SystemModel)

	host := strings.ToLower(fp.Hostname)
	acc.Add(strings.Contains(host, "virtual") || strings.Contains(host, "qemu"),
		w.HostnameWeight, "Suspicious hostname: "+fp.Hostname)

	result := acc.Result()

	// Every VM adapter is listed, but the adapter check contributes its weight once.
	if macReasons := vmAdapterReasons(fp.MACAddresses); len(macReasons) > 0 {
		acc.Add(true, w.MACWeight, macReasons[0])
		result = acc.Result()
		result.Reasons = append(result.Reasons, macReasons[1:]...)
	}

	return schemas.VMCheckResult{
		IsVM:            result.Exceeds(vmVerdictCutoff),
		Reasons:         result.Reasons,
		ConfidenceScore: result.Confidence,
	}
}

func vmAdapterReasons(macs map[string]string) []string {
	ifaces := make([]string, 0, len(macs))
	for name := range macs {
		ifaces = append(ifaces, name)
	}
	sort.Strings(ifaces)

	var reasons []string
	for _, name := range ifaces {
		mac := strings.ToUpper(macs[name])
		for _, oui := range vmOUIs {
			if strings.HasPrefix(mac, oui.prefix) {
				reasons = append(reasons, fmt.Sprintf("VM network adapter (%s) detected on %s", oui.vendor, name))
			}
		}
	}
	return reasons
}

func containsAnyOf(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
