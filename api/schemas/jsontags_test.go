package schemas_test

import (
	"reflect"
	"testing"

	// Third party libraries for expressive and robust assertions.
	"github.com/stretchr/testify/assert"

	// Import the package we are testing.
	"github.com/xkilldash9x/vigil/api/schemas"
)

// TestStructJSONTags uses reflection to verify that the `json` tags on struct fields
// are correct. Report consumers parse these files, so the names are a contract.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "DetectionReport",
			structRef: schemas.DetectionReport{},
			expectedTags: map[string]string{
				"ReportID":                "report_id",
				"SessionID":               "session_id",
				"Timestamp":               "timestamp",
				"ScanNumber":              "scan_number",
				"SuspiciousProcesses":     "suspicious_processes",
				"HiddenOverlays":          "hidden_overlays",
				"AudioMonitoringDetected": "audio_monitoring_detected",
				"HardwareSuspicion":       "hardware_suspicion",
				"VMDetection":             "vm_detection",
				"OverallRiskScore":        "overall_risk_score",
				"ExceedsThreshold":        "exceeds_threshold",
				"ModuleFailures":          "module_failures",
			},
		},
		{
			name:      "ProcessSuspicion",
			structRef: schemas.ProcessSuspicion{},
			expectedTags: map[string]string{
				"PID":                  "pid",
				"Name":                 "name",
				"Path":                 "path",
				"RiskScore":            "risk_score",
				"Reasons":              "reasons",
				"StartedDuringSession": "started_during_session",
				"IsWhitelisted":        "is_whitelisted",
			},
		},
		{
			name:      "HardwareSuspicionReport",
			structRef: schemas.HardwareSuspicionReport{},
			expectedTags: map[string]string{
				"RiskScore":           "risk_score",
				"DisplayCount":        "display_count",
				"HasVirtualDisplay":   "has_virtual_display",
				"HasHDMISplitter":     "has_hdmi_splitter",
				"RemoteDesktopActive": "remote_desktop_active",
				"Flags":               "flags",
			},
		},
		{
			name:      "VMCheckResult",
			structRef: schemas.VMCheckResult{},
			expectedTags: map[string]string{
				"IsVM":            "is_vm",
				"Reasons":         "reasons",
				"ConfidenceScore": "confidence_score",
			},
		},
		{
			name:      "OverlayWindow",
			structRef: schemas.OverlayWindow{},
			expectedTags: map[string]string{
				"Handle":        "handle",
				"X":             "x",
				"Y":             "y",
				"Width":         "width",
				"Height":        "height",
				"OwnerPID":      "owner_pid",
				"IsTransparent": "is_transparent",
				"IsTopmost":     "is_topmost",
			},
		},
	}

	for _, tc := range testCases {
		// Capture the range variable to avoid issues in parallel tests.
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			structType := reflect.TypeOf(tt.structRef)
			actualTags := make(map[string]string)

			// Go through all the fields in the struct.
			for i := 0; i < structType.NumField(); i++ {
				field := structType.Field(i)
				jsonTag := field.Tag.Get("json")
				// Only add fields that actually have a json tag.
				if jsonTag != "" {
					actualTags[field.Name] = jsonTag
				}
			}

			// This also catches fields missing from expectedTags.
			assert.Equal(t, tt.expectedTags, actualTags, "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}
