package schemas_test

import (
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// Absent module results must serialize as null, not be dropped.
func TestDetectionReport_NullableSections(t *testing.T) {
	r := schemas.DetectionReport{
		ReportID:            "r-1",
		SessionID:           "s-1",
		Timestamp:           reportTime(t),
		ScanNumber:          3,
		SuspiciousProcesses: []schemas.ProcessSuspicion{},
		HiddenOverlays:      []schemas.OverlayWindow{},
		ModuleFailures:      []string{},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "hardware_suspicion")
	assert.Nil(t, raw["hardware_suspicion"])
	assert.Contains(t, raw, "vm_detection")
	assert.Nil(t, raw["vm_detection"])
	assert.Equal(t, []interface{}{}, raw["module_failures"])
	assert.Equal(t, sessionStart, raw["timestamp"])
}
