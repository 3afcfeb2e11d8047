package schemas_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// -- Test Helpers --

// sessionStart is the report timestamp shared by the schema tests. The
// fractional part checks that marshalling keeps sub-second precision.
const sessionStart = "2026-03-14T09:30:00.5Z"

func reportTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, sessionStart)
	require.NoError(t, err)
	return ts
}
