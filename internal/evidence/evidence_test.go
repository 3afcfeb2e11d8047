package evidence

import (
	"math"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulate(t *testing.T) {
	t.Parallel()

	t.Run("sums matched weights and keeps evaluation order", func(t *testing.T) {
		t.Parallel()
		res := Accumulate([]Check{
			{Matched: true, Weight: 0.1, Reason: "hypervisor bit"},
			{Matched: false, Weight: 0.5, Reason: "never"},
			{Matched: true, Weight: 0.3, Reason: "hostname"},
		})

		assert.InDelta(t, 0.4, res.Confidence, 1e-9)
		assert.Equal(t, []string{"hypervisor bit", "hostname"}, res.Reasons)
		assert.True(t, res.Matched())
	})

	t.Run("clamps additive overflow to one", func(t *testing.T) {
		t.Parallel()
		res := Accumulate([]Check{
			{Matched: true, Weight: 0.8, Reason: "vendor"},
			{Matched: true, Weight: 0.6, Reason: "model"},
			{Matched: true, Weight: 0.5, Reason: "mac"},
		})

		assert.Equal(t, 1.0, res.Confidence)
		assert.Len(t, res.Reasons, 3, "Clamping must not drop reasons")
	})

	t.Run("empty input yields zero confidence and no reasons", func(t *testing.T) {
		t.Parallel()
		res := Accumulate(nil)
		assert.Zero(t, res.Confidence)
		assert.Empty(t, res.Reasons)
		assert.False(t, res.Matched())
	})
}

func TestResultExceeds(t *testing.T) {
	t.Parallel()
	assert.False(t, Result{Confidence: 0.7}.Exceeds(0.7), "The cutoff is strict")
	assert.True(t, Result{Confidence: 0.71}.Exceeds(0.7))
}

func TestAccumulatorResultIsolation(t *testing.T) {
	t.Parallel()
	var acc Accumulator
	acc.Add(true, 0.2, "first")
	snapshot := acc.Result()
	acc.Add(true, 0.2, "second")

	assert.Equal(t, []string{"first"}, snapshot.Reasons, "Earlier results must not see later additions")
	assert.InDelta(t, 0.4, acc.Result().Confidence, 1e-9)
}

func TestClamp(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Clamp(-0.5))
	assert.Equal(t, 0.0, Clamp(math.NaN()))
	assert.Equal(t, 1.0, Clamp(math.Inf(1)))
	assert.Equal(t, 0.25, Clamp(0.25))
}

// FuzzAccumulate checks that confidence stays in the unit interval and that
// the reason list tracks matched checks for arbitrary inputs.
func FuzzAccumulate(f *testing.F) {
	f.Add([]byte("seed"))
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var checks []Check
		if err := consumer.CreateSlice(&checks); err != nil {
			return
		}

		res := Accumulate(checks)
		require.GreaterOrEqual(t, res.Confidence, 0.0)
		require.LessOrEqual(t, res.Confidence, 1.0)

		matched := 0
		for _, c := range checks {
			if c.Matched {
				matched++
			}
		}
		require.Len(t, res.Reasons, matched)
	})
}
