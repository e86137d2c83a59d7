package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoundsToKilograms(t *testing.T) {
	assert.InDelta(t, 68.0, PoundsToKilograms(150), 0.05)
	assert.InDelta(t, 0.0, PoundsToKilograms(0), 0.0001)
}

func TestInchesToCentimetres(t *testing.T) {
	assert.InDelta(t, 177.8, InchesToCentimetres(70), 0.0001)
}

func TestKilogramsToPounds(t *testing.T) {
	assert.InDelta(t, 154.3, KilogramsToPounds(70), 0.0001)
}

func TestProfilePatch_ToMetric(t *testing.T) {
	h, w, tw := 70.0, 150.0, 140.0
	patch := ProfilePatch{Height: &h, Weight: &w, TargetWeight: &tw}

	t.Run("Imperial_Converted", func(t *testing.T) {
		out := patch.ToMetric(UnitsImperial)
		assert.InDelta(t, 177.8, *out.Height, 0.0001)
		assert.InDelta(t, 68.0, *out.Weight, 0.05)
		assert.InDelta(t, 63.5, *out.TargetWeight, 0.05)
		// original untouched
		assert.Equal(t, 70.0, *patch.Height)
	})

	t.Run("Metric_Unchanged", func(t *testing.T) {
		out := patch.ToMetric(UnitsMetric)
		assert.Equal(t, 70.0, *out.Height)
	})
}
