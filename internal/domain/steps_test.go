package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestOnboardingSteps_Order(t *testing.T) {
	steps := OnboardingSteps()
	require.Len(t, steps, TotalSteps())
	assert.Equal(t, StepPersonalInfo, steps[0].ID)
	assert.Equal(t, StepSummary, steps[len(steps)-1].ID)
	for i, s := range steps {
		assert.Equal(t, i+1, s.Number)
	}
}

func TestStepAt(t *testing.T) {
	t.Run("Success_FirstAndLast", func(t *testing.T) {
		s, err := StepAt(1)
		require.NoError(t, err)
		assert.Equal(t, StepPersonalInfo, s.ID)

		s, err = StepAt(TotalSteps())
		require.NoError(t, err)
		assert.Equal(t, StepSummary, s.ID)
	})

	t.Run("Error_OutOfRange", func(t *testing.T) {
		_, err := StepAt(0)
		assert.ErrorIs(t, err, ErrStepOutOfRange)
		_, err = StepAt(TotalSteps() + 1)
		assert.ErrorIs(t, err, ErrStepOutOfRange)
	})
}

func TestStep_Validate(t *testing.T) {
	ageStep, _ := StepAt(2)
	bodyStep, _ := StepAt(4)
	genderStep, _ := StepAt(3)

	t.Run("Error_AgeBelowMinimum", func(t *testing.T) {
		err := ageStep.Validate(UserProfile{Age: intPtr(12)})
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, StepAge, vErr.Step)
	})

	t.Run("Success_AgeAtMinimum", func(t *testing.T) {
		assert.NoError(t, ageStep.Validate(UserProfile{Age: intPtr(13)}))
	})

	t.Run("Success_DateOfBirthInsteadOfAge", func(t *testing.T) {
		assert.NoError(t, ageStep.Validate(UserProfile{DateOfBirth: "1990-04-01"}))
	})

	t.Run("Error_AgeMissing", func(t *testing.T) {
		assert.Error(t, ageStep.Validate(UserProfile{}))
	})

	t.Run("Error_NonPositiveWeight", func(t *testing.T) {
		err := bodyStep.Validate(UserProfile{Height: floatPtr(170), Weight: floatPtr(-1)})
		assert.Error(t, err)
	})

	t.Run("Success_BodyMetrics", func(t *testing.T) {
		err := bodyStep.Validate(UserProfile{Height: floatPtr(170), Weight: floatPtr(70)})
		assert.NoError(t, err)
	})

	t.Run("Error_UnknownGender", func(t *testing.T) {
		assert.Error(t, genderStep.Validate(UserProfile{Gender: "robot"}))
	})

	t.Run("Success_NoRulesStep", func(t *testing.T) {
		lifestyle, _ := StepAt(8)
		assert.NoError(t, lifestyle.Validate(UserProfile{}))
	})
}

func TestValidateProfile(t *testing.T) {
	t.Run("Success_EmptyProfile", func(t *testing.T) {
		assert.NoError(t, ValidateProfile(&UserProfile{}))
	})

	t.Run("Error_TargetWeightZero", func(t *testing.T) {
		assert.Error(t, ValidateProfile(&UserProfile{TargetWeight: floatPtr(0)}))
	})

	t.Run("Success_DottedRateAlias", func(t *testing.T) {
		assert.NoError(t, ValidateProfile(&UserProfile{WeightChangeRate: "lose_0.5"}))
	})
}
