package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/nutrition-onboarding/internal/api"
	"alcyxob/nutrition-onboarding/internal/domain"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func referencePatch() domain.ProfilePatch {
	weight, height, age := 70.0, 175.0, 30
	gender := domain.GenderMale
	activity := domain.ActivityModerate
	goal := domain.GoalFatLoss
	return domain.ProfilePatch{
		Weight:        &weight,
		Height:        &height,
		Age:           &age,
		Gender:        &gender,
		ActivityLevel: &activity,
		FitnessGoal:   &goal,
	}
}

func TestRunCalc_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunCalc(&buf, referencePatch(), now, "json"))

	var got domain.DerivedMetrics
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2556, got.TDEE)
	assert.Equal(t, 2056, got.DailyCalories)
	assert.Equal(t, domain.Macros{Protein: 154, Carbs: 206, Fat: 69}, got.Macros)
	assert.False(t, got.Fallback)
}

func TestRunCalc_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunCalc(&buf, referencePatch(), now, "text"))
	out := buf.String()
	assert.Contains(t, out, "2056 kcal")
	assert.Contains(t, out, "154 g")
	assert.NotContains(t, out, "NOTE")
}

func TestRunCalc_ImperialAndFallback(t *testing.T) {
	imperial := domain.UnitsImperial
	weight := 176.0

	var buf bytes.Buffer
	require.NoError(t, RunCalc(&buf, domain.ProfilePatch{UnitSystem: &imperial, Weight: &weight}, now, "text"))
	assert.Contains(t, buf.String(), "NOTE")
	assert.Contains(t, buf.String(), "2000 kcal")
}

func TestRunCalc_RejectsInvalidProfile(t *testing.T) {
	p := referencePatch()
	young := 9
	p.Age = &young
	err := RunCalc(&bytes.Buffer{}, p, now, "text")
	assert.ErrorContains(t, err, "invalid profile")
}

func TestRunSteps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunSteps(&buf, "text"))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, domain.TotalSteps()+1)
	assert.Contains(t, lines[1], string(domain.StepPersonalInfo))
	assert.Contains(t, lines[len(lines)-1], string(domain.StepSummary))
}

func TestRunToken(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunToken(&buf, "s3cret", "u1", "ada@example.com", time.Hour, time.Now()))

	claims := &api.Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(buf.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)

	assert.Error(t, RunToken(&buf, "", "u1", "", time.Hour, time.Now()))
	assert.Error(t, RunToken(&buf, "s3cret", " ", "", time.Hour, time.Now()))
}
