// Package nutrition computes energy and macronutrient targets from a profile.
// Everything here is pure; the only time input is the explicit now argument.
package nutrition

import (
	"math"
	"strings"
	"time"

	"alcyxob/nutrition-onboarding/internal/domain"
)

const (
	// FallbackCalories is used when the profile lacks inputs for BMR.
	FallbackCalories = 2000

	fatLossDeficit    = 500
	muscleGainSurplus = 300

	kcalPerGramProtein = 4
	kcalPerGramCarbs   = 4
	kcalPerGramFat     = 9

	defaultActivityMultiplier = 1.2
)

var activityMultipliers = map[domain.ActivityLevel]float64{
	domain.ActivitySedentary: 1.2,
	domain.ActivityLight:     1.375,
	domain.ActivityModerate:  1.55,
	domain.ActivityVery:      1.725,
	domain.ActivityExtra:     1.9,
}

// macroSplit is the protein/carbs/fat share of daily calories.
type macroSplit struct {
	protein, carbs, fat float64
}

var (
	balancedSplit = macroSplit{0.30, 0.40, 0.30}
	macroSplits   = map[domain.FitnessGoal]macroSplit{
		domain.GoalFatLoss:    {0.30, 0.40, 0.30},
		domain.GoalMuscleGain: {0.30, 0.45, 0.25},
	}
)

// BMR returns the Mifflin-St Jeor basal metabolic rate in kcal/day.
// It returns 0 when weight, height or age is not a positive finite number;
// callers treat 0 as "inputs missing" and use FallbackCalories.
func BMR(weightKg, heightCm float64, age int, gender domain.Gender) float64 {
	if !positiveFinite(weightKg) || !positiveFinite(heightCm) || age <= 0 {
		return 0
	}
	bmr := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if gender == domain.GenderMale {
		return bmr + 5
	}
	return bmr - 161
}

// ActivityMultiplier maps an activity level to its TDEE factor. Unknown levels get 1.2.
func ActivityMultiplier(level domain.ActivityLevel) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return defaultActivityMultiplier
}

// TDEE is round(bmr * multiplier).
func TDEE(bmr, multiplier float64) int {
	return int(math.Round(bmr * multiplier))
}

// ApplyGoalAdjustment subtracts the fat loss deficit or adds the muscle gain surplus.
func ApplyGoalAdjustment(tdee int, goal domain.FitnessGoal) int {
	switch goal {
	case domain.GoalFatLoss:
		return tdee - fatLossDeficit
	case domain.GoalMuscleGain:
		return tdee + muscleGainSurplus
	default:
		return tdee
	}
}

// CalculateMacros splits calories into grams of protein, carbs and fat by goal.
// Each macro is rounded independently, so the kcal total can drift from
// calories by up to 8.5 kcal.
func CalculateMacros(calories int, goal domain.FitnessGoal) domain.Macros {
	split, ok := macroSplits[goal]
	if !ok {
		split = balancedSplit
	}
	c := float64(calories)
	return domain.Macros{
		Protein: int(math.Round(c * split.protein / kcalPerGramProtein)),
		Carbs:   int(math.Round(c * split.carbs / kcalPerGramCarbs)),
		Fat:     int(math.Round(c * split.fat / kcalPerGramFat)),
	}
}

// MacroCalories is the energy contained in m.
func MacroCalories(m domain.Macros) int {
	return m.Protein*kcalPerGramProtein + m.Carbs*kcalPerGramCarbs + m.Fat*kcalPerGramFat
}

// MinimumCalories is the lowest daily target ever recommended for gender.
func MinimumCalories(gender domain.Gender) int {
	if gender == domain.GenderMale {
		return 1500
	}
	return 1200
}

// AgeFromDateOfBirth returns the age in whole years at now for a YYYY-MM-DD date.
func AgeFromDateOfBirth(dob string, now time.Time) (int, bool) {
	born, err := time.Parse("2006-01-02", strings.TrimSpace(dob))
	if err != nil {
		return 0, false
	}
	age := now.Year() - born.Year()
	if !sameOrAfterBirthday(now, born) {
		age--
	}
	if age < 0 || age > 130 {
		return 0, false
	}
	return age, true
}

func sameOrAfterBirthday(now, born time.Time) bool {
	if now.Month() != born.Month() {
		return now.Month() > born.Month()
	}
	return now.Day() >= born.Day()
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
