package nutrition

import (
	"math"
	"time"

	"alcyxob/nutrition-onboarding/internal/domain"
)

const (
	DefaultDurationWeeks = 24
	MinDurationWeeks     = 4
	MaxDurationWeeks     = 52

	defaultWeeklyRateKg = 0.5

	baseSuccessRate = 80
	minSuccessRate  = 75
	maxSuccessRate  = 92
	cheatDayBonus   = 3
)

var weeklyRatesKg = map[domain.WeightChangeRate]float64{
	domain.RateLose1:    1.0,
	domain.RateLose075:  0.75,
	domain.RateLose05:   0.5,
	domain.RateLose025:  0.25,
	domain.RateMaintain: 0,
	domain.RateGain025:  0.25,
	domain.RateGain05:   0.5,
}

// Success rate deltas are motivational display values, not a fitted model.
var (
	goalSuccessDelta = map[domain.FitnessGoal]int{
		domain.GoalFatLoss:    2,
		domain.GoalMuscleGain: 1,
		domain.GoalMaintain:   6,
		domain.GoalBalanced:   4,
	}
	rateSuccessDelta = map[domain.WeightChangeRate]int{
		domain.RateLose025:  6,
		domain.RateLose05:   4,
		domain.RateLose075:  -2,
		domain.RateLose1:    -6,
		domain.RateMaintain: 2,
		domain.RateGain025:  6,
		domain.RateGain05:   4,
	}
)

// WeeklyRate returns the kg/week for a rate bucket. Unknown buckets get 0.5.
func WeeklyRate(rate domain.WeightChangeRate) float64 {
	if kg, ok := weeklyRatesKg[rate.Normalize()]; ok {
		return kg
	}
	return defaultWeeklyRateKg
}

// EstimateDurationWeeks is ceil(|current-target| / rate) clamped to [4, 52].
// Missing or equal weights, or a zero rate, give DefaultDurationWeeks.
func EstimateDurationWeeks(current, target *float64, rate domain.WeightChangeRate) int {
	if current == nil || target == nil || *current == *target {
		return DefaultDurationWeeks
	}
	kgPerWeek := WeeklyRate(rate)
	if kgPerWeek <= 0 {
		return DefaultDurationWeeks
	}
	diff := math.Abs(*current - *target)
	if math.IsNaN(diff) {
		return DefaultDurationWeeks
	}
	weeks := math.Ceil(diff / kgPerWeek)
	if weeks < MinDurationWeeks {
		return MinDurationWeeks
	}
	if weeks > MaxDurationWeeks || math.IsInf(weeks, 0) {
		return MaxDurationWeeks
	}
	return int(weeks)
}

// EstimateSuccessRate is a presentation heuristic: 80 plus fixed goal, rate and
// cheat day deltas, clamped to [75, 92].
func EstimateSuccessRate(goal domain.FitnessGoal, rate domain.WeightChangeRate, cheatDay bool) int {
	score := baseSuccessRate + goalSuccessDelta[goal] + rateSuccessDelta[rate.Normalize()]
	if cheatDay {
		score += cheatDayBonus
	}
	return clampInt(score, minSuccessRate, maxSuccessRate)
}

// ProjectedCompletionDate is the UTC date weeks after now.
func ProjectedCompletionDate(now time.Time, weeks int) time.Time {
	y, m, d := now.UTC().AddDate(0, 0, weeks*7).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalculateMicros derives micronutrient targets from calories and fat grams.
func CalculateMicros(calories int, fatGrams int) domain.Micros {
	c := float64(calories)
	sugar := int(math.Round(c * 0.10 / 4))
	if sugar > 50 {
		sugar = 50
	}
	return domain.Micros{
		Fiber:         int(math.Round(14 * c / 1000)),
		Sugar:         sugar,
		SodiumMg:      2300,
		PotassiumMg:   3500,
		SaturatedFat:  int(math.Round(float64(fatGrams) * 0.33)),
		CholesterolMg: 300,
	}
}

// Derive computes every derived metric for p. When weight, height, age or
// gender is missing it returns FallbackCalories with a balanced split and
// Fallback set.
func Derive(p domain.UserProfile, now time.Time) domain.DerivedMetrics {
	out := domain.DerivedMetrics{
		EstimatedDurationWeeks: EstimateDurationWeeks(p.Weight, p.TargetWeight, p.WeightChangeRate),
		SuccessRate:            EstimateSuccessRate(p.FitnessGoal, p.WeightChangeRate, p.CheatDayEnabled),
		ComputedAt:             now.UTC(),
	}
	out.ProjectedCompletionDate = ProjectedCompletionDate(now, out.EstimatedDurationWeeks)

	bmr := 0.0
	if age, ok := resolveAge(p, now); ok && p.Weight != nil && p.Height != nil && p.Gender != "" {
		bmr = BMR(*p.Weight, *p.Height, age, p.Gender)
	}
	if bmr <= 0 {
		out.Fallback = true
		out.TDEE = FallbackCalories
		out.DailyCalories = FallbackCalories
		out.Macros = CalculateMacros(FallbackCalories, domain.GoalBalanced)
		out.Micros = CalculateMicros(FallbackCalories, out.Macros.Fat)
		return out
	}

	out.BMR = bmr
	out.TDEE = TDEE(bmr, ActivityMultiplier(p.ActivityLevel))
	out.DailyCalories = ApplyGoalAdjustment(out.TDEE, p.FitnessGoal)
	if floor := MinimumCalories(p.Gender); out.DailyCalories < floor {
		out.DailyCalories = floor
	}
	out.Macros = CalculateMacros(out.DailyCalories, p.FitnessGoal)
	out.Micros = CalculateMicros(out.DailyCalories, out.Macros.Fat)
	return out
}

func resolveAge(p domain.UserProfile, now time.Time) (int, bool) {
	if p.Age != nil {
		return *p.Age, *p.Age > 0
	}
	if p.DateOfBirth != "" {
		return AgeFromDateOfBirth(p.DateOfBirth, now)
	}
	return 0, false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
