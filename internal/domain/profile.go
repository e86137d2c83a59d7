package domain

import (
	"strings"
)

// Gender is the user's self-reported gender. Only "male" changes the BMR offset.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// DietType is the preferred eating style.
type DietType string

const (
	DietClassic       DietType = "classic"
	DietVegetarian    DietType = "vegetarian"
	DietVegan         DietType = "vegan"
	DietKeto          DietType = "keto"
	DietPaleo         DietType = "paleo"
	DietPescatarian   DietType = "pescatarian"
	DietMediterranean DietType = "mediterranean"
)

// ActivityLevel selects the TDEE multiplier.
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "sedentary"
	ActivityLight     ActivityLevel = "light"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityVery      ActivityLevel = "very"
	ActivityExtra     ActivityLevel = "extra"
)

// FitnessGoal drives calorie adjustment and macro split.
type FitnessGoal string

const (
	GoalFatLoss    FitnessGoal = "fat_loss"
	GoalMuscleGain FitnessGoal = "muscle_gain"
	GoalMaintain   FitnessGoal = "maintain"
	GoalBalanced   FitnessGoal = "balanced"
)

// WeightChangeRate is a weekly weight change bucket, e.g. "lose_0_5" for 0.5 kg/week.
type WeightChangeRate string

const (
	RateLose025  WeightChangeRate = "lose_0_25"
	RateLose05   WeightChangeRate = "lose_0_5"
	RateLose075  WeightChangeRate = "lose_0_75"
	RateLose1    WeightChangeRate = "lose_1"
	RateMaintain WeightChangeRate = "maintain"
	RateGain025  WeightChangeRate = "gain_0_25"
	RateGain05   WeightChangeRate = "gain_0_5"
)

// Normalize maps dotted aliases ("lose_0.5") onto the canonical underscore form.
func (r WeightChangeRate) Normalize() WeightChangeRate {
	return WeightChangeRate(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(r))), ".", "_"))
}

// UnitSystem is the user's display and input preference. Stored values are always metric.
type UnitSystem string

const (
	UnitsMetric   UnitSystem = "metric"
	UnitsImperial UnitSystem = "imperial"
)

var (
	validGenders        = map[Gender]bool{GenderMale: true, GenderFemale: true, GenderOther: true}
	validDietTypes      = map[DietType]bool{DietClassic: true, DietVegetarian: true, DietVegan: true, DietKeto: true, DietPaleo: true, DietPescatarian: true, DietMediterranean: true}
	validActivityLevels = map[ActivityLevel]bool{ActivitySedentary: true, ActivityLight: true, ActivityModerate: true, ActivityVery: true, ActivityExtra: true}
	validGoals          = map[FitnessGoal]bool{GoalFatLoss: true, GoalMuscleGain: true, GoalMaintain: true, GoalBalanced: true}
	validRates          = map[WeightChangeRate]bool{RateLose025: true, RateLose05: true, RateLose075: true, RateLose1: true, RateMaintain: true, RateGain025: true, RateGain05: true}
	validUnitSystems    = map[UnitSystem]bool{UnitsMetric: true, UnitsImperial: true}
)

func (g Gender) IsValid() bool { return validGenders[g] }
func (d DietType) IsValid() bool { return validDietTypes[d] }
func (a ActivityLevel) IsValid() bool { return validActivityLevels[a] }
func (f FitnessGoal) IsValid() bool { return validGoals[f] }
func (r WeightChangeRate) IsValid() bool { return validRates[r.Normalize()] }
func (u UnitSystem) IsValid() bool { return validUnitSystems[u] }

// UserProfile is the draft profile accumulated during onboarding.
// Height is in centimetres, weights are in kilograms.
type UserProfile struct {
	FirstName   string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName    string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	Age         *int   `bson:"age,omitempty" json:"age,omitempty"`
	DateOfBirth string `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"` // YYYY-MM-DD

	Height       *float64 `bson:"height,omitempty" json:"height,omitempty"`
	Weight       *float64 `bson:"weight,omitempty" json:"weight,omitempty"`
	TargetWeight *float64 `bson:"targetWeight,omitempty" json:"targetWeight,omitempty"`
	Gender       Gender   `bson:"gender,omitempty" json:"gender,omitempty"`

	DietType         DietType         `bson:"dietType,omitempty" json:"dietType,omitempty"`
	ActivityLevel    ActivityLevel    `bson:"activityLevel,omitempty" json:"activityLevel,omitempty"`
	FitnessGoal      FitnessGoal      `bson:"fitnessGoal,omitempty" json:"fitnessGoal,omitempty"`
	WeightChangeRate WeightChangeRate `bson:"weightChangeRate,omitempty" json:"weightChangeRate,omitempty"`
	UnitSystem       UnitSystem       `bson:"unitSystem,omitempty" json:"unitSystem,omitempty"`

	SleepQuality    string   `bson:"sleepQuality,omitempty" json:"sleepQuality,omitempty"`
	StressLevel     string   `bson:"stressLevel,omitempty" json:"stressLevel,omitempty"`
	EatingPattern   string   `bson:"eatingPattern,omitempty" json:"eatingPattern,omitempty"`
	MotivationTags  []string `bson:"motivationTags,omitempty" json:"motivationTags,omitempty"`
	Motivation      string   `bson:"motivation,omitempty" json:"motivation,omitempty"`
	CheatDayEnabled bool     `bson:"cheatDayEnabled" json:"cheatDayEnabled"`
}

// Clone returns a deep copy so callers can never mutate a store's snapshot.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.Age = cloneInt(p.Age)
	out.Height = cloneFloat(p.Height)
	out.Weight = cloneFloat(p.Weight)
	out.TargetWeight = cloneFloat(p.TargetWeight)
	if p.MotivationTags != nil {
		out.MotivationTags = append([]string(nil), p.MotivationTags...)
	}
	return out
}

// ProfilePatch is a partial update. Nil fields are left untouched; a non-nil
// MotivationTags replaces the whole set (an empty slice clears it).
type ProfilePatch struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Email       *string `json:"email,omitempty"`
	Age         *int    `json:"age,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`

	Height       *float64 `json:"height,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	TargetWeight *float64 `json:"targetWeight,omitempty"`
	Gender       *Gender  `json:"gender,omitempty"`

	DietType         *DietType         `json:"dietType,omitempty"`
	ActivityLevel    *ActivityLevel    `json:"activityLevel,omitempty"`
	FitnessGoal      *FitnessGoal      `json:"fitnessGoal,omitempty"`
	WeightChangeRate *WeightChangeRate `json:"weightChangeRate,omitempty"`
	UnitSystem       *UnitSystem       `json:"unitSystem,omitempty"`

	SleepQuality    *string  `json:"sleepQuality,omitempty"`
	StressLevel     *string  `json:"stressLevel,omitempty"`
	EatingPattern   *string  `json:"eatingPattern,omitempty"`
	MotivationTags  []string `json:"motivationTags,omitempty"`
	Motivation      *string  `json:"motivation,omitempty"`
	CheatDayEnabled *bool    `json:"cheatDayEnabled,omitempty"`
}

// Apply merges the patch into base and returns the result. base is not modified.
func (p ProfilePatch) Apply(base UserProfile) UserProfile {
	out := base.Clone()
	setString(&out.FirstName, p.FirstName)
	setString(&out.LastName, p.LastName)
	setString(&out.Email, p.Email)
	setString(&out.DateOfBirth, p.DateOfBirth)
	setString(&out.SleepQuality, p.SleepQuality)
	setString(&out.StressLevel, p.StressLevel)
	setString(&out.EatingPattern, p.EatingPattern)
	setString(&out.Motivation, p.Motivation)

	if p.Age != nil {
		out.Age = cloneInt(p.Age)
	}
	if p.Height != nil {
		out.Height = cloneFloat(p.Height)
	}
	if p.Weight != nil {
		out.Weight = cloneFloat(p.Weight)
	}
	if p.TargetWeight != nil {
		out.TargetWeight = cloneFloat(p.TargetWeight)
	}
	if p.Gender != nil {
		out.Gender = *p.Gender
	}
	if p.DietType != nil {
		out.DietType = *p.DietType
	}
	if p.ActivityLevel != nil {
		out.ActivityLevel = *p.ActivityLevel
	}
	if p.FitnessGoal != nil {
		out.FitnessGoal = *p.FitnessGoal
	}
	if p.WeightChangeRate != nil {
		out.WeightChangeRate = p.WeightChangeRate.Normalize()
	}
	if p.UnitSystem != nil {
		out.UnitSystem = *p.UnitSystem
	}
	if p.MotivationTags != nil {
		out.MotivationTags = uniqueTags(p.MotivationTags)
	}
	if p.CheatDayEnabled != nil {
		out.CheatDayEnabled = *p.CheatDayEnabled
	}
	return out
}

// ToMetric converts imperial measurements (inches, pounds) in the patch into
// centimetres and kilograms. Metric patches are returned unchanged.
func (p ProfilePatch) ToMetric(units UnitSystem) ProfilePatch {
	if units != UnitsImperial {
		return p
	}
	out := p
	if p.Height != nil {
		v := InchesToCentimetres(*p.Height)
		out.Height = &v
	}
	if p.Weight != nil {
		v := PoundsToKilograms(*p.Weight)
		out.Weight = &v
	}
	if p.TargetWeight != nil {
		v := PoundsToKilograms(*p.TargetWeight)
		out.TargetWeight = &v
	}
	return out
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
