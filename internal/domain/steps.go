package domain

import (
	"math"

	validation "github.com/jellydator/validation"
)

// MinimumAge is the youngest age accepted during onboarding.
const MinimumAge = 13

// StepID names an onboarding step. Order is defined by OnboardingSteps.
type StepID string

const (
	StepPersonalInfo  StepID = "personal_info"
	StepAge           StepID = "age"
	StepGender        StepID = "gender"
	StepBodyMetrics   StepID = "body_metrics"
	StepGoal          StepID = "goal"
	StepActivityLevel StepID = "activity_level"
	StepDietType      StepID = "diet_type"
	StepLifestyle     StepID = "lifestyle"
	StepMotivation    StepID = "motivation"
	StepSummary       StepID = "summary"
)

// Step describes one screen of the wizard. Validate only checks the fields
// the step collects.
type Step struct {
	ID       StepID `json:"id"`
	Number   int    `json:"number"`
	Title    string `json:"title"`
	validate func(p *UserProfile) error
}

// Validate returns a *ValidationError when the profile does not satisfy this step.
func (s Step) Validate(p UserProfile) error {
	if s.validate == nil {
		return nil
	}
	if err := s.validate(&p); err != nil {
		return &ValidationError{Step: s.ID, Err: err}
	}
	return nil
}

var onboardingSteps = []Step{
	{ID: StepPersonalInfo, Title: "What should we call you?", validate: validatePersonalInfo},
	{ID: StepAge, Title: "How old are you?", validate: validateAge},
	{ID: StepGender, Title: "What is your gender?", validate: validateGender},
	{ID: StepBodyMetrics, Title: "Your height and weight", validate: validateBodyMetrics},
	{ID: StepGoal, Title: "What is your goal?", validate: validateGoal},
	{ID: StepActivityLevel, Title: "How active are you?", validate: validateActivity},
	{ID: StepDietType, Title: "Pick a diet style", validate: validateDiet},
	{ID: StepLifestyle, Title: "Sleep, stress and eating habits"},
	{ID: StepMotivation, Title: "What motivates you?"},
	{ID: StepSummary, Title: "Your personalised plan", validate: ValidateProfile},
}

func init() {
	for i := range onboardingSteps {
		onboardingSteps[i].Number = i + 1
	}
}

// OnboardingSteps returns the ordered step descriptors.
func OnboardingSteps() []Step {
	return append([]Step(nil), onboardingSteps...)
}

// TotalSteps is the fixed number of steps in an onboarding run.
func TotalSteps() int {
	return len(onboardingSteps)
}

// StepAt returns the 1-based step n.
func StepAt(n int) (Step, error) {
	if n < 1 || n > len(onboardingSteps) {
		return Step{}, ErrStepOutOfRange
	}
	return onboardingSteps[n-1], nil
}

// ValidateProfile checks the invariants that hold for any stored profile:
// age at least MinimumAge, positive measurements and known enum values.
// Missing fields are allowed.
func ValidateProfile(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Age, validation.By(minimumAge)),
		validation.Field(&p.DateOfBirth, validation.Date("2006-01-02").Error("must be a date in YYYY-MM-DD format")),
		validation.Field(&p.Height, validation.By(positive)),
		validation.Field(&p.Weight, validation.By(positive)),
		validation.Field(&p.TargetWeight, validation.By(positive)),
		validation.Field(&p.Gender, validation.By(known(string(p.Gender), p.Gender.IsValid))),
		validation.Field(&p.DietType, validation.By(known(string(p.DietType), p.DietType.IsValid))),
		validation.Field(&p.ActivityLevel, validation.By(known(string(p.ActivityLevel), p.ActivityLevel.IsValid))),
		validation.Field(&p.FitnessGoal, validation.By(known(string(p.FitnessGoal), p.FitnessGoal.IsValid))),
		validation.Field(&p.WeightChangeRate, validation.By(known(string(p.WeightChangeRate), p.WeightChangeRate.IsValid))),
		validation.Field(&p.UnitSystem, validation.By(known(string(p.UnitSystem), p.UnitSystem.IsValid))),
	)
}

func validatePersonalInfo(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.FirstName,
			validation.Required.Error("first name is required"),
			validation.Length(1, 100),
		),
		validation.Field(&p.LastName, validation.Length(0, 100)),
	)
}

func validateAge(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Age,
			validation.When(p.DateOfBirth == "", validation.Required.Error("age or date of birth is required")),
			validation.By(minimumAge),
		),
		validation.Field(&p.DateOfBirth, validation.Date("2006-01-02").Error("must be a date in YYYY-MM-DD format")),
	)
}

func validateGender(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Gender,
			validation.Required.Error("gender is required"),
			validation.By(known(string(p.Gender), p.Gender.IsValid)),
		),
	)
}

func validateBodyMetrics(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Height, validation.Required.Error("height is required"), validation.By(positive)),
		validation.Field(&p.Weight, validation.Required.Error("weight is required"), validation.By(positive)),
		validation.Field(&p.TargetWeight, validation.By(positive)),
	)
}

func validateGoal(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.FitnessGoal,
			validation.Required.Error("fitness goal is required"),
			validation.By(known(string(p.FitnessGoal), p.FitnessGoal.IsValid)),
		),
		validation.Field(&p.WeightChangeRate, validation.By(known(string(p.WeightChangeRate), p.WeightChangeRate.IsValid))),
	)
}

func validateActivity(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ActivityLevel,
			validation.Required.Error("activity level is required"),
			validation.By(known(string(p.ActivityLevel), p.ActivityLevel.IsValid)),
		),
	)
}

func validateDiet(p *UserProfile) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.DietType,
			validation.Required.Error("diet type is required"),
			validation.By(known(string(p.DietType), p.DietType.IsValid)),
		),
	)
}

func minimumAge(value interface{}) error {
	age, ok := value.(*int)
	if !ok || age == nil {
		return nil
	}
	if *age < MinimumAge {
		return validation.NewError("validation_minimum_age", "must be at least 13")
	}
	return nil
}

func positive(value interface{}) error {
	v, ok := value.(*float64)
	if !ok || v == nil {
		return nil
	}
	if *v <= 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return validation.NewError("validation_positive", "must be a positive number")
	}
	return nil
}

// known builds a rule for string enums; empty values are left to Required.
func known(current string, valid func() bool) validation.RuleFunc {
	return func(interface{}) error {
		if current == "" || valid() {
			return nil
		}
		return validation.NewError("validation_unknown_value", "is not a supported value")
	}
}
