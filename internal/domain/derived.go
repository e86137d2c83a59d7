package domain

import "time"

// Macros are daily macronutrient targets in grams.
type Macros struct {
	Protein int `bson:"protein" json:"protein"`
	Carbs   int `bson:"carbs" json:"carbs"`
	Fat     int `bson:"fat" json:"fat"`
}

// Micros are daily micronutrient targets. Masses in grams unless the field name says mg.
type Micros struct {
	Fiber         int `bson:"fiber" json:"fiber"`
	Sugar         int `bson:"sugar" json:"sugar"`
	SodiumMg      int `bson:"sodiumMg" json:"sodiumMg"`
	PotassiumMg   int `bson:"potassiumMg" json:"potassiumMg"`
	SaturatedFat  int `bson:"saturatedFat" json:"saturatedFat"`
	CholesterolMg int `bson:"cholesterolMg" json:"cholesterolMg"`
}

// DerivedMetrics are computed from a UserProfile and never edited directly.
type DerivedMetrics struct {
	BMR                     float64   `bson:"bmr" json:"bmr"`
	TDEE                    int       `bson:"tdee" json:"tdee"`
	DailyCalories           int       `bson:"dailyCalories" json:"dailyCalories"`
	Macros                  Macros    `bson:"macros" json:"macros"`
	Micros                  Micros    `bson:"micros" json:"micros"`
	EstimatedDurationWeeks  int       `bson:"estimatedDurationWeeks" json:"estimatedDurationWeeks"`
	ProjectedCompletionDate time.Time `bson:"projectedCompletionDate" json:"projectedCompletionDate"`
	SuccessRate             int       `bson:"successRate" json:"successRate"`
	// Fallback is set when required inputs were missing and defaults were used.
	Fallback   bool      `bson:"fallback" json:"fallback"`
	ComputedAt time.Time `bson:"computedAt" json:"computedAt"`
}
