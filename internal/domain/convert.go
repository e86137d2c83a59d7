package domain

import "math"

const (
	kgToLb   = 2.2046226218
	inchToCm = 2.54
)

// PoundsToKilograms converts lb to kg, rounded to one decimal place.
func PoundsToKilograms(lb float64) float64 {
	return roundTo(lb/kgToLb, 1)
}

// InchesToCentimetres converts in to cm, rounded to one decimal place.
func InchesToCentimetres(in float64) float64 {
	return roundTo(in*inchToCm, 1)
}

// KilogramsToPounds is used when rendering stored weights for imperial users.
func KilogramsToPounds(kg float64) float64 {
	return roundTo(kg*kgToLb, 1)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
