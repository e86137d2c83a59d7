package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"alcyxob/nutrition-onboarding/internal/api"
	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/nutrition"
)

// RunCalc derives nutrition targets for the profile described by patch.
func RunCalc(w io.Writer, patch domain.ProfilePatch, now time.Time, format string) error {
	units := domain.UnitsMetric
	if patch.UnitSystem != nil {
		units = *patch.UnitSystem
	}
	profile := patch.ToMetric(units).Apply(domain.UserProfile{})
	if err := domain.ValidateProfile(&profile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	derived := nutrition.Derive(profile, now)
	if format == "json" {
		return writeJSON(w, derived)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if derived.Fallback {
		fmt.Fprintln(tw, "NOTE\tweight, height, age and gender are needed for a personal target; showing defaults")
	} else {
		fmt.Fprintf(tw, "BMR\t%.1f kcal\n", derived.BMR)
		fmt.Fprintf(tw, "TDEE\t%d kcal\n", derived.TDEE)
	}
	fmt.Fprintf(tw, "Daily calories\t%d kcal\n", derived.DailyCalories)
	fmt.Fprintf(tw, "Protein\t%d g\n", derived.Macros.Protein)
	fmt.Fprintf(tw, "Carbs\t%d g\n", derived.Macros.Carbs)
	fmt.Fprintf(tw, "Fat\t%d g\n", derived.Macros.Fat)
	fmt.Fprintf(tw, "Fiber\t%d g\n", derived.Micros.Fiber)
	fmt.Fprintf(tw, "Duration\t%d weeks\n", derived.EstimatedDurationWeeks)
	fmt.Fprintf(tw, "Projected completion\t%s\n", derived.ProjectedCompletionDate.Format("2006-01-02"))
	fmt.Fprintf(tw, "Success rate\t%d%%\n", derived.SuccessRate)
	return tw.Flush()
}

// RunSteps prints the onboarding steps in order.
func RunSteps(w io.Writer, format string) error {
	steps := domain.OnboardingSteps()
	if format == "json" {
		return writeJSON(w, steps)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTITLE")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Number, s.ID, s.Title)
	}
	return tw.Flush()
}

// RunToken mints a development bearer token accepted by the API.
func RunToken(w io.Writer, secret, uid, email string, expiresIn time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if strings.TrimSpace(uid) == "" {
		return fmt.Errorf("uid is required")
	}

	claims := api.Claims{
		UserID: uid,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(w, signed)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
