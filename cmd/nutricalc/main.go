// Command nutricalc runs the nutrition calculator and onboarding helpers from a shell.
package main

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"alcyxob/nutrition-onboarding/internal/config"
	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/logging"
)

func main() {
	logger := logging.New("info", "console")

	cmd := &cli.Command{
		Name:  "nutricalc",
		Usage: "Nutrition targets and onboarding tools",
		Commands: []*cli.Command{
			{
				Name:  "calc",
				Usage: "Derive calories, macros and projections for a profile",
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "weight", Aliases: []string{"w"}, Usage: "Current weight (kg, or lb with --units imperial)"},
					&cli.FloatFlag{Name: "height", Aliases: []string{"H"}, Usage: "Height (cm, or inches with --units imperial)"},
					&cli.IntFlag{Name: "age", Aliases: []string{"a"}, Usage: "Age in years"},
					&cli.StringFlag{Name: "dob", Usage: "Date of birth (YYYY-MM-DD), used when --age is not set"},
					&cli.StringFlag{Name: "gender", Aliases: []string{"g"}, Usage: "male, female or other"},
					&cli.StringFlag{Name: "activity", Value: string(domain.ActivitySedentary), Usage: "sedentary, light, moderate, very or extra"},
					&cli.StringFlag{Name: "goal", Value: string(domain.GoalMaintain), Usage: "fat_loss, muscle_gain, maintain or balanced"},
					&cli.FloatFlag{Name: "target", Usage: "Target weight"},
					&cli.StringFlag{Name: "rate", Usage: "Weekly change, e.g. lose_0_5 or gain_0_25"},
					&cli.BoolFlag{Name: "cheat-day", Usage: "Plan one cheat day per week"},
					&cli.StringFlag{Name: "units", Value: string(domain.UnitsMetric), Usage: "metric or imperial"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: 'text' or 'json'"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunCalc(os.Stdout, patchFromFlags(cmd), time.Now(), cmd.String("format"))
				},
			},
			{
				Name:  "steps",
				Usage: "List the onboarding steps",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: 'text' or 'json'"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return RunSteps(os.Stdout, cmd.String("format"))
				},
			},
			{
				Name:  "token",
				Usage: "Mint a development JWT for the onboarding API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uid", Aliases: []string{"u"}, Required: true, Usage: "User identifier"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User email"},
					&cli.StringFlag{Name: "secret", Usage: "Signing secret; defaults to jwt.secret from config"},
					&cli.DurationFlag{Name: "expires-in", Usage: "Token lifetime; defaults to jwt.expiration from config"},
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: ".", Usage: "Directory holding config.yaml and .env"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					secret := cmd.String("secret")
					expiresIn := cmd.Duration("expires-in")
					if secret == "" || expiresIn == 0 {
						cfg, err := config.LoadConfig(cmd.String("config"))
						if err != nil {
							return err
						}
						if secret == "" {
							secret = cfg.JWT.Secret
						}
						if expiresIn == 0 {
							expiresIn = cfg.JWT.Expiration
						}
					}
					return RunToken(os.Stdout, secret, cmd.String("uid"), cmd.String("email"), expiresIn, time.Now())
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error().Err(err).Msg("nutricalc failed")
		os.Exit(1)
	}
}

func patchFromFlags(cmd *cli.Command) domain.ProfilePatch {
	var p domain.ProfilePatch
	if cmd.IsSet("weight") {
		v := cmd.Float("weight")
		p.Weight = &v
	}
	if cmd.IsSet("height") {
		v := cmd.Float("height")
		p.Height = &v
	}
	if cmd.IsSet("target") {
		v := cmd.Float("target")
		p.TargetWeight = &v
	}
	if cmd.IsSet("age") {
		v := int(cmd.Int("age"))
		p.Age = &v
	}
	if dob := cmd.String("dob"); dob != "" {
		p.DateOfBirth = &dob
	}
	if g := domain.Gender(cmd.String("gender")); g != "" {
		p.Gender = &g
	}
	activity := domain.ActivityLevel(cmd.String("activity"))
	p.ActivityLevel = &activity
	goal := domain.FitnessGoal(cmd.String("goal"))
	p.FitnessGoal = &goal
	if r := domain.WeightChangeRate(cmd.String("rate")); r != "" {
		p.WeightChangeRate = &r
	}
	cheat := cmd.Bool("cheat-day")
	p.CheatDayEnabled = &cheat
	units := domain.UnitSystem(cmd.String("units"))
	p.UnitSystem = &units
	return p
}
