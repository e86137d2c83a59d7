package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/repository"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_GetMissing", func(t *testing.T) {
		r := NewUserRepository()
		_, err := r.GetByUID(ctx, "nobody")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("Success_CreateThenGet", func(t *testing.T) {
		r := NewUserRepository()
		created, err := r.Create(ctx, domain.NewUserFields{UID: "u1", Email: "a@b.c", FirstName: "Ana"})
		require.NoError(t, err)
		assert.False(t, created.ID.IsZero())

		got, err := r.GetByUID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", got.Email)
		assert.False(t, got.OnboardingComplete)
	})

	t.Run("Error_DuplicateUID", func(t *testing.T) {
		r := NewUserRepository()
		_, err := r.Create(ctx, domain.NewUserFields{UID: "u1"})
		require.NoError(t, err)
		_, err = r.Create(ctx, domain.NewUserFields{UID: "u1"})
		assert.ErrorIs(t, err, repository.ErrAlreadyExists)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Success_UpdateProfileIdempotent", func(t *testing.T) {
		r := NewUserRepository()
		_, err := r.Create(ctx, domain.NewUserFields{UID: "u1"})
		require.NoError(t, err)

		update := domain.ProfileUpdate{
			Profile:            domain.UserProfile{FirstName: "Ana", Gender: domain.GenderFemale},
			Derived:            domain.DerivedMetrics{DailyCalories: 1800},
			OnboardingComplete: true,
			CompletedAt:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		first, err := r.UpdateProfile(ctx, "u1", update)
		require.NoError(t, err)
		second, err := r.UpdateProfile(ctx, "u1", update)
		require.NoError(t, err)

		assert.Equal(t, first.Profile, second.Profile)
		assert.Equal(t, first.Derived, second.Derived)
		assert.Equal(t, "Ana", second.FirstName)
		assert.True(t, second.OnboardingComplete)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Error_UpdateMissing", func(t *testing.T) {
		r := NewUserRepository()
		_, err := r.UpdateProfile(ctx, "ghost", domain.ProfileUpdate{})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}
