package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/repository"
)

func TestMongoUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("GetByUID_Found", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "test.users", mtest.FirstBatch, bson.D{
			{Key: "uid", Value: "u1"},
			{Key: "email", Value: "ana@example.com"},
			{Key: "onboardingComplete", Value: true},
		}))

		user, err := repo.GetByUID(ctx, "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", user.UID)
		assert.Equal(mt, "ana@example.com", user.Email)
		assert.True(mt, user.OnboardingComplete)
	})

	mt.Run("GetByUID_NotFound", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.users", mtest.FirstBatch))

		_, err := repo.GetByUID(ctx, "ghost")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("Create_Success", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user, err := repo.Create(ctx, domain.NewUserFields{UID: "u1", Email: "ana@example.com"})
		require.NoError(mt, err)
		assert.False(mt, user.ID.IsZero())
		assert.Equal(mt, "u1", user.UID)
	})

	mt.Run("Create_DuplicateUID", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := repo.Create(ctx, domain.NewUserFields{UID: "u1"})
		assert.ErrorIs(mt, err, repository.ErrAlreadyExists)
	})

	mt.Run("Create_MissingUID", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		_, err := repo.Create(ctx, domain.NewUserFields{})
		assert.Error(mt, err)
	})

	mt.Run("UpdateProfile_Success", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "uid", Value: "u1"},
			{Key: "onboardingComplete", Value: true},
			{Key: "profile", Value: bson.D{{Key: "firstName", Value: "Ana"}}},
			{Key: "derived", Value: bson.D{{Key: "dailyCalories", Value: 1800}}},
		}}))

		user, err := repo.UpdateProfile(ctx, "u1", domain.ProfileUpdate{
			Profile:            domain.UserProfile{FirstName: "Ana"},
			Derived:            domain.DerivedMetrics{DailyCalories: 1800},
			OnboardingComplete: true,
			CompletedAt:        time.Now(),
		})
		require.NoError(mt, err)
		require.NotNil(mt, user.Profile)
		assert.Equal(mt, "Ana", user.Profile.FirstName)
		assert.Equal(mt, 1800, user.Derived.DailyCalories)
	})

	mt.Run("UpdateProfile_NotFound", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.UpdateProfile(ctx, "ghost", domain.ProfileUpdate{})
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("UpdateProfile_ServerRejects", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    121,
			Name:    "DocumentValidationFailure",
			Message: "Document failed validation",
		}))

		_, err := repo.UpdateProfile(ctx, "u1", domain.ProfileUpdate{})
		assert.ErrorIs(mt, err, repository.ErrUpdateFailed)
	})

	mt.Run("UpdateProfile_TransportErrorPassesThrough", func(mt *mtest.T) {
		repo := &mongoUserRepository{collection: mt.Coll}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := repo.UpdateProfile(cctx, "u1", domain.ProfileUpdate{})
		require.Error(mt, err)
		assert.ErrorIs(mt, err, context.Canceled)
		assert.NotErrorIs(mt, err, repository.ErrUpdateFailed)
	})
}
