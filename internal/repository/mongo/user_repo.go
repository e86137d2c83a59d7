package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/repository"
)

const UserCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository expects a connected *mongo.Database. Call
// EnsureUserIndexes once at startup so that uid stays unique.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(UserCollectionName),
	}
}

// GetByUID retrieves a user by the auth provider's identifier.
func (r *mongoUserRepository) GetByUID(ctx context.Context, uid string) (*domain.UserRecord, error) {
	var user domain.UserRecord
	err := r.collection.FindOne(ctx, bson.M{"uid": uid}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user with the minimal fields.
func (r *mongoUserRepository) Create(ctx context.Context, fields domain.NewUserFields) (*domain.UserRecord, error) {
	if fields.UID == "" {
		return nil, errors.New("user uid is required")
	}

	now := time.Now().UTC()
	user := &domain.UserRecord{
		ID:        primitive.NewObjectID(),
		UID:       fields.UID,
		Email:     fields.Email,
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		// The unique uid index turns a concurrent second create into a duplicate key error.
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile overwrites profile and derived metrics with $set, so repeating
// the same update is harmless.
func (r *mongoUserRepository) UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) (*domain.UserRecord, error) {
	set := bson.M{
		"profile":            update.Profile,
		"derived":            update.Derived,
		"onboardingComplete": update.OnboardingComplete,
		"updatedAt":          time.Now().UTC(),
	}
	if update.Profile.FirstName != "" {
		set["firstName"] = update.Profile.FirstName
	}
	if update.Profile.LastName != "" {
		set["lastName"] = update.Profile.LastName
	}
	if update.OnboardingComplete {
		set["completedAt"] = update.CompletedAt.UTC()
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.UserRecord
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"uid": uid}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		// Only an answer from the server is a rejection; transport failures stay as they are.
		if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		var serverErr mongo.ServerError
		if errors.As(err, &serverErr) {
			return nil, fmt.Errorf("%w: %v", repository.ErrUpdateFailed, err)
		}
		return nil, err
	}
	return &user, nil
}

// EnsureUserIndexes creates the indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
