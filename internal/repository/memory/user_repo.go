package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/repository"
)

// UserRepository is an in-process repository.UserRepository for offline mode and tests.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.UserRecord
	now   func() time.Time
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*domain.UserRecord), now: time.Now}
}

func (r *UserRepository) GetByUID(_ context.Context, uid string) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRecord(u), nil
}

func (r *UserRepository) Create(_ context.Context, fields domain.NewUserFields) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[fields.UID]; ok {
		return nil, repository.ErrAlreadyExists
	}
	now := r.now().UTC()
	u := &domain.UserRecord{
		ID:        primitive.NewObjectIDFromTimestamp(now),
		UID:       fields.UID,
		Email:     fields.Email,
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[fields.UID] = u
	return copyRecord(u), nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, uid string, update domain.ProfileUpdate) (*domain.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	profile := update.Profile.Clone()
	derived := update.Derived
	u.Profile = &profile
	u.Derived = &derived
	if update.Profile.FirstName != "" {
		u.FirstName = update.Profile.FirstName
	}
	if update.Profile.LastName != "" {
		u.LastName = update.Profile.LastName
	}
	u.OnboardingComplete = update.OnboardingComplete
	if update.OnboardingComplete {
		completed := update.CompletedAt.UTC()
		u.CompletedAt = &completed
	}
	u.UpdatedAt = r.now().UTC()
	return copyRecord(u), nil
}

// Len is the number of stored records.
func (r *UserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func copyRecord(u *domain.UserRecord) *domain.UserRecord {
	c := *u
	if u.Profile != nil {
		p := u.Profile.Clone()
		c.Profile = &p
	}
	if u.Derived != nil {
		d := *u.Derived
		c.Derived = &d
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
