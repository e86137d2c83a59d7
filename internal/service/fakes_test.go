package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/storage"
)

var errDiskFull = errors.New("disk full")

// flakyStore is a MemoryStore whose reads and writes can be made to fail.
type flakyStore struct {
	*storage.MemoryStore
	failGet atomic.Bool
	failSet atomic.Bool
	sets    atomic.Int32
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet.Load() {
		return nil, errDiskFull
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.sets.Add(1)
	if s.failSet.Load() {
		return errDiskFull
	}
	return s.MemoryStore.Set(ctx, key, value)
}

// gatedStore holds reads of keys containing match until open is called.
type gatedStore struct {
	*storage.MemoryStore
	match   string
	gate    chan struct{}
	once    sync.Once
	waiting atomic.Int32
}

func newGatedStore(match string) *gatedStore {
	return &gatedStore{MemoryStore: storage.NewMemoryStore(), match: match, gate: make(chan struct{})}
}

func (s *gatedStore) open() { s.once.Do(func() { close(s.gate) }) }

func (s *gatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.Contains(key, s.match) {
		s.waiting.Add(1)
		<-s.gate
	}
	return s.MemoryStore.Get(ctx, key)
}

// mockUserRepository is a testify mock of repository.UserRepository.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByUID(ctx context.Context, uid string) (*domain.UserRecord, error) {
	args := m.Called(ctx, uid)
	if u := args.Get(0); u != nil {
		return u.(*domain.UserRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, fields domain.NewUserFields) (*domain.UserRecord, error) {
	args := m.Called(ctx, fields)
	if u := args.Get(0); u != nil {
		return u.(*domain.UserRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, uid string, update domain.ProfileUpdate) (*domain.UserRecord, error) {
	args := m.Called(ctx, uid, update)
	if u := args.Get(0); u != nil {
		return u.(*domain.UserRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// blockingRepository never answers until release is closed, and ignores ctx.
type blockingRepository struct {
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newBlockingRepository() *blockingRepository {
	return &blockingRepository{release: make(chan struct{})}
}

func (r *blockingRepository) unblock() { r.once.Do(func() { close(r.release) }) }

func (r *blockingRepository) GetByUID(context.Context, string) (*domain.UserRecord, error) {
	r.calls.Add(1)
	<-r.release
	return &domain.UserRecord{}, nil
}

func (r *blockingRepository) Create(context.Context, domain.NewUserFields) (*domain.UserRecord, error) {
	r.calls.Add(1)
	<-r.release
	return &domain.UserRecord{}, nil
}

func (r *blockingRepository) UpdateProfile(context.Context, string, domain.ProfileUpdate) (*domain.UserRecord, error) {
	r.calls.Add(1)
	<-r.release
	return &domain.UserRecord{}, nil
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool { return &b }
func genderPtr(g domain.Gender) *domain.Gender { return &g }

// completePatch fills every field the wizard asks for.
func completePatch() domain.ProfilePatch {
	activity := domain.ActivityModerate
	goal := domain.GoalFatLoss
	rate := domain.RateLose05
	diet := domain.DietClassic
	return domain.ProfilePatch{
		FirstName:        strPtr("Ada"),
		LastName:         strPtr("Lovelace"),
		Age:              intPtr(30),
		Height:           floatPtr(175),
		Weight:           floatPtr(70),
		TargetWeight:     floatPtr(65),
		Gender:           genderPtr(domain.GenderMale),
		ActivityLevel:    &activity,
		FitnessGoal:      &goal,
		WeightChangeRate: &rate,
		DietType:         &diet,
	}
}
