package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/repository/memory"
	"alcyxob/nutrition-onboarding/internal/storage"
)

type onboardingFixture struct {
	kv    *storage.MemoryStore
	users *memory.UserRepository
	svc   OnboardingService
}

func newOnboardingFixture(opts CompletionOptions) *onboardingFixture {
	f := &onboardingFixture{kv: storage.NewMemoryStore(), users: memory.NewUserRepository()}
	f.svc = f.restart(opts)
	return f
}

// restart builds a fresh service on the same storage, as after an app relaunch.
func (f *onboardingFixture) restart(opts CompletionOptions) OnboardingService {
	coordinator := newTestCoordinator(f.users, f.kv, opts)
	return NewOnboardingService(f.kv, coordinator, SessionOptions{Now: func() time.Time { return fixedNow }}, nopLogger(), nil)
}

var ada = Identity{UID: "u1", Email: "ada@example.com"}

func TestOnboardingService_InitialState(t *testing.T) {
	f := newOnboardingFixture(CompletionOptions{})

	st, err := f.svc.State(context.Background(), ada)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStep)
	assert.Equal(t, domain.TotalSteps(), st.TotalSteps)
	assert.Equal(t, domain.StepPersonalInfo, st.Step.ID)
	assert.False(t, st.Completed)
	assert.True(t, st.Derived.Fallback)
	assert.Equal(t, 2000, st.Derived.DailyCalories)
}

func TestOnboardingService_NextValidatesCurrentStep(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})

	_, err := f.svc.Next(ctx, ada)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.StepPersonalInfo, verr.Step)

	_, err = f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{FirstName: strPtr("Ada")}, false)
	require.NoError(t, err)
	st, err := f.svc.Next(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentStep)
	assert.Equal(t, domain.StepAge, st.Step.ID)
}

func TestOnboardingService_FullRun(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})

	_, err := f.svc.UpdateProfile(ctx, ada, completePatch(), false)
	require.NoError(t, err)

	for want := 2; want <= domain.TotalSteps(); want++ {
		st, err := f.svc.Next(ctx, ada)
		require.NoError(t, err)
		assert.Equal(t, want, st.CurrentStep)
		assert.False(t, st.Completed)
	}

	st, err := f.svc.Next(ctx, ada)
	require.NoError(t, err)
	assert.True(t, st.Completed)
	assert.Equal(t, domain.TotalSteps(), st.CurrentStep)
	assert.Equal(t, 2056, st.Derived.DailyCalories)

	rec, err := f.users.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.OnboardingComplete)
	assert.Equal(t, "ada@example.com", rec.Email)
	require.NotNil(t, rec.Derived)
	assert.Equal(t, 2056, rec.Derived.DailyCalories)
}

func TestOnboardingService_UpdateProfileWithValidation(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})
	_, err := f.svc.JumpTo(ctx, ada, 2)
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{Age: intPtr(10)}, true)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.StepAge, verr.Step)

	st, err := f.svc.State(ctx, ada)
	require.NoError(t, err)
	assert.Nil(t, st.Profile.Age, "rejected patch must not be applied")

	st, err = f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{Age: intPtr(25)}, true)
	require.NoError(t, err)
	require.NotNil(t, st.Profile.Age)
	assert.Equal(t, 25, *st.Profile.Age)
}

func TestOnboardingService_ConvertsImperialInput(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})
	imperial := domain.UnitsImperial

	st, err := f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{
		UnitSystem: &imperial,
		Height:     floatPtr(70),
		Weight:     floatPtr(176),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitsImperial, st.Profile.UnitSystem)
	assert.InDelta(t, 177.8, *st.Profile.Height, 0.001)
	assert.InDelta(t, 79.8, *st.Profile.Weight, 0.001)

	// Later patches use the stored unit preference.
	st, err = f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{TargetWeight: floatPtr(165)}, false)
	require.NoError(t, err)
	assert.InDelta(t, 74.8, *st.Profile.TargetWeight, 0.001)
}

func TestOnboardingService_SkipThenComplete(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})

	st, err := f.svc.Skip(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, domain.TotalSteps(), st.CurrentStep)
	assert.False(t, st.Completed)

	st, res, err := f.svc.Complete(ctx, ada)
	require.NoError(t, err)
	assert.True(t, st.Completed)
	assert.True(t, res.Derived.Fallback)
	assert.Equal(t, 1, f.users.Len())
}

func TestOnboardingService_CompleteRejectsInvalidDraft(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})

	_, err := f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{Age: intPtr(9)}, false)
	require.NoError(t, err)

	_, _, err = f.svc.Complete(ctx, ada)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.StepSummary, verr.Step)
	assert.Zero(t, f.users.Len())
}

func TestOnboardingService_BackAndJump(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})

	st, err := f.svc.Back(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStep)

	_, err = f.svc.JumpTo(ctx, ada, domain.TotalSteps()+1)
	assert.ErrorIs(t, err, domain.ErrStepOutOfRange)

	st, err = f.svc.JumpTo(ctx, ada, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StepGoal, st.Step.ID)

	st, err = f.svc.Back(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 4, st.CurrentStep)
}

func TestOnboardingService_ResumesAfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})

	_, err := f.svc.UpdateProfile(ctx, ada, domain.ProfilePatch{FirstName: strPtr("Ada")}, false)
	require.NoError(t, err)
	_, err = f.svc.JumpTo(ctx, ada, 4)
	require.NoError(t, err)

	restarted := f.restart(CompletionOptions{})
	st, err := restarted.State(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 4, st.CurrentStep)
	assert.Equal(t, "Ada", st.Profile.FirstName)
}

func TestOnboardingService_Preview(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})
	_, err := f.svc.UpdateProfile(ctx, ada, completePatch(), false)
	require.NoError(t, err)

	d, err := f.svc.Preview(ctx, ada)
	require.NoError(t, err)
	assert.False(t, d.Fallback)
	assert.Equal(t, 2556, d.TDEE)
	assert.Equal(t, 2056, d.DailyCalories)
	assert.Zero(t, f.users.Len(), "preview must not reach the backend")
}

func TestOnboardingService_RequiresIdentity(t *testing.T) {
	f := newOnboardingFixture(CompletionOptions{})
	_, err := f.svc.State(context.Background(), Identity{})
	assert.ErrorIs(t, err, domain.ErrMissingIdentity)
}

func TestOnboardingService_ConcurrentRequestsDuringCompletion(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})
	_, err := f.svc.UpdateProfile(ctx, ada, completePatch(), false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 51)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.State(ctx, Identity{UID: ada.UID, Email: fmt.Sprintf("ada+%d@example.com", i)})
			errs <- err
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := f.svc.Complete(ctx, ada)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	rec, err := f.users.GetByUID(ctx, ada.UID)
	require.NoError(t, err)
	assert.True(t, rec.OnboardingComplete)
	assert.Contains(t, rec.Email, "@example.com")
}

func TestOnboardingService_CompletionDropsCachedSession(t *testing.T) {
	ctx := context.Background()
	f := newOnboardingFixture(CompletionOptions{})
	svc := f.svc.(*onboardingService)

	_, err := f.svc.UpdateProfile(ctx, ada, completePatch(), false)
	require.NoError(t, err)
	require.Contains(t, svc.sessions, ada.UID)

	_, _, err = f.svc.Complete(ctx, ada)
	require.NoError(t, err)
	assert.NotContains(t, svc.sessions, ada.UID)

	st, err := f.svc.State(ctx, ada)
	require.NoError(t, err)
	assert.True(t, st.Completed)
	assert.Equal(t, "Ada", st.Profile.FirstName)
}

func TestOnboardingService_DropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	now := fixedNow
	coordinator := newTestCoordinator(memory.NewUserRepository(), kv, CompletionOptions{})
	svc := NewOnboardingService(kv, coordinator, SessionOptions{
		IdleTTL: 10 * time.Minute,
		Now:     func() time.Time { return now },
	}, nopLogger(), nil).(*onboardingService)

	_, err := svc.JumpTo(ctx, ada, 3)
	require.NoError(t, err)
	require.Contains(t, svc.sessions, ada.UID)

	now = now.Add(11 * time.Minute)
	_, err = svc.State(ctx, Identity{UID: "u2"})
	require.NoError(t, err)
	assert.NotContains(t, svc.sessions, ada.UID)
	assert.Contains(t, svc.sessions, "u2")

	st, err := svc.State(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 3, st.CurrentStep)
}

func TestOnboardingService_SharedStoreSeesOtherInstances(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	users := memory.NewUserRepository()
	newInstance := func() OnboardingService {
		return NewOnboardingService(kv, newTestCoordinator(users, kv, CompletionOptions{}), SessionOptions{
			Shared: true,
			Now:    func() time.Time { return fixedNow },
		}, nopLogger(), nil)
	}
	a, b := newInstance(), newInstance()

	_, err := a.UpdateProfile(ctx, ada, domain.ProfilePatch{FirstName: strPtr("Ada")}, false)
	require.NoError(t, err)
	_, err = b.UpdateProfile(ctx, ada, domain.ProfilePatch{LastName: strPtr("Lovelace")}, false)
	require.NoError(t, err)
	st, err := a.UpdateProfile(ctx, ada, domain.ProfilePatch{Age: intPtr(30)}, false)
	require.NoError(t, err)
	assert.Equal(t, "Ada", st.Profile.FirstName)
	assert.Equal(t, "Lovelace", st.Profile.LastName, "a merge from another instance was lost")
	require.NotNil(t, st.Profile.Age)

	_, err = b.JumpTo(ctx, ada, 4)
	require.NoError(t, err)
	st, err = a.State(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, 4, st.CurrentStep)
}

func TestOnboardingService_SlowLoadDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	kv := newGatedStore("/slow/")
	t.Cleanup(kv.open)
	coordinator := newTestCoordinator(memory.NewUserRepository(), kv, CompletionOptions{})
	svc := NewOnboardingService(kv, coordinator, SessionOptions{}, nopLogger(), nil)

	slow := make(chan error, 1)
	go func() {
		_, err := svc.State(ctx, Identity{UID: "slow"})
		slow <- err
	}()
	require.Eventually(t, func() bool { return kv.waiting.Load() > 0 }, 2*time.Second, time.Millisecond)

	fast := make(chan error, 1)
	go func() {
		_, err := svc.State(ctx, ada)
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("request for another user waited on a slow load")
	}

	kv.open()
	require.NoError(t, <-slow)
}

func TestOnboardingService_CompletionOutlivesDraftExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv := storage.NewRedisStore(client, 720*time.Hour)
	coordinator := newTestCoordinator(memory.NewUserRepository(), kv, CompletionOptions{})
	svc := NewOnboardingService(kv, coordinator, SessionOptions{
		Shared: true,
		Now:    func() time.Time { return fixedNow },
	}, nopLogger(), nil)

	_, err := svc.UpdateProfile(ctx, ada, completePatch(), false)
	require.NoError(t, err)
	_, _, err = svc.Complete(ctx, ada)
	require.NoError(t, err)

	mr.FastForward(721 * time.Hour)

	st, err := svc.State(ctx, ada)
	require.NoError(t, err)
	assert.True(t, st.Completed)
	assert.Equal(t, 1, st.CurrentStep, "draft and step expire with the ttl")
}
