package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/metrics"
	"alcyxob/nutrition-onboarding/internal/nutrition"
	"alcyxob/nutrition-onboarding/internal/repository"
	"alcyxob/nutrition-onboarding/internal/storage"
)

const defaultSyncTimeout = 10 * time.Second

// Identity is what the auth collaborator tells us about the signed-in user.
type Identity struct {
	UID   string
	Email string
}

// CompletionResult is returned once onboarding is finished.
type CompletionResult struct {
	Record      *domain.UserRecord    `json:"record,omitempty"`
	Derived     domain.DerivedMetrics `json:"derived"`
	CompletedAt time.Time             `json:"completedAt"`
	// Offline is set when completion was recorded locally without a backend sync.
	Offline bool `json:"offline"`
}

// completionFlag is the value stored under storage.KeyOnboardingComplete.
type completionFlag struct {
	Complete    bool      `json:"complete"`
	CompletedAt time.Time `json:"completedAt"`
	Offline     bool      `json:"offline"`
}

// BreakerSettings configures the circuit breaker around backend calls.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// CompletionOptions configures a CompletionCoordinator.
type CompletionOptions struct {
	// Timeout bounds each backend call.
	Timeout time.Duration
	// OfflineMode marks onboarding complete after the local save only.
	OfflineMode bool
	Breaker     BreakerSettings
	// Now defaults to time.Now.
	Now func() time.Time
}

// CompletionCoordinator finalizes onboarding: it reconciles the draft with
// the backend user record, then sets the local completion flag.
type CompletionCoordinator struct {
	users   repository.UserRepository
	kv      storage.KeyValueStore
	breaker *gobreaker.CircuitBreaker
	flight  singleflight.Group
	timeout time.Duration
	offline bool
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewCompletionCoordinator(users repository.UserRepository, kv storage.KeyValueStore, opts CompletionOptions, log zerolog.Logger, m *metrics.Metrics) *CompletionCoordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSyncTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Breaker.ConsecutiveFailures == 0 {
		opts.Breaker.ConsecutiveFailures = 5
	}

	c := &CompletionCoordinator{
		users:   users,
		kv:      kv,
		timeout: opts.Timeout,
		offline: opts.OfflineMode,
		now:     opts.Now,
		log:     log.With().Str("component", "completion").Logger(),
		metrics: m,
	}

	failures := opts.Breaker.ConsecutiveFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "user-backend",
		MaxRequests: opts.Breaker.MaxRequests,
		Interval:    opts.Breaker.Interval,
		Timeout:     opts.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		// Lookups that miss and lost create races are normal answers, not backend faults.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrAlreadyExists)
		},
	})
	return c
}

// OfflineMode reports whether completion skips the backend.
func (c *CompletionCoordinator) OfflineMode() bool {
	return c.offline
}

// Complete finalizes onboarding for id using the current draft in store.
// Backend failures return a *domain.SyncError and leave the draft and the
// completion flag untouched. Concurrent calls for the same user share one
// reconciliation; repeated calls update the same record.
func (c *CompletionCoordinator) Complete(ctx context.Context, id Identity, store *ProfileStore) (*CompletionResult, error) {
	if id.UID == "" {
		return nil, domain.ErrMissingIdentity
	}

	snapshot := store.Profile()
	completedAt := c.now().UTC()
	derived := nutrition.Derive(snapshot, completedAt)
	log := c.log.With().Str("uid", id.UID).Logger()

	if c.offline {
		if err := store.Save(ctx); err != nil {
			c.metrics.Completion("persistence_error")
			return nil, err
		}
		if err := c.setFlag(ctx, id.UID, completionFlag{Complete: true, CompletedAt: completedAt, Offline: true}); err != nil {
			c.metrics.Completion("persistence_error")
			return nil, err
		}
		log.Info().Msg("onboarding completed offline")
		c.metrics.Completion("offline")
		return &CompletionResult{Derived: derived, CompletedAt: completedAt, Offline: true}, nil
	}

	// The shared reconciliation outlives any single caller; each backend call
	// is still bounded by the sync timeout.
	ch := c.flight.DoChan(id.UID, func() (interface{}, error) {
		return c.reconcile(context.WithoutCancel(ctx), id, snapshot, derived, completedAt)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("caller left before backend reconciliation finished")
		c.metrics.Completion("sync_error")
		return nil, syncError("complete", ctx.Err())
	}
	if res.Err != nil {
		log.Error().Err(res.Err).Bool("shared", res.Shared).Msg("backend reconciliation failed")
		c.metrics.Completion("sync_error")
		return nil, res.Err
	}
	record := res.Val.(*domain.UserRecord)

	if err := c.setFlag(ctx, id.UID, completionFlag{Complete: true, CompletedAt: completedAt}); err != nil {
		c.metrics.Completion("persistence_error")
		return nil, err
	}

	log.Info().Int("dailyCalories", derived.DailyCalories).Bool("fallback", derived.Fallback).Msg("onboarding completed")
	c.metrics.Completion("synced")
	return &CompletionResult{Record: record, Derived: derived, CompletedAt: completedAt}, nil
}

// IsComplete reports whether the local completion flag is set for uid.
func (c *CompletionCoordinator) IsComplete(ctx context.Context, uid string) (bool, error) {
	key := storage.UserKey(uid, storage.KeyOnboardingComplete)
	var flag completionFlag
	found, err := storage.GetJSON(ctx, c.kv, key, &flag)
	if err != nil {
		return false, &domain.PersistenceError{Op: "read", Key: key, Err: err}
	}
	return found && flag.Complete, nil
}

func (c *CompletionCoordinator) reconcile(ctx context.Context, id Identity, profile domain.UserProfile, derived domain.DerivedMetrics, completedAt time.Time) (*domain.UserRecord, error) {
	_, err := c.call(ctx, "get_user", func(ctx context.Context) (interface{}, error) {
		return c.users.GetByUID(ctx, id.UID)
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		fields := domain.NewUserFields{
			UID:       id.UID,
			Email:     firstNonEmpty(id.Email, profile.Email),
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
		}
		_, err = c.call(ctx, "create_user", func(ctx context.Context) (interface{}, error) {
			return c.users.Create(ctx, fields)
		})
		// Someone else created it between our lookup and insert; the update below still applies.
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			return nil, syncError("create_user", err)
		}
	case err != nil:
		return nil, syncError("get_user", err)
	}

	update := domain.ProfileUpdate{
		Profile:            profile,
		Derived:            derived,
		OnboardingComplete: true,
		CompletedAt:        completedAt,
	}
	v, err := c.call(ctx, "update_profile", func(ctx context.Context) (interface{}, error) {
		return c.users.UpdateProfile(ctx, id.UID, update)
	})
	if err != nil {
		return nil, syncError("update_profile", err)
	}
	return v.(*domain.UserRecord), nil
}

// call runs fn through the breaker with a bounded wait. fn keeps running in
// the background if it ignores ctx, but the caller is released on timeout.
func (c *CompletionCoordinator) call(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	v, err := c.breaker.Execute(func() (interface{}, error) {
		type outcome struct {
			v   interface{}
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			v, err := fn(ctx)
			done <- outcome{v, err}
		}()
		select {
		case o := <-done:
			return o.v, o.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c.metrics.ObserveSync(op, started, err)
	return v, err
}

func (c *CompletionCoordinator) setFlag(ctx context.Context, uid string, flag completionFlag) error {
	key := storage.UserKey(uid, storage.KeyOnboardingComplete)
	if err := storage.SetJSON(ctx, c.kv, key, flag); err != nil {
		c.log.Error().Err(err).Str("uid", uid).Msg("failed to persist completion flag")
		return &domain.PersistenceError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func syncError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = errors.Join(domain.ErrBackendTimeout, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		err = errors.Join(domain.ErrBackendUnhealthy, err)
	case errors.Is(err, repository.ErrUpdateFailed):
		err = errors.Join(domain.ErrBackendRejected, err)
	}
	return &domain.SyncError{Op: op, Err: err, Retryable: true}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
