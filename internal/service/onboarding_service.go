package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/metrics"
	"alcyxob/nutrition-onboarding/internal/nutrition"
	"alcyxob/nutrition-onboarding/internal/storage"
)

// Session is one user's onboarding run: the draft profile and the step position.
type Session struct {
	Profile *ProfileStore
	Steps   *StepSequencer

	mu       sync.Mutex
	identity Identity
	lastUsed time.Time
}

// Identity returns a copy of the identity the session was last used with.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// touch records a request. A non-empty email replaces the stored one.
func (s *Session) touch(id Identity, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id.Email != "" {
		s.identity.Email = id.Email
	}
	s.lastUsed = now
}

func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

func (s *Session) reload(ctx context.Context) error {
	if err := s.Profile.Reload(ctx); err != nil {
		return err
	}
	return s.Steps.Reload(ctx)
}

// SessionOptions configures the session cache of the onboarding service.
type SessionOptions struct {
	// IdleTTL drops sessions unused for this long. Zero keeps them until
	// onboarding completes.
	IdleTTL time.Duration
	// Shared re-reads the draft and step from storage on every request. Set it
	// when other server instances write to the same store.
	Shared bool
	// Now defaults to time.Now.
	Now func() time.Time
}

const sessionLoadTimeout = 10 * time.Second

// State is a read model of a session for the API.
type State struct {
	Step        domain.Step           `json:"step"`
	CurrentStep int                   `json:"currentStep"`
	TotalSteps  int                   `json:"totalSteps"`
	Profile     domain.UserProfile    `json:"profile"`
	Derived     domain.DerivedMetrics `json:"derived"`
	Completed   bool                  `json:"completed"`
}

// OnboardingService plays the role of the step UI: it validates the current
// step, drives the sequencer and hands the final step to the coordinator.
type OnboardingService interface {
	State(ctx context.Context, id Identity) (State, error)
	UpdateProfile(ctx context.Context, id Identity, patch domain.ProfilePatch, validate bool) (State, error)
	Next(ctx context.Context, id Identity) (State, error)
	Back(ctx context.Context, id Identity) (State, error)
	Skip(ctx context.Context, id Identity) (State, error)
	JumpTo(ctx context.Context, id Identity, step int) (State, error)
	Complete(ctx context.Context, id Identity) (State, *CompletionResult, error)
	Preview(ctx context.Context, id Identity) (domain.DerivedMetrics, error)
}

type onboardingService struct {
	kv          storage.KeyValueStore
	coordinator *CompletionCoordinator
	idleTTL     time.Duration
	shared      bool
	now         func() time.Time
	log         zerolog.Logger
	metrics     *metrics.Metrics

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
	loads     singleflight.Group
}

// NewOnboardingService creates the service. opts may be zero.
func NewOnboardingService(kv storage.KeyValueStore, coordinator *CompletionCoordinator, opts SessionOptions, log zerolog.Logger, m *metrics.Metrics) OnboardingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &onboardingService{
		kv:          kv,
		coordinator: coordinator,
		idleTTL:     opts.IdleTTL,
		shared:      opts.Shared,
		now:         opts.Now,
		log:         log.With().Str("component", "onboarding").Logger(),
		metrics:     m,
		sessions:    make(map[string]*Session),
	}
}

// session returns the cached session for id or restores it from storage.
// Loads are deduplicated per user, so a user never gets two sessions and a
// slow read only delays requests for that user.
func (s *onboardingService) session(ctx context.Context, id Identity) (*Session, error) {
	if id.UID == "" {
		return nil, domain.ErrMissingIdentity
	}

	if sess := s.cached(id.UID); sess != nil {
		if s.shared {
			if err := sess.reload(ctx); err != nil {
				return nil, err
			}
		}
		sess.touch(id, s.now())
		return sess, nil
	}

	v, err, _ := s.loads.Do(id.UID, func() (interface{}, error) {
		if sess := s.cached(id.UID); sess != nil {
			return sess, nil
		}
		// Callers waiting on this load must not fail because the first one went away.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionLoadTimeout)
		defer cancel()
		return s.load(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	sess := v.(*Session)
	sess.touch(id, s.now())
	return sess, nil
}

func (s *onboardingService) load(ctx context.Context, id Identity) (*Session, error) {
	profile, err := LoadProfileStore(ctx, id.UID, s.kv, s.log, s.metrics)
	if err != nil {
		return nil, err
	}
	steps, err := LoadStepSequencer(ctx, id.UID, s.kv, domain.TotalSteps(), s.log, s.metrics)
	if err != nil {
		return nil, err
	}

	sess := &Session{Profile: profile, Steps: steps, identity: id, lastUsed: s.now()}
	steps.SetCompletionHandler(func(ctx context.Context) error {
		_, err := s.finish(ctx, sess)
		return err
	})

	s.mu.Lock()
	s.sessions[id.UID] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *onboardingService) cached(uid string) *Session {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)
	return s.sessions[uid]
}

// sweep drops idle sessions. Everything they hold is already persisted.
// Must be called with mu held.
func (s *onboardingService) sweep(now time.Time) {
	if s.idleTTL <= 0 || now.Sub(s.lastSweep) < s.idleTTL/2 {
		return
	}
	s.lastSweep = now
	for uid, sess := range s.sessions {
		if sess.idle(now) > s.idleTTL {
			delete(s.sessions, uid)
		}
	}
}

func (s *onboardingService) evict(uid string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[uid] == sess {
		delete(s.sessions, uid)
	}
}

func (s *onboardingService) State(ctx context.Context, id Identity) (State, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return State{}, err
	}
	return s.state(ctx, sess)
}

// UpdateProfile merges patch into the draft. Imperial measurements are
// converted first. With validate set, the merged profile must satisfy the
// current step or nothing is applied.
func (s *onboardingService) UpdateProfile(ctx context.Context, id Identity, patch domain.ProfilePatch, validate bool) (State, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return State{}, err
	}

	current := sess.Profile.Profile()
	units := current.UnitSystem
	if patch.UnitSystem != nil {
		units = *patch.UnitSystem
	}
	patch = patch.ToMetric(units)

	if validate {
		step, err := domain.StepAt(sess.Steps.Current())
		if err != nil {
			return State{}, err
		}
		if err := step.Validate(patch.Apply(current)); err != nil {
			return State{}, err
		}
	}

	if _, err := sess.Profile.UpdateProfile(ctx, patch); err != nil {
		// The in-memory merge stands; return the state alongside the error.
		st, _ := s.state(ctx, sess)
		return st, err
	}
	return s.state(ctx, sess)
}

// Next validates the current step and advances. On the last step it completes onboarding.
func (s *onboardingService) Next(ctx context.Context, id Identity) (State, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return State{}, err
	}

	step, err := domain.StepAt(sess.Steps.Current())
	if err != nil {
		return State{}, err
	}
	if err := step.Validate(sess.Profile.Profile()); err != nil {
		return State{}, err
	}

	if _, err := sess.Steps.Next(ctx); err != nil {
		return State{}, err
	}
	return s.state(ctx, sess)
}

func (s *onboardingService) Back(ctx context.Context, id Identity) (State, error) {
	return s.move(ctx, id, func(ctx context.Context, seq *StepSequencer) (TransitionResult, error) {
		return seq.Back(ctx)
	})
}

func (s *onboardingService) Skip(ctx context.Context, id Identity) (State, error) {
	return s.move(ctx, id, func(ctx context.Context, seq *StepSequencer) (TransitionResult, error) {
		return seq.SkipToEnd(ctx)
	})
}

func (s *onboardingService) JumpTo(ctx context.Context, id Identity, step int) (State, error) {
	return s.move(ctx, id, func(ctx context.Context, seq *StepSequencer) (TransitionResult, error) {
		return seq.JumpTo(ctx, step)
	})
}

// Complete validates the whole draft and finishes onboarding from any step.
func (s *onboardingService) Complete(ctx context.Context, id Identity) (State, *CompletionResult, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return State{}, nil, err
	}
	res, err := s.finish(ctx, sess)
	if err != nil {
		return State{}, nil, err
	}
	st, err := s.state(ctx, sess)
	return st, res, err
}

// Preview computes derived metrics from the draft without persisting anything.
func (s *onboardingService) Preview(ctx context.Context, id Identity) (domain.DerivedMetrics, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return domain.DerivedMetrics{}, err
	}
	return nutrition.Derive(sess.Profile.Profile(), s.now()), nil
}

func (s *onboardingService) finish(ctx context.Context, sess *Session) (*CompletionResult, error) {
	summary, _ := domain.StepAt(domain.TotalSteps())
	if err := summary.Validate(sess.Profile.Profile()); err != nil {
		return nil, err
	}
	id := sess.Identity()
	res, err := s.coordinator.Complete(ctx, id, sess.Profile)
	if err != nil {
		return nil, err
	}
	// The backend now holds the profile; the next request starts from storage.
	s.evict(id.UID, sess)
	return res, nil
}

func (s *onboardingService) move(ctx context.Context, id Identity, fn func(context.Context, *StepSequencer) (TransitionResult, error)) (State, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return State{}, err
	}
	if _, err := fn(ctx, sess.Steps); err != nil {
		return State{}, err
	}
	return s.state(ctx, sess)
}

func (s *onboardingService) state(ctx context.Context, sess *Session) (State, error) {
	n := sess.Steps.Current()
	step, err := domain.StepAt(n)
	if err != nil {
		return State{}, err
	}
	completed, err := s.coordinator.IsComplete(ctx, sess.Identity().UID)
	if err != nil {
		return State{}, err
	}
	profile := sess.Profile.Profile()
	return State{
		Step:        step,
		CurrentStep: n,
		TotalSteps:  sess.Steps.Total(),
		Profile:     profile,
		Derived:     nutrition.Derive(profile, s.now()),
		Completed:   completed,
	}, nil
}
