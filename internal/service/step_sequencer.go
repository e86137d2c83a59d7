package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/metrics"
	"alcyxob/nutrition-onboarding/internal/storage"
)

// CompletionFunc runs when Next is called on the last step.
type CompletionFunc func(ctx context.Context) error

// TransitionResult is the state after a transition. Completed is only set by
// Next on the last step once the completion handler succeeded.
type TransitionResult struct {
	Step      int  `json:"step"`
	Total     int  `json:"total"`
	Completed bool `json:"completed"`
}

// StepSequencer moves one user through steps 1..total. Transitions are
// serialized: each one persists the new index before it becomes current, so a
// failed write leaves the sequencer where it was.
type StepSequencer struct {
	mu         sync.Mutex
	uid        string
	kv         storage.KeyValueStore
	current    int
	total      int
	onComplete CompletionFunc
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// NewStepSequencer starts at step 1.
func NewStepSequencer(uid string, kv storage.KeyValueStore, total int, log zerolog.Logger, m *metrics.Metrics) *StepSequencer {
	if total < 1 {
		total = 1
	}
	return &StepSequencer{
		uid:     uid,
		kv:      kv,
		current: 1,
		total:   total,
		log:     log.With().Str("component", "step_sequencer").Str("uid", uid).Logger(),
		metrics: m,
	}
}

// LoadStepSequencer resumes at the persisted step, clamped to [1, total].
func LoadStepSequencer(ctx context.Context, uid string, kv storage.KeyValueStore, total int, log zerolog.Logger, m *metrics.Metrics) (*StepSequencer, error) {
	s := NewStepSequencer(uid, kv, total, log, m)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload moves to the persisted step, if any. It waits for a transition in
// progress to finish.
func (s *StepSequencer) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.UserKey(s.uid, storage.KeyCurrentStep)
	var step int
	found, err := storage.GetJSON(ctx, s.kv, key, &step)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load current step")
		return &domain.PersistenceError{Op: "read", Key: key, Err: err}
	}
	if found {
		s.current = clampStep(step, s.total)
		s.log.Debug().Int("step", s.current).Msg("resumed onboarding")
	}
	return nil
}

// SetCompletionHandler installs the function Next calls on the last step.
func (s *StepSequencer) SetCompletionHandler(fn CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

func (s *StepSequencer) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *StepSequencer) Total() int {
	return s.total
}

// Next advances by one. On the last step it runs the completion handler
// instead and stays on the last step whether or not completion succeeds.
func (s *StepSequencer) Next(ctx context.Context) (TransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < s.total {
		return s.transition(ctx, "next", s.current+1)
	}

	if s.onComplete == nil {
		s.metrics.StepTransition("complete", nil)
		return s.result(true), nil
	}
	if err := s.onComplete(ctx); err != nil {
		s.log.Warn().Err(err).Msg("onboarding completion failed")
		s.metrics.StepTransition("complete", err)
		return s.result(false), err
	}
	s.metrics.StepTransition("complete", nil)
	return s.result(true), nil
}

// Back moves back one step; it is a no-op on step 1.
func (s *StepSequencer) Back(ctx context.Context) (TransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ctx, "back", s.current-1)
}

// SkipToEnd jumps to the last step. Completion still requires Next.
func (s *StepSequencer) SkipToEnd(ctx context.Context) (TransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(ctx, "skip", s.total)
}

// JumpTo sets the step directly. n outside [1, total] is rejected with
// domain.ErrStepOutOfRange.
func (s *StepSequencer) JumpTo(ctx context.Context, n int) (TransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > s.total {
		s.metrics.StepTransition("jump", domain.ErrStepOutOfRange)
		return s.result(false), domain.ErrStepOutOfRange
	}
	return s.transition(ctx, "jump", n)
}

// transition must be called with mu held.
func (s *StepSequencer) transition(ctx context.Context, action string, target int) (TransitionResult, error) {
	target = clampStep(target, s.total)
	if target == s.current {
		s.metrics.StepTransition(action, nil)
		return s.result(false), nil
	}

	key := storage.UserKey(s.uid, storage.KeyCurrentStep)
	if err := s.kv.Set(ctx, key, []byte(strconv.Itoa(target))); err != nil {
		s.log.Error().Err(err).Str("action", action).Int("target", target).Msg("failed to persist step")
		s.metrics.StepTransition(action, err)
		return s.result(false), &domain.PersistenceError{Op: "write", Key: key, Err: err}
	}

	s.log.Debug().Str("action", action).Int("from", s.current).Int("to", target).Msg("step transition")
	s.current = target
	s.metrics.StepTransition(action, nil)
	return s.result(false), nil
}

func (s *StepSequencer) result(completed bool) TransitionResult {
	return TransitionResult{Step: s.current, Total: s.total, Completed: completed}
}

func clampStep(n, total int) int {
	if n < 1 {
		return 1
	}
	if n > total {
		return total
	}
	return n
}
