package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"alcyxob/nutrition-onboarding/internal/domain"
	"alcyxob/nutrition-onboarding/internal/metrics"
	"alcyxob/nutrition-onboarding/internal/storage"
)

// ProfileStore owns one user's draft profile for the onboarding session.
// It is the only writer of the draft key and performs no validation.
type ProfileStore struct {
	mu      sync.Mutex
	uid     string
	kv      storage.KeyValueStore
	profile domain.UserProfile
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewProfileStore creates a store with an empty draft.
func NewProfileStore(uid string, kv storage.KeyValueStore, log zerolog.Logger, m *metrics.Metrics) *ProfileStore {
	return &ProfileStore{
		uid:     uid,
		kv:      kv,
		log:     log.With().Str("component", "profile_store").Str("uid", uid).Logger(),
		metrics: m,
	}
}

// LoadProfileStore restores a previously persisted draft. A missing draft is
// not an error; a failed read returns a *domain.PersistenceError.
func LoadProfileStore(ctx context.Context, uid string, kv storage.KeyValueStore, log zerolog.Logger, m *metrics.Metrics) (*ProfileStore, error) {
	s := NewProfileStore(uid, kv, log, m)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory draft with the persisted one, if any.
func (s *ProfileStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.UserKey(s.uid, storage.KeyProfileDraft)
	var draft domain.UserProfile
	found, err := storage.GetJSON(ctx, s.kv, key, &draft)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load profile draft")
		return &domain.PersistenceError{Op: "read", Key: key, Err: err}
	}
	if found {
		s.profile = draft
	}
	return nil
}

// UpdateProfile merges patch into the draft and persists it. The merge is kept
// even when persisting fails; the caller gets a *domain.PersistenceError and
// may retry. Updates are applied and persisted in call order.
func (s *ProfileStore) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profile = patch.Apply(s.profile)
	snapshot := s.profile.Clone()

	key := storage.UserKey(s.uid, storage.KeyProfileDraft)
	if err := storage.SetJSON(ctx, s.kv, key, snapshot); err != nil {
		s.log.Error().Err(err).Msg("failed to persist profile draft")
		s.metrics.ProfileUpdate(err)
		return snapshot, &domain.PersistenceError{Op: "write", Key: key, Err: err}
	}

	s.metrics.ProfileUpdate(nil)
	return snapshot, nil
}

// Profile returns a copy of the current draft.
func (s *ProfileStore) Profile() domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// Save persists the current draft without changing it.
func (s *ProfileStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.UserKey(s.uid, storage.KeyProfileDraft)
	if err := storage.SetJSON(ctx, s.kv, key, s.profile); err != nil {
		s.log.Error().Err(err).Msg("failed to persist profile draft")
		return &domain.PersistenceError{Op: "write", Key: key, Err: err}
	}
	return nil
}
