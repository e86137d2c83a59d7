package storage

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/goccy/go-json"
)

// Fixed keys of the onboarding subsystem. No other code reads or writes them.
const (
	KeyProfileDraft       = "profile_draft"
	KeyCurrentStep        = "current_step"
	KeyOnboardingComplete = "onboarding_complete"
)

// ErrKeyNotFound is returned by Get when the key has never been set (or expired).
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the local persistent storage used for onboarding progress.
type KeyValueStore interface {
	// Get returns the stored bytes or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// UserKey scopes a fixed key to one user.
func UserKey(uid, name string) string {
	return fmt.Sprintf("onboarding/%s/%s", uid, name)
}

// Durable reports whether key must never expire. Drafts and step positions
// may age out, the completion flag may not.
func Durable(key string) bool {
	return path.Base(key) == KeyOnboardingComplete
}

// GetJSON decodes the value at key into dest. found is false for ErrKeyNotFound.
func GetJSON(ctx context.Context, s KeyValueStore, key string, dest interface{}) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value at key as JSON.
func SetJSON(ctx context.Context, s KeyValueStore, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
