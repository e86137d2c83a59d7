package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserKey(t *testing.T) {
	assert.Equal(t, "onboarding/u1/profile_draft", UserKey("u1", KeyProfileDraft))
}

func TestDurable(t *testing.T) {
	assert.True(t, Durable(UserKey("u1", KeyOnboardingComplete)))
	assert.False(t, Durable(UserKey("u1", KeyProfileDraft)))
	assert.False(t, Durable(UserKey("u1", KeyCurrentStep)))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("Error_MissingKey", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Success_SetGetDelete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k", []byte("v")))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		require.NoError(t, s.Delete(ctx, "k"))
		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Success_ReturnedBytesAreCopies", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "c", []byte("abc")))
		got, _ := s.Get(ctx, "c")
		got[0] = 'z'
		again, _ := s.Get(ctx, "c")
		assert.Equal(t, []byte("abc"), again)
	})
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type draft struct {
		Name string `json:"name"`
		Step int    `json:"step"`
	}

	t.Run("Success_RoundTrip", func(t *testing.T) {
		require.NoError(t, SetJSON(ctx, s, "d", draft{Name: "Ana", Step: 3}))
		var out draft
		found, err := GetJSON(ctx, s, "d", &out)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, draft{Name: "Ana", Step: 3}, out)
	})

	t.Run("Success_NotFound", func(t *testing.T) {
		var out draft
		found, err := GetJSON(ctx, s, "missing", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Error_CorruptValue", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "bad", []byte("{not json")))
		var out draft
		_, err := GetJSON(ctx, s, "bad", &out)
		assert.Error(t, err)
	})
}
