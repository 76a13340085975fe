package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Defaults(t *testing.T) {
	store := NewStore(NewMemoryRepository(), "en")

	assert.Equal(t, "", store.LastProvider())
	assert.Equal(t, "en", store.LastLanguage())
	assert.Equal(t, 1.0, store.PlaybackRate())
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(NewMemoryRepository(), "en")

	require.NoError(t, store.SetLastProvider("torstream"))
	require.NoError(t, store.SetLastLanguage("es-419"))
	require.NoError(t, store.SetPlaybackRate(1.25))

	assert.Equal(t, "torstream", store.LastProvider())
	assert.Equal(t, "es-419", store.LastLanguage())
	assert.Equal(t, 1.25, store.PlaybackRate())
}

func TestStore_InvalidRateFallsBack(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Set(KeyPlaybackRate, "not-a-number"))

	store := NewStore(repo, "en")
	assert.Equal(t, 1.0, store.PlaybackRate())

	require.NoError(t, repo.Set(KeyPlaybackRate, "-2"))
	assert.Equal(t, 1.0, store.PlaybackRate())
}

func TestStore_EmptyDefaultLanguage(t *testing.T) {
	store := NewStore(NewMemoryRepository(), "")
	assert.Equal(t, "en", store.LastLanguage())
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Set("k", "v"))

	_, ok, err := repo.Get("k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Delete("k"))
	_, ok, err = repo.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
