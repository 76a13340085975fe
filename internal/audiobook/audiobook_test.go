package audiobook

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vesperhq/vesper/internal/config"
	"github.com/vesperhq/vesper/internal/database"
)

func TestSleepTimer_Countdown(t *testing.T) {
	expired := make(chan struct{}, 1)
	timer := NewSleepTimer(func() { expired <- struct{}{} })
	defer timer.Cancel()

	timer.StartCountdown(20 * time.Millisecond)
	assert.Equal(t, SleepCountdown, timer.Mode())

	remaining, ok := timer.Remaining()
	require.True(t, ok)
	assert.LessOrEqual(t, remaining, 20*time.Millisecond)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("countdown never expired")
	}
	assert.Equal(t, SleepOff, timer.Mode())
}

func TestSleepTimer_EndOfChapter(t *testing.T) {
	expired := make(chan struct{}, 1)
	timer := NewSleepTimer(func() { expired <- struct{}{} })
	defer timer.Cancel()

	timer.ArmEndOfChapter()
	assert.Equal(t, SleepEndOfChapter, timer.Mode())

	// No countdown is running in this mode
	_, ok := timer.Remaining()
	assert.False(t, ok)

	// Mid-chapter time passing does nothing
	select {
	case <-expired:
		t.Fatal("fired before the chapter ended")
	case <-time.After(50 * time.Millisecond):
	}

	timer.ChapterEnded()
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("never fired at the chapter boundary")
	}
	assert.Equal(t, SleepOff, timer.Mode())

	// A later chapter boundary is ignored once disarmed
	timer.ChapterEnded()
	select {
	case <-expired:
		t.Fatal("fired while disarmed")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSleepTimer_CancelAndExtend(t *testing.T) {
	expired := make(chan struct{}, 1)
	timer := NewSleepTimer(func() { expired <- struct{}{} })

	timer.StartCountdown(20 * time.Millisecond)
	timer.Cancel()

	select {
	case <-expired:
		t.Fatal("fired after cancel")
	case <-time.After(60 * time.Millisecond):
	}

	timer.StartCountdown(30 * time.Millisecond)
	timer.Extend(time.Hour)

	remaining, ok := timer.Remaining()
	require.True(t, ok)
	assert.Greater(t, remaining, 30*time.Minute)
	timer.Cancel()
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	return db
}

func TestBookmarks_CRUD(t *testing.T) {
	b := NewBookmarks(openTestDB(t))
	ctx := context.Background()

	first, err := b.Add(ctx, "book-1", 2, "ch-3", "great quote", 754*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "great quote", first.Label)
	assert.Equal(t, 754*time.Second, first.Position)

	// Empty labels get a generated timestamp label
	second, err := b.Add(ctx, "book-1", 2, "ch-3", "", 3725*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Bookmark at 1:02:05", second.Label)

	list, err := b.List(ctx, "book-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, b.Rename(ctx, first.ID, "the red pill"))
	list, err = b.List(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "the red pill", list[0].Label)

	require.NoError(t, b.Delete(ctx, first.ID))
	list, err = b.List(ctx, "book-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	// Other content ids are untouched
	other, err := b.List(ctx, "book-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBookmarks_Validation(t *testing.T) {
	b := NewBookmarks(openTestDB(t))
	ctx := context.Background()

	_, err := b.Add(ctx, "", 0, "", "", time.Minute)
	assert.Error(t, err)

	assert.Error(t, b.Rename(ctx, 1, ""))
}

func TestFormatPosition(t *testing.T) {
	assert.Equal(t, "0:05", formatPosition(5*time.Second))
	assert.Equal(t, "12:34", formatPosition(754*time.Second))
	assert.Equal(t, "1:02:05", formatPosition(3725*time.Second))
}
