// Package audiobook adds listening-specific behavior on top of the
// playback engine: the sleep timer and position bookmarks.
package audiobook

import (
	"sync"
	"time"
)

// SleepMode selects how the sleep timer ends playback
type SleepMode string

const (
	SleepOff SleepMode = "off"
	// SleepCountdown pauses after a fixed duration
	SleepCountdown SleepMode = "countdown"
	// SleepEndOfChapter pauses when the current chapter finishes,
	// however long that takes
	SleepEndOfChapter SleepMode = "end_of_chapter"
)

// SleepTimer pauses playback after a countdown or at the next chapter
// boundary. onExpire is invoked once per arming, off the timer
// goroutine, without internal locks held.
type SleepTimer struct {
	mu       sync.Mutex
	mode     SleepMode
	deadline time.Time
	timer    *time.Timer
	onExpire func()
}

// NewSleepTimer creates a disarmed timer
func NewSleepTimer(onExpire func()) *SleepTimer {
	return &SleepTimer{mode: SleepOff, onExpire: onExpire}
}

// StartCountdown arms the timer for d, replacing any previous arming
func (t *SleepTimer) StartCountdown(d time.Duration) {
	t.mu.Lock()
	t.stopLocked()
	t.mode = SleepCountdown
	t.deadline = time.Now().Add(d)
	t.timer = time.AfterFunc(d, t.expire)
	t.mu.Unlock()
}

// ArmEndOfChapter arms the timer to fire at the next chapter boundary
func (t *SleepTimer) ArmEndOfChapter() {
	t.mu.Lock()
	t.stopLocked()
	t.mode = SleepEndOfChapter
	t.mu.Unlock()
}

// Extend pushes the countdown deadline out by d. A no-op unless a
// countdown is running.
func (t *SleepTimer) Extend(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != SleepCountdown || t.timer == nil {
		return
	}
	t.timer.Stop()
	t.deadline = t.deadline.Add(d)
	t.timer = time.AfterFunc(time.Until(t.deadline), t.expire)
}

// Cancel disarms the timer
func (t *SleepTimer) Cancel() {
	t.mu.Lock()
	t.stopLocked()
	t.mode = SleepOff
	t.mu.Unlock()
}

// ChapterEnded reports a chapter boundary. Fires the timer when armed
// for end of chapter.
func (t *SleepTimer) ChapterEnded() {
	t.mu.Lock()
	armed := t.mode == SleepEndOfChapter
	t.mu.Unlock()
	if armed {
		t.expire()
	}
}

// Mode returns the current arming mode
func (t *SleepTimer) Mode() SleepMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Remaining returns the countdown time left. ok is false unless a
// countdown is running.
func (t *SleepTimer) Remaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != SleepCountdown {
		return 0, false
	}
	remaining := time.Until(t.deadline)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

func (t *SleepTimer) expire() {
	t.mu.Lock()
	if t.mode == SleepOff {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.mode = SleepOff
	callback := t.onExpire
	t.mu.Unlock()

	if callback != nil {
		callback()
	}
}

func (t *SleepTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
