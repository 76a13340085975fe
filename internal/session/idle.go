package session

import (
	"sync"
	"time"
)

// IdleTimer hides playback controls after a period without input. The
// countdown is suspended while a menu is open so controls never vanish
// mid-interaction.
type IdleTimer struct {
	mu        sync.Mutex
	d         time.Duration
	timer     *time.Timer
	onIdle    func()
	suspended bool
	stopped   bool
}

// NewIdleTimer creates a stopped timer; call Touch to arm it
func NewIdleTimer(d time.Duration, onIdle func()) *IdleTimer {
	return &IdleTimer{d: d, onIdle: onIdle}
}

// Touch restarts the countdown
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.suspended {
		return
	}
	t.resetLocked()
}

// Suspend pauses the countdown until Resume
func (t *IdleTimer) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Resume restarts the countdown after a Suspend
func (t *IdleTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || !t.suspended {
		return
	}
	t.suspended = false
	t.resetLocked()
}

// Stop disarms the timer permanently
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *IdleTimer) resetLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.d, func() {
		t.mu.Lock()
		fire := !t.stopped && !t.suspended
		t.mu.Unlock()
		if fire && t.onIdle != nil {
			t.onIdle()
		}
	})
}
