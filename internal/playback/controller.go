// Package playback drives a single attached stream: lifecycle state,
// transport controls, and bounded error recovery. One Controller owns
// one player.Handle at a time; resolution and navigation live a level
// up in the session engine.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vesperhq/vesper/internal/player"
)

// State is the controller's lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StateAttaching State = "attaching"
	StateReady     State = "ready"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateEnded     State = "ended"
	StateError     State = "error"
)

func (s State) String() string {
	return string(s)
}

// Config bounds the controller's recovery behavior
type Config struct {
	// NetworkRetries is the retry budget for transient network errors
	// within one attachment. Stable playback refills the budget.
	NetworkRetries int
	// NetworkBackoff is the base delay between network retries. The
	// delay grows linearly with the attempt number.
	NetworkBackoff time.Duration
	// AutoplayOnReady starts playback as soon as the stream is ready
	AutoplayOnReady bool
}

// DefaultConfig returns the stock recovery bounds
func DefaultConfig() Config {
	return Config{
		NetworkRetries:  3,
		NetworkBackoff:  2 * time.Second,
		AutoplayOnReady: true,
	}
}

// Events are the controller's telemetry callbacks. All fields are
// optional and invoked without the controller lock held.
type Events struct {
	OnStateChange func(from, to State)
	OnProgress    func(progress player.Progress)
	OnRecovery    func(class ErrorClass, attempt int)
	OnFailure     func(err error)
}

// Controller manages one attached stream
type Controller struct {
	mu     sync.Mutex
	handle player.Handle
	cfg    Config
	events Events
	logger *slog.Logger

	state        State
	url          string
	options      player.LoadOptions
	lastProgress player.Progress
	hasProgress  bool

	networkAttempts int
	mediaRecovered  bool
	recovering      bool
}

// NewController creates a controller around a handle
func NewController(handle player.Handle, cfg Config, events Events, logger *slog.Logger) *Controller {
	if cfg.NetworkRetries == 0 {
		cfg.NetworkRetries = 3
	}
	if cfg.NetworkBackoff == 0 {
		cfg.NetworkBackoff = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		handle: handle,
		cfg:    cfg,
		events: events,
		logger: logger,
		state:  StateIdle,
	}

	handle.OnProgress(c.handleProgress)
	handle.OnEnd(c.handleEnd)
	handle.OnError(c.handleError)

	return c
}

// Attach loads a stream URL into the handle and begins the
// Attaching -> Ready transition. Resets the recovery budget. A newer
// attach supersedes whatever is in flight: the handle releases the
// previous stream as part of the load.
func (c *Controller) Attach(ctx context.Context, url string, options player.LoadOptions) error {
	c.mu.Lock()
	c.url = url
	c.options = options
	c.lastProgress = player.Progress{}
	c.hasProgress = false
	c.networkAttempts = 0
	c.mediaRecovered = false
	c.recovering = false
	c.setStateLocked(StateAttaching)
	c.mu.Unlock()

	if err := c.handle.Load(ctx, url, options); err != nil {
		c.mu.Lock()
		c.setStateLocked(StateError)
		c.mu.Unlock()
		return fmt.Errorf("attach failed: %w", err)
	}
	return nil
}

// Play resumes playback
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateReady, StatePaused, StatePlaying:
	default:
		return fmt.Errorf("cannot play in state %s", state)
	}

	if err := c.handle.Resume(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.setStateLocked(StatePlaying)
	c.mu.Unlock()
	return nil
}

// Pause pauses playback
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StatePlaying, StateReady, StatePaused:
	default:
		return fmt.Errorf("cannot pause in state %s", state)
	}

	if err := c.handle.Pause(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.setStateLocked(StatePaused)
	c.mu.Unlock()
	return nil
}

// Seek jumps to position, clamped to the known stream bounds
func (c *Controller) Seek(ctx context.Context, position time.Duration) error {
	c.mu.Lock()
	duration := c.lastProgress.Duration
	c.mu.Unlock()

	if position < 0 {
		position = 0
	}
	if duration > 0 && position > duration {
		position = duration
	}
	return c.handle.Seek(ctx, position)
}

// SetVolume sets the output volume
func (c *Controller) SetVolume(ctx context.Context, percent int) error {
	return c.handle.SetVolume(ctx, percent)
}

// SetMuted toggles mute
func (c *Controller) SetMuted(ctx context.Context, muted bool) error {
	return c.handle.SetMuted(ctx, muted)
}

// SetRate sets the playback rate
func (c *Controller) SetRate(ctx context.Context, rate float64) error {
	return c.handle.SetRate(ctx, rate)
}

// SetFullscreen toggles fullscreen, best effort
func (c *Controller) SetFullscreen(ctx context.Context, on bool) error {
	return c.handle.SetFullscreen(ctx, on)
}

// State reports the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the last observed playback position
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProgress.Position
}

// Progress returns the last observed progress snapshot
func (c *Controller) Progress() (player.Progress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProgress, c.hasProgress
}

// Detach releases the handle and returns the controller to Idle
func (c *Controller) Detach(ctx context.Context) error {
	c.mu.Lock()
	c.url = ""
	c.networkAttempts = 0
	c.mediaRecovered = false
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	return c.handle.Release(ctx)
}

// handleProgress records progress and advances the state machine
func (c *Controller) handleProgress(progress player.Progress) {
	c.mu.Lock()

	c.lastProgress = progress
	c.hasProgress = true

	// Healthy progress refills the network retry budget
	c.networkAttempts = 0

	switch c.state {
	case StateAttaching:
		c.setStateLocked(StateReady)
		if c.cfg.AutoplayOnReady {
			c.setStateLocked(StatePlaying)
		}
	case StatePlaying:
		if progress.Paused {
			c.setStateLocked(StatePaused)
		}
	case StatePaused:
		if !progress.Paused {
			c.setStateLocked(StatePlaying)
		}
	}

	callback := c.events.OnProgress
	autopause := c.state == StateReady && !c.cfg.AutoplayOnReady && !progress.Paused
	c.mu.Unlock()

	if autopause {
		_ = c.handle.Pause(context.Background())
	}
	if callback != nil {
		callback(progress)
	}
}

// handleEnd marks the natural end of the stream
func (c *Controller) handleEnd() {
	c.mu.Lock()
	c.setStateLocked(StateEnded)
	c.mu.Unlock()
}

// handleError classifies the failure and either schedules a recovery
// attempt or fails the attachment
func (c *Controller) handleError(err error) {
	class := Classify(err)

	c.mu.Lock()
	if c.recovering || c.state == StateError || c.state == StateIdle {
		c.mu.Unlock()
		return
	}

	switch class {
	case ErrorClassNetwork:
		c.networkAttempts++
		if c.networkAttempts > c.cfg.NetworkRetries {
			c.failLocked(fmt.Errorf("network retry budget exhausted after %d attempts: %w", c.networkAttempts-1, err))
			return
		}
		attempt := c.networkAttempts
		c.recovering = true
		c.mu.Unlock()

		c.logger.Warn("transient network failure, reattaching",
			"attempt", attempt,
			"budget", c.cfg.NetworkRetries,
			"error", err,
		)
		go c.recover(class, attempt, c.cfg.NetworkBackoff*time.Duration(attempt))

	case ErrorClassMedia:
		if c.mediaRecovered {
			c.failLocked(fmt.Errorf("media error recurred after recovery: %w", err))
			return
		}
		c.mediaRecovered = true
		c.recovering = true
		c.mu.Unlock()

		c.logger.Warn("media failure, reattaching once", "error", err)
		go c.recover(class, 1, 0)

	default:
		c.failLocked(err)
	}
}

// failLocked moves to Error and reports the failure. Unlocks.
func (c *Controller) failLocked(err error) {
	c.setStateLocked(StateError)
	callback := c.events.OnFailure
	c.mu.Unlock()

	c.logger.Error("playback failed", "error", err)
	if callback != nil {
		callback(err)
	}
	_ = c.handle.Release(context.Background())
}

// recover reattaches the current URL at the last known position
func (c *Controller) recover(class ErrorClass, attempt int, delay time.Duration) {
	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	url := c.url
	options := c.options
	if c.hasProgress {
		options.StartAt = c.lastProgress.Position
	}
	c.setStateLocked(StateAttaching)
	c.recovering = false
	recoveryCallback := c.events.OnRecovery
	c.mu.Unlock()

	if recoveryCallback != nil {
		recoveryCallback(class, attempt)
	}

	_ = c.handle.Release(context.Background())

	if err := c.handle.Load(context.Background(), url, options); err != nil {
		c.mu.Lock()
		c.failLocked(fmt.Errorf("recovery reattach failed: %w", err))
	}
}

// setStateLocked transitions state and fires the change callback
// asynchronously (lock must be held)
func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	from := c.state
	c.state = next

	c.logger.Debug("playback state change", "from", from, "to", next)

	if callback := c.events.OnStateChange; callback != nil {
		go callback(from, next)
	}
}
