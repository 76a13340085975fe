// Package mpv implements player.Handle on top of an mpv process driven
// over its JSON IPC socket.
package mpv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/diniamo/gopv"

	"github.com/vesperhq/vesper/internal/player"
)

// Handle implements player.Handle using mpv with IPC
type Handle struct {
	mu sync.RWMutex

	client    *gopv.Client
	cmd       *exec.Cmd
	ipcConfig *IPCConfig
	platform  Platform

	state      player.State
	currentURL string
	options    player.LoadOptions

	onProgress func(player.Progress)
	onEnd      func()
	onError    func(error)

	ctx          context.Context
	cancel       context.CancelFunc
	clientClosed bool

	debug          bool
	loadUserConfig bool
	pollInterval   time.Duration
	attachTimeout  time.Duration
	logger         *slog.Logger
}

// Options configures a new mpv handle
type Options struct {
	Debug          bool
	LoadUserConfig bool
	PollInterval   time.Duration
	// AttachTimeout bounds how long a Load waits for the IPC endpoint
	// before the attach is reported failed
	AttachTimeout time.Duration
	Logger        *slog.Logger
}

// New creates an mpv handle. Fails fast when the mpv binary is missing.
func New(opts Options) (*Handle, error) {
	platform := DetectPlatform()

	if _, err := FindMPVExecutable(platform); err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	}
	if opts.AttachTimeout == 0 {
		opts.AttachTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Handle{
		state:          player.StateIdle,
		platform:       platform,
		debug:          opts.Debug,
		loadUserConfig: opts.LoadUserConfig,
		pollInterval:   opts.PollInterval,
		attachTimeout:  opts.AttachTimeout,
		logger:         opts.Logger,
	}, nil
}

// Load launches mpv against the stream URL. Returns after the process
// starts; IPC attachment continues asynchronously and failures are
// reported through OnError.
func (h *Handle) Load(ctx context.Context, url string, options player.LoadOptions) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != player.StateIdle && h.state != player.StateReleased {
		if err := h.releaseLocked(); err != nil {
			return fmt.Errorf("failed to release previous stream: %w", err)
		}
	}

	mpvExec := GetMPVExecutable(h.platform)
	if _, err := exec.LookPath(mpvExec); err != nil {
		return fmt.Errorf("mpv executable not found in PATH (%s): %w", mpvExec, err)
	}

	ipcConfig, err := GetIPCConfig(h.platform)
	if err != nil {
		return fmt.Errorf("failed to generate IPC config: %w", err)
	}
	h.ipcConfig = ipcConfig

	args := h.buildArgs(url, options)

	h.cmd = exec.Command(mpvExec, args...)

	// Detach fully from the terminal so mpv cannot steal keyboard input
	// or corrupt the TUI display
	h.cmd.Stdin = nil
	h.cmd.Stdout = nil
	h.cmd.Stderr = nil

	setupProcessAttributes(h.cmd)

	if err := h.cmd.Start(); err != nil {
		h.cleanupIPC()
		return fmt.Errorf("failed to start %s: %w", mpvExec, err)
	}

	h.currentURL = url
	h.options = options
	h.state = player.StateLoading
	h.clientClosed = false

	h.ctx, h.cancel = context.WithCancel(context.Background())
	go h.attach(ctx, ipcConfig)

	return nil
}

// attach waits for the IPC endpoint and connects the gopv client
func (h *Handle) attach(ctx context.Context, ipcConfig *IPCConfig) {
	initCtx, cancel := context.WithTimeout(ctx, h.attachTimeout)
	defer cancel()

	if err := h.waitForIPC(initCtx); err != nil {
		h.failAttach(fmt.Errorf("timeout waiting for mpv IPC at %s: %w", ipcConfig.Address, err))
		return
	}

	client, err := gopv.Connect(GetGopvConnectionString(ipcConfig), func(err error) {
		h.mu.RLock()
		callback := h.onError
		h.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	})
	if err != nil {
		h.failAttach(fmt.Errorf("failed to connect to mpv IPC at %s: %w", ipcConfig.Address, err))
		return
	}

	h.mu.Lock()
	h.client = client
	h.state = player.StateActive
	h.mu.Unlock()

	h.logger.Debug("mpv attached", "ipc", ipcConfig.Address)

	go h.monitorProgress()
	go h.monitorProcess()
}

// failAttach kills the process, cleans up, and reports the error
func (h *Handle) failAttach(err error) {
	h.mu.Lock()
	callback := h.onError
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	h.cleanupIPC()
	h.state = player.StateError
	h.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// Pause pauses playback
func (h *Handle) Pause(ctx context.Context) error {
	return h.setProperty("pause", true)
}

// Resume resumes playback
func (h *Handle) Resume(ctx context.Context) error {
	return h.setProperty("pause", false)
}

// Seek jumps to an absolute position
func (h *Handle) Seek(ctx context.Context, position time.Duration) error {
	return h.setProperty("time-pos", position.Seconds())
}

// SetVolume sets the output volume, clamped to 0-100
func (h *Handle) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return h.setProperty("volume", float64(percent))
}

// SetMuted mutes or unmutes the output
func (h *Handle) SetMuted(ctx context.Context, muted bool) error {
	return h.setProperty("mute", muted)
}

// SetRate sets the playback rate
func (h *Handle) SetRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid playback rate %v", rate)
	}
	return h.setProperty("speed", rate)
}

// SetFullscreen toggles the window's fullscreen mode. Best effort: some
// window managers refuse.
func (h *Handle) SetFullscreen(ctx context.Context, on bool) error {
	return h.setProperty("fullscreen", on)
}

func (h *Handle) setProperty(name string, value interface{}) error {
	h.mu.RLock()
	client := h.client
	h.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("player not attached")
	}
	if _, err := client.Request("set_property", name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

// Progress returns the current playback progress
func (h *Handle) Progress(ctx context.Context) (*player.Progress, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.client == nil {
		return nil, fmt.Errorf("player not attached")
	}
	if h.state == player.StateReleased {
		return nil, fmt.Errorf("player is released")
	}

	progress, err := h.progressLocked()
	if err != nil {
		return nil, fmt.Errorf("mpv IPC error: %w", err)
	}
	return progress, nil
}

// progressLocked polls properties without locking (lock must be held)
func (h *Handle) progressLocked() (*player.Progress, error) {
	var timePos, duration, buffered, volume, rate float64
	var paused, muted, eof bool
	var propertyErrors int

	if result, err := h.client.Request("get_property", "time-pos"); err == nil {
		if val, ok := result.(float64); ok {
			timePos = val
		}
	} else {
		propertyErrors++
	}

	if result, err := h.client.Request("get_property", "duration"); err == nil {
		if val, ok := result.(float64); ok {
			duration = val
		}
	} else {
		propertyErrors++
	}

	// Optional: unavailable for some demuxers, never counted as a failure
	if result, err := h.client.Request("get_property", "demuxer-cache-time"); err == nil {
		if val, ok := result.(float64); ok {
			buffered = val
		}
	}

	if result, err := h.client.Request("get_property", "pause"); err == nil {
		if val, ok := result.(bool); ok {
			paused = val
		}
	} else {
		propertyErrors++
	}

	if result, err := h.client.Request("get_property", "mute"); err == nil {
		if val, ok := result.(bool); ok {
			muted = val
		}
	}

	if result, err := h.client.Request("get_property", "eof-reached"); err == nil {
		if val, ok := result.(bool); ok {
			eof = val
		}
	} else {
		propertyErrors++
	}

	if result, err := h.client.Request("get_property", "volume"); err == nil {
		if val, ok := result.(float64); ok {
			volume = val
		} else {
			volume = 100
		}
	}

	if result, err := h.client.Request("get_property", "speed"); err == nil {
		if val, ok := result.(float64); ok {
			rate = val
		} else {
			rate = 1.0
		}
	}

	// Too many failures means the IPC connection is dead
	if propertyErrors >= 3 {
		return nil, fmt.Errorf("IPC connection failed (failed to get %d properties)", propertyErrors)
	}

	var percent float64
	if duration > 0 {
		percent = (timePos / duration) * 100
	}

	return &player.Progress{
		Position:    time.Duration(timePos * float64(time.Second)),
		Duration:    time.Duration(duration * float64(time.Second)),
		BufferedEnd: time.Duration(buffered * float64(time.Second)),
		Percent:     percent,
		Paused:      paused,
		Muted:       muted,
		Volume:      int(volume),
		Rate:        rate,
		EOF:         eof,
	}, nil
}

// OnProgress sets the progress update callback
func (h *Handle) OnProgress(callback func(progress player.Progress)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onProgress = callback
}

// OnEnd sets the end-of-stream callback
func (h *Handle) OnEnd(callback func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEnd = callback
}

// OnError sets the error callback
func (h *Handle) OnError(callback func(err error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = callback
}

// State reports the handle lifecycle state
func (h *Handle) State() player.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Release detaches and tears down the mpv process
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseLocked()
}

// releaseLocked tears down without locking (lock must be held)
func (h *Handle) releaseLocked() error {
	if h.state == player.StateReleased || h.state == player.StateIdle {
		return nil
	}
	if h.clientClosed {
		return nil
	}
	h.clientClosed = true
	h.state = player.StateReleased

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	// Ask mpv to quit and let the process exit on its own. When it
	// does, the IPC connection gets EOF and gopv closes itself; calling
	// Close here as well would double-close.
	if h.client != nil {
		client := h.client
		h.client = nil
		go func() {
			done := make(chan struct{})
			go func() {
				_, _ = client.Request("quit")
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
			}
		}()
	}

	// monitorProcess is blocked in Wait and handles the exit
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	h.cmd = nil

	h.cleanupIPC()
	h.currentURL = ""

	return nil
}

// cleanupIPC removes socket files left behind by the IPC endpoint
func (h *Handle) cleanupIPC() {
	if h.ipcConfig != nil && h.ipcConfig.IsSocket {
		_ = os.Remove(h.ipcConfig.Address)
	}
	h.ipcConfig = nil
}

// monitorProgress polls progress and fires callbacks until released
func (h *Handle) monitorProgress() {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			if h.client == nil {
				h.mu.RUnlock()
				return
			}
			progress, err := h.progressLocked()
			callback := h.onProgress
			endCallback := h.onEnd
			h.mu.RUnlock()

			if err != nil {
				continue
			}

			if callback != nil {
				callback(*progress)
			}

			if progress.EOF && endCallback != nil {
				endCallback()
				return
			}
		}
	}
}

// monitorProcess waits on the mpv process and reports unexpected exits
func (h *Handle) monitorProcess() {
	h.mu.RLock()
	cmd := h.cmd
	h.mu.RUnlock()

	if cmd == nil {
		return
	}

	err := cmd.Wait()

	h.mu.RLock()
	errorCallback := h.onError
	currentState := h.state
	h.mu.RUnlock()

	// A non-zero exit after the user released the handle is expected
	if err != nil && errorCallback != nil && currentState != player.StateReleased {
		errorCallback(fmt.Errorf("mpv process exited unexpectedly: %w", err))
	}

	_ = h.Release(context.Background())
}

// buildArgs builds the mpv command line
func (h *Handle) buildArgs(url string, opts player.LoadOptions) []string {
	args := []string{
		GetMPVIPCArgument(h.ipcConfig),
		"--idle=yes", // keep mpv alive after playback ends
		"--no-ytdl",
	}

	if !h.loadUserConfig {
		args = append(args, "--no-config")
	}

	if !h.debug {
		args = append(args, "--msg-level=all=warn")
	}

	if opts.StartAt > 0 {
		args = append(args, fmt.Sprintf("--start=%f", opts.StartAt.Seconds()))
	}

	if opts.Volume > 0 {
		args = append(args, fmt.Sprintf("--volume=%d", opts.Volume))
	}

	if opts.Rate > 0 {
		args = append(args, fmt.Sprintf("--speed=%f", opts.Rate))
	}

	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}

	if opts.UserAgent != "" {
		args = append(args, fmt.Sprintf("--user-agent=%s", opts.UserAgent))
	} else {
		// Default user agent avoids 403s from picky CDNs
		args = append(args, "--user-agent=Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	}

	if opts.Referer != "" {
		args = append(args, fmt.Sprintf("--referrer=%s", opts.Referer))
	}

	headersList := []string{}
	for key, value := range opts.Headers {
		if key != "User-Agent" && key != "Referer" {
			headersList = append(headersList, fmt.Sprintf("%s: %s", key, value))
		}
	}
	if len(headersList) > 0 {
		args = append(args, fmt.Sprintf("--http-header-fields=%s", strings.Join(headersList, ",")))
	}

	if opts.Title != "" {
		args = append(args, fmt.Sprintf("--force-media-title=%s", opts.Title))
	}

	args = append(args, opts.ExtraArgs...)

	// URL must be last
	args = append(args, url)

	return args
}

// waitForIPC polls until the IPC endpoint exists
func (h *Handle) waitForIPC(ctx context.Context) error {
	timeoutDuration := 5 * time.Second
	if h.ipcConfig.Type == IPCNamedPipe {
		timeoutDuration = 10 * time.Second
	}

	timeout := time.After(timeoutDuration)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// Give mpv a moment to start before checking
	time.Sleep(300 * time.Millisecond)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for IPC at %s after %v", h.ipcConfig.Address, timeoutDuration)
		case <-ticker.C:
			if h.ipcConfig.IsSocket {
				if _, err := os.Stat(h.ipcConfig.Address); err == nil {
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			} else if h.ipcConfig.Type == IPCNamedPipe {
				if isPipeReady(h.ipcConfig.Address) {
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			}
		}
	}
}
