// Package player defines the media handle abstraction the playback
// controller drives. A Handle wraps one external player process; the
// controller owns its lifecycle and is the only caller.
package player

import (
	"context"
	"time"
)

// Handle is an attached media surface
type Handle interface {
	// Load attaches the handle to a stream URL and begins buffering.
	// Returns after the process is launched; attach failures surface
	// through OnError.
	Load(ctx context.Context, url string, options LoadOptions) error

	// Transport controls
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error

	// Output controls
	SetVolume(ctx context.Context, percent int) error
	SetMuted(ctx context.Context, muted bool) error
	SetRate(ctx context.Context, rate float64) error
	SetFullscreen(ctx context.Context, on bool) error

	// Progress polls the current playback position and flags
	Progress(ctx context.Context) (*Progress, error)

	// Callbacks
	OnProgress(callback func(progress Progress))
	OnEnd(callback func())
	OnError(callback func(err error))

	// State reports the handle lifecycle state
	State() State

	// Release detaches and tears down the underlying process. Safe to
	// call more than once.
	Release(ctx context.Context) error
}

// LoadOptions configures stream attachment
type LoadOptions struct {
	StartAt    time.Duration `json:"start_at,omitempty"`
	Volume     int           `json:"volume,omitempty"` // 0-100
	Rate       float64       `json:"rate,omitempty"`   // 1.0 = normal
	Fullscreen bool          `json:"fullscreen"`

	// HTTP context for protected streams
	Headers   map[string]string `json:"headers,omitempty"`
	Referer   string            `json:"referer,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`

	// Display metadata
	Title string `json:"title,omitempty"`

	// Extra player arguments passed through verbatim
	ExtraArgs []string `json:"extra_args,omitempty"`
}

// Progress is a snapshot of the handle's playback state
type Progress struct {
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	// BufferedEnd is how far ahead of Position the demuxer has data
	// buffered, as an absolute stream position. Zero when unknown.
	BufferedEnd time.Duration `json:"buffered_end,omitempty"`
	Percent     float64       `json:"percent"` // 0.0 - 100.0
	Paused      bool          `json:"paused"`
	Muted    bool          `json:"muted"`
	Volume   int           `json:"volume"`
	Rate     float64       `json:"rate"`
	EOF      bool          `json:"eof"`
}

// State is the lifecycle state of a handle
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateActive   State = "active"
	StateReleased State = "released"
	StateError    State = "error"
)

func (s State) String() string {
	return string(s)
}
