// Package session coordinates one viewing session: what is playing,
// through which provider, in which language, and how user navigation
// (episode changes, provider switches, retries) moves between streams.
package session

import (
	"errors"
	"time"

	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/providers"
)

// ErrSuperseded is returned when a newer request replaced this one
// before its stream resolution finished. The result is discarded.
var ErrSuperseded = errors.New("request superseded by a newer one")

// ErrNoActiveSession is returned by operations that need a current item
var ErrNoActiveSession = errors.New("no active session")

// Snapshot is a point-in-time view of the session
type Snapshot struct {
	SessionID string
	ItemID    string
	Title     string
	MediaType providers.MediaType
	Season    int
	Episode   int
	Language  string

	ProviderID   string
	StreamURL    string
	StreamKind   providers.StreamKind
	QualityLabel string
	SizeLabel    string
	// External means the stream plays outside the managed player
	// (embed pages open in the browser)
	External bool

	Token uint64
}

// Action is a recovery option offered to the user after a failure
type Action string

const (
	ActionRetry          Action = "retry"
	ActionSwitchProvider Action = "switch_provider"
	ActionSwitchLanguage Action = "switch_language"
)

// Failure is a user-facing playback failure with the actions that can
// resolve it
type Failure struct {
	Err     error
	Actions []Action
}

// Events are the engine's callbacks toward the UI. All optional.
type Events struct {
	OnStreamChange func(snapshot Snapshot)
	OnStateChange  func(from, to playback.State)
	OnFailure      func(failure Failure)
}

// StartOptions configures a new session
type StartOptions struct {
	Season     int
	Episode    int
	Language   string
	ResumeFrom time.Duration
	// ProviderID pins the first provider to try. Failover still
	// continues down the ranked list when it fails.
	ProviderID string
	Fullscreen bool
}
