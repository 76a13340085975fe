// Package common holds the messages the TUI components pass through
// the bubbletea update loop.
package common

import (
	"time"

	"github.com/vesperhq/vesper/internal/library"
	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/player"
	"github.com/vesperhq/vesper/internal/session"
)

// PerformSearchMsg asks the app to run a library search
type PerformSearchMsg struct {
	Query string
}

// SearchResultsMsg delivers search results
type SearchResultsMsg struct {
	Query string
	Items []library.Item
	Err   error
}

// PlayItemMsg asks the app to start playback of an item
type PlayItemMsg struct {
	Item    library.Item
	Season  int
	Episode int
}

// StreamChangedMsg mirrors the engine's stream change event
type StreamChangedMsg struct {
	Snapshot session.Snapshot
}

// PlaybackStateMsg mirrors the controller's state transitions
type PlaybackStateMsg struct {
	From playback.State
	To   playback.State
}

// ProgressMsg mirrors playback progress ticks
type ProgressMsg struct {
	Progress player.Progress
}

// PlaybackFailedMsg carries a user-facing failure and its actions
type PlaybackFailedMsg struct {
	Failure session.Failure
}

// ControlsIdleMsg hides the playback controls after inactivity
type ControlsIdleMsg struct{}

// TogglePauseMsg toggles play/pause on the active session
type TogglePauseMsg struct{}

// SeekMsg seeks relative to the current position
type SeekMsg struct {
	By time.Duration
}

// SessionActionMsg runs one of the failure recovery actions
type SessionActionMsg struct {
	Action session.Action
}

// SwitchProviderMsg switches the session to a specific provider
type SwitchProviderMsg struct {
	ProviderID string
}

// SwitchLanguageMsg switches the session's language
type SwitchLanguageMsg struct {
	Code string
}

// EpisodeNavMsg moves to the next or previous episode
type EpisodeNavMsg struct {
	Direction int
}

// ToggleFullscreenMsg toggles the player's fullscreen state
type ToggleFullscreenMsg struct{}

// OpenStreamMsg opens the current stream URL in the browser
type OpenStreamMsg struct{}

// StopPlaybackMsg ends the session and returns to the results view
type StopPlaybackMsg struct{}

// AddBookmarkMsg drops a bookmark at the current position
type AddBookmarkMsg struct{}

// SleepTimerMsg arms or cancels the audiobook sleep timer
type SleepTimerMsg struct {
	Duration     time.Duration
	EndOfChapter bool
	Cancel       bool
}

// StatusMsg shows a transient footer status line
type StatusMsg struct {
	Text string
}

// GoBackMsg returns to the previous view
type GoBackMsg struct{}
