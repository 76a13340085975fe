package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/player"
	"github.com/vesperhq/vesper/internal/session"
	"github.com/vesperhq/vesper/internal/tui/common"
)

// EventRelay forwards engine callbacks into the bubbletea program.
// The engine is built before the program exists, so events fired
// before Bind are buffered and replayed.
type EventRelay struct {
	mu    sync.Mutex
	send  func(tea.Msg)
	queue []tea.Msg
}

func NewEventRelay() *EventRelay {
	return &EventRelay{}
}

// Bind connects the relay to a running program and drains the buffer
func (r *EventRelay) Bind(send func(tea.Msg)) {
	r.mu.Lock()
	r.send = send
	queued := r.queue
	r.queue = nil
	r.mu.Unlock()

	for _, msg := range queued {
		send(msg)
	}
}

func (r *EventRelay) emit(msg tea.Msg) {
	r.mu.Lock()
	send := r.send
	if send == nil {
		r.queue = append(r.queue, msg)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	send(msg)
}

// SessionEvents returns the callbacks to hand the session engine
func (r *EventRelay) SessionEvents() session.Events {
	return session.Events{
		OnStreamChange: func(snapshot session.Snapshot) {
			r.emit(common.StreamChangedMsg{Snapshot: snapshot})
		},
		OnStateChange: func(from, to playback.State) {
			r.emit(common.PlaybackStateMsg{From: from, To: to})
		},
		OnFailure: func(failure session.Failure) {
			r.emit(common.PlaybackFailedMsg{Failure: failure})
		},
	}
}

// EmitProgress forwards a playback progress tick
func (r *EventRelay) EmitProgress(progress player.Progress) {
	r.emit(common.ProgressMsg{Progress: progress})
}

// EmitControlsIdle hides the playback controls
func (r *EventRelay) EmitControlsIdle() {
	r.emit(common.ControlsIdleMsg{})
}
