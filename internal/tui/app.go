// Package tui is the terminal front end: search, results, and the
// playback view, wired to the session engine through an event relay.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/browser"

	"github.com/vesperhq/vesper/internal/audiobook"
	"github.com/vesperhq/vesper/internal/clipboard"
	"github.com/vesperhq/vesper/internal/continuity"
	"github.com/vesperhq/vesper/internal/library"
	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/providers"
	"github.com/vesperhq/vesper/internal/session"
	"github.com/vesperhq/vesper/internal/tui/common"
	"github.com/vesperhq/vesper/internal/tui/components/playerview"
	"github.com/vesperhq/vesper/internal/tui/components/results"
	"github.com/vesperhq/vesper/internal/tui/components/search"
	"github.com/vesperhq/vesper/internal/tui/styles"
)

type view int

const (
	viewSearch view = iota
	viewResults
	viewPlayer
)

const (
	opTimeout     = 60 * time.Second
	progressEvery = time.Second
	controlsIdle  = 5 * time.Second
)

// Dependencies are the services the TUI drives
type Dependencies struct {
	Library   *library.Client
	Engine    *session.Engine
	Registry  *providers.Registry
	Syncer    *continuity.Syncer
	Clipboard *clipboard.Service
	Sleep     *audiobook.SleepTimer
	Bookmarks *audiobook.Bookmarks
	Relay     *EventRelay
	Logger    *slog.Logger

	// StartFullscreen is the configured fullscreen default for new
	// sessions; the f key toggles it afterwards
	StartFullscreen bool
	// IdleHideAfter overrides how long the playback controls stay
	// visible without input
	IdleHideAfter time.Duration
}

type progressTickMsg struct{}

type Model struct {
	deps Dependencies

	view    view
	search  search.Model
	results results.Model
	player  playerview.Model

	idle       *session.IdleTimer
	fullscreen bool
	status     string
	width      int
	height     int
}

func NewModel(deps Dependencies) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m := Model{
		deps:       deps,
		view:       viewSearch,
		search:     search.New(),
		results:    results.New(),
		player:     playerview.New(deps.Registry, deps.Clipboard, deps.Sleep),
		fullscreen: deps.StartFullscreen,
	}
	idleAfter := deps.IdleHideAfter
	if idleAfter <= 0 {
		idleAfter = controlsIdle
	}
	m.idle = session.NewIdleTimer(idleAfter, deps.Relay.EmitControlsIdle)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.search.Init(), progressTick())
}

func progressTick() tea.Cmd {
	return tea.Tick(progressEvery, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		cmds = append(cmds, cmd)
		m.results, cmd = m.results.Update(msg)
		cmds = append(cmds, cmd)
		m.player, cmd = m.player.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.shutdown()
		}
		if m.view == viewPlayer {
			m.idle.Touch()
		}

	case progressTickMsg:
		return m, tea.Batch(m.noteProgress(), progressTick())

	case common.PerformSearchMsg:
		if msg.Query == "" {
			return m, nil
		}
		m.status = "Searching..."
		return m, m.runSearch(msg.Query)

	case common.SearchResultsMsg:
		if msg.Err != nil {
			m.status = "Search failed: " + msg.Err.Error()
			return m, nil
		}
		m.status = ""
		m.results.SetItems(msg.Items)
		m.view = viewResults
		return m, nil

	case common.PlayItemMsg:
		m.view = viewPlayer
		m.status = "Resolving stream..."
		m.idle.Resume()
		m.idle.Touch()
		return m, m.playItem(msg.Item, msg.Season, msg.Episode)

	case common.StreamChangedMsg:
		m.status = ""

	case common.PlaybackStateMsg:
		// A finished track is the chapter boundary the sleep timer
		// may be waiting on
		if msg.To == playback.StateEnded && m.deps.Sleep != nil {
			m.deps.Sleep.ChapterEnded()
		}
		return m.updateActiveView(msg)

	case common.TogglePauseMsg:
		return m, m.togglePause()

	case common.SeekMsg:
		return m, m.seekBy(msg.By)

	case common.SessionActionMsg:
		if msg.Action == session.ActionRetry {
			m.status = "Retrying..."
			return m, m.engineOp("retry", m.deps.Engine.Retry)
		}
		return m, nil

	case common.SwitchProviderMsg:
		m.status = "Switching provider..."
		return m, m.engineOp("switch provider", func(ctx context.Context) error {
			return m.deps.Engine.SwitchProvider(ctx, msg.ProviderID)
		})

	case common.SwitchLanguageMsg:
		m.status = "Switching language..."
		return m, m.engineOp("switch language", func(ctx context.Context) error {
			return m.deps.Engine.SwitchLanguage(ctx, msg.Code)
		})

	case common.EpisodeNavMsg:
		return m, m.navigate(msg.Direction)

	case common.ToggleFullscreenMsg:
		m.fullscreen = !m.fullscreen
		on := m.fullscreen
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			m.deps.Engine.SetFullscreen(ctx, on)
			return nil
		}

	case common.OpenStreamMsg:
		return m, m.openInBrowser()

	case common.StopPlaybackMsg:
		m.view = viewResults
		m.idle.Suspend()
		return m, m.stopPlayback()

	case common.AddBookmarkMsg:
		return m, m.addBookmark()

	case common.SleepTimerMsg:
		return m, m.setSleepTimer(msg)

	case common.StatusMsg:
		m.status = msg.Text
		return m, nil

	case common.GoBackMsg:
		switch m.view {
		case viewResults:
			m.view = viewSearch
		case viewSearch:
			return m, tea.Quit
		}
		return m, nil
	}

	return m.updateActiveView(msg)
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case viewSearch:
		m.search, cmd = m.search.Update(msg)
	case viewResults:
		m.results, cmd = m.results.Update(msg)
	case viewPlayer:
		m.player, cmd = m.player.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	var body string
	switch m.view {
	case viewSearch:
		body = m.search.View()
	case viewResults:
		body = m.results.View()
	case viewPlayer:
		body = m.player.View()
	}

	if m.status != "" {
		body += "\n" + styles.FooterStyle.Render(m.status)
	}

	return styles.AppStyle.Render(body)
}

func (m Model) runSearch(query string) tea.Cmd {
	client := m.deps.Library
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		items, err := client.Search(ctx, query)
		return common.SearchResultsMsg{Query: query, Items: items, Err: err}
	}
}

func (m Model) playItem(item library.Item, season, episode int) tea.Cmd {
	deps := m.deps
	fullscreen := m.fullscreen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		var resume time.Duration
		if deps.Syncer != nil {
			resume, _ = deps.Syncer.Resume(ctx, item.ID, season, episode)
		}

		err := deps.Engine.Start(ctx, item, session.StartOptions{
			Season:     season,
			Episode:    episode,
			ResumeFrom: resume,
			Fullscreen: fullscreen,
		})
		if err != nil && !errors.Is(err, session.ErrSuperseded) {
			deps.Logger.Error("failed to start session", "item", item.ID, "error", err)
		}
		return nil
	}
}

func (m Model) engineOp(name string, op func(ctx context.Context) error) tea.Cmd {
	logger := m.deps.Logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := op(ctx); err != nil && !errors.Is(err, session.ErrSuperseded) {
			logger.Warn("session operation failed", "op", name, "error", err)
			return common.StatusMsg{Text: fmt.Sprintf("Could not %s: %v", name, err)}
		}
		return nil
	}
}

func (m Model) togglePause() tea.Cmd {
	ctrl := m.deps.Engine.Controller()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		var err error
		if ctrl.State() == playback.StatePlaying {
			err = ctrl.Pause(ctx)
		} else {
			err = ctrl.Play(ctx)
		}
		if err != nil {
			return common.StatusMsg{Text: "Playback control failed: " + err.Error()}
		}
		return nil
	}
}

func (m Model) seekBy(by time.Duration) tea.Cmd {
	ctrl := m.deps.Engine.Controller()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := ctrl.Seek(ctx, ctrl.Position()+by); err != nil {
			return common.StatusMsg{Text: "Seek failed: " + err.Error()}
		}
		return nil
	}
}

func (m Model) navigate(direction int) tea.Cmd {
	engine := m.deps.Engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		var moved bool
		var err error
		if direction > 0 {
			moved, err = engine.NextEpisode(ctx)
		} else {
			moved, err = engine.PreviousEpisode(ctx)
		}
		if err != nil && !errors.Is(err, session.ErrSuperseded) {
			return common.StatusMsg{Text: "Episode change failed: " + err.Error()}
		}
		if !moved {
			return common.StatusMsg{Text: "No more episodes"}
		}
		return nil
	}
}

func (m Model) openInBrowser() tea.Cmd {
	engine := m.deps.Engine
	return func() tea.Msg {
		snap, ok := engine.Current()
		if !ok {
			return nil
		}
		if err := browser.OpenURL(snap.StreamURL); err != nil {
			return common.StatusMsg{Text: "Could not open browser: " + err.Error()}
		}
		return common.StatusMsg{Text: "Opened in browser"}
	}
}

func (m Model) stopPlayback() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if deps.Syncer != nil {
			if err := deps.Syncer.Flush(ctx); err != nil {
				deps.Logger.Warn("failed to flush progress", "error", err)
			}
		}
		if err := deps.Engine.Stop(ctx); err != nil {
			deps.Logger.Warn("failed to stop session", "error", err)
		}
		return nil
	}
}

func (m Model) addBookmark() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		if deps.Bookmarks == nil {
			return nil
		}
		snap, ok := deps.Engine.Current()
		if !ok {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		position := deps.Engine.Controller().Position()
		bookmark, err := deps.Bookmarks.Add(ctx, snap.ItemID, snap.Episode, "", "", position)
		if err != nil {
			return common.StatusMsg{Text: "Bookmark failed: " + err.Error()}
		}
		return common.StatusMsg{Text: "Saved " + bookmark.Label}
	}
}

func (m Model) setSleepTimer(msg common.SleepTimerMsg) tea.Cmd {
	sleep := m.deps.Sleep
	if sleep == nil {
		return nil
	}
	switch {
	case msg.Cancel:
		sleep.Cancel()
		return func() tea.Msg { return common.StatusMsg{Text: "Sleep timer off"} }
	case msg.EndOfChapter:
		sleep.ArmEndOfChapter()
		return func() tea.Msg { return common.StatusMsg{Text: "Sleeping at end of chapter"} }
	default:
		sleep.StartCountdown(msg.Duration)
		return func() tea.Msg { return common.StatusMsg{Text: "Sleep timer set"} }
	}
}

// noteProgress forwards the latest playback progress to the view and
// the continuity syncer
func (m Model) noteProgress() tea.Cmd {
	deps := m.deps
	return func() tea.Msg {
		progress, ok := deps.Engine.Controller().Progress()
		if !ok {
			return nil
		}
		deps.Relay.EmitProgress(progress)

		snap, active := deps.Engine.Current()
		if active && deps.Syncer != nil && !snap.External {
			deps.Syncer.Note(continuity.Record{
				ContentID:  snap.ItemID,
				Title:      snap.Title,
				MediaType:  string(snap.MediaType),
				Season:     snap.Season,
				Episode:    snap.Episode,
				Position:   progress.Position,
				Duration:   progress.Duration,
				ProviderID: snap.ProviderID,
				Language:   snap.Language,
				WatchedAt:  time.Now(),
			})
		}
		return nil
	}
}

func (m Model) shutdown() tea.Cmd {
	return tea.Sequence(m.stopPlayback(), tea.Quit)
}

// Run starts the TUI and blocks until it exits
func Run(deps Dependencies) error {
	if deps.Relay == nil {
		deps.Relay = NewEventRelay()
	}

	model := NewModel(deps)
	p := tea.NewProgram(model, tea.WithAltScreen())
	deps.Relay.Bind(func(msg tea.Msg) { p.Send(msg) })

	defer model.idle.Stop()

	_, err := p.Run()
	return err
}
